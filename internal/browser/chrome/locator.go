package chrome

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/locator"
)

// matchJS returns the elements matching a CSS selector and, when text is
// set, keeps the deepest of those whose text contains it. An input's text is
// its value.
const matchJS = `function match(css, text) {
	let nodes;
	try {
		nodes = Array.from(document.querySelectorAll(css));
	} catch (e) {
		return [];
	}
	if (!text) return nodes;
	const norm = s => (s || '').replace(/\s+/g, ' ').trim();
	const want = norm(text);
	const textOf = el => norm(el.tagName === 'INPUT' ? el.value : (el.innerText || el.textContent));
	const hits = nodes.filter(el => textOf(el).includes(want));
	return hits.filter(el => !hits.some(o => o !== el && el.contains(o)));
}`

// Locator resolves a locator string against the live page on every action
type Locator struct {
	page  *Page
	raw   string
	query locator.Query
}

var _ browser.Locator = (*Locator)(nil)

func (l *Locator) String() string {
	return l.raw
}

// element waits until the locator resolves or ctx expires
func (l *Locator) element(ctx context.Context) (*rod.Element, error) {
	if l.page.IsClosed() {
		return nil, browser.ErrPageClosed
	}
	page := l.page.page.Context(ctx)

	el, err := page.ElementByJS(rod.Eval(`(css, text) => {
		`+matchJS+`
		return match(css, text)[0] || null;
	}`, l.query.CSS, l.query.Text))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", browser.ErrElementNotFound, l.raw, err)
	}
	return el, nil
}

// Click scrolls the element into view and clicks it once it is interactable
func (l *Locator) Click(ctx context.Context) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Fill replaces the element's value
func (l *Locator) Fill(ctx context.Context, value string) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

// Select picks the option with the given value
func (l *Locator) Select(ctx context.Context, value string) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	return el.Select([]string{fmt.Sprintf(`[value="%s"]`, value)}, true, rod.SelectorTypeCSSSector)
}

func (l *Locator) WaitVisible(ctx context.Context) error {
	el, err := l.element(ctx)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("%w: %s: %v", browser.ErrNotVisible, l.raw, err)
	}
	return nil
}

// Count returns how many elements match right now, without waiting
func (l *Locator) Count(ctx context.Context) (int, error) {
	if l.page.IsClosed() {
		return 0, browser.ErrPageClosed
	}
	res, err := l.page.page.Context(ctx).Eval(`(css, text) => {
		`+matchJS+`
		return match(css, text).length;
	}`, l.query.CSS, l.query.Text)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}
