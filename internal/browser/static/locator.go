package static

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/locator"
)

// Locator resolves against the page's current document on every call
type Locator struct {
	page  *Page
	raw   string
	query locator.Query
}

var _ browser.Locator = (*Locator)(nil)

func (l *Locator) String() string {
	return l.raw
}

// matches returns every element the query selects. Text queries keep the
// deepest selected elements containing the text; descendants the CSS part
// does not select never shadow their ancestor.
func (l *Locator) matches() *goquery.Selection {
	css := l.query.CSS
	if css == "" {
		css = "*"
	}
	sel := l.page.document().Find(css)
	if l.query.Text == "" {
		return sel
	}

	text := collapse(l.query.Text)
	hits := sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(elementText(s), text)
	})
	return hits.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("*").FilterSelection(hits).Length() == 0
	})
}

// resolve picks the first visible match, falling back to the first match
func (l *Locator) resolve() (*goquery.Selection, error) {
	if l.page.IsClosed() {
		return nil, browser.ErrPageClosed
	}
	sel := l.matches()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, l.raw)
	}
	for i := range sel.Nodes {
		if s := sel.Eq(i); visible(s) {
			return s, nil
		}
	}
	return sel.First(), nil
}

func (l *Locator) visibleElement() (*goquery.Selection, error) {
	s, err := l.resolve()
	if err != nil {
		return nil, err
	}
	if !visible(s) {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotVisible, l.raw)
	}
	return s, nil
}

// Click follows links, submits forms and toggles checkable inputs. A click
// on content inside a link or button activates that ancestor, as it would
// in a browser. Anything else is a successful no-op.
func (l *Locator) Click(ctx context.Context) error {
	s, err := l.visibleElement()
	if err != nil {
		return err
	}
	if target := s.Closest(activatable); target.Length() > 0 {
		s = target
	}

	tag := goquery.NodeName(s)
	typ := strings.ToLower(s.AttrOr("type", ""))

	switch {
	case tag == "a":
		href, ok := s.Attr("href")
		if !ok || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil
		}
		return l.page.Navigate(ctx, href)

	case tag == "input" && (typ == "checkbox" || typ == "radio"):
		l.page.mu.Lock()
		defer l.page.mu.Unlock()
		if typ == "radio" {
			if name := s.AttrOr("name", ""); name != "" {
				s.Closest("form").Find(`input[type="radio"]`).FilterFunction(func(_ int, r *goquery.Selection) bool {
					return r.AttrOr("name", "") == name
				}).RemoveAttr("checked")
			}
			s.SetAttr("checked", "checked")
			return nil
		}
		if _, checked := s.Attr("checked"); checked {
			s.RemoveAttr("checked")
		} else {
			s.SetAttr("checked", "checked")
		}
		return nil

	case isSubmit(tag, typ):
		form := s.Closest("form")
		if form.Length() == 0 {
			return nil
		}
		return l.page.submit(ctx, form, s)
	}
	return nil
}

const activatable = `a[href], button, input`

func isSubmit(tag, typ string) bool {
	switch tag {
	case "button":
		return typ == "" || typ == "submit"
	case "input":
		return typ == "submit" || typ == "image"
	}
	return false
}

func (l *Locator) Fill(ctx context.Context, value string) error {
	s, err := l.visibleElement()
	if err != nil {
		return err
	}

	l.page.mu.Lock()
	defer l.page.mu.Unlock()

	switch goquery.NodeName(s) {
	case "textarea":
		s.SetText(value)
		return nil
	case "input":
		switch strings.ToLower(s.AttrOr("type", "text")) {
		case "submit", "button", "reset", "image", "checkbox", "radio", "file":
		default:
			s.SetAttr("value", value)
			return nil
		}
	}
	return fmt.Errorf("element %s cannot be filled", l.raw)
}

func (l *Locator) Select(ctx context.Context, value string) error {
	s, err := l.visibleElement()
	if err != nil {
		return err
	}
	if goquery.NodeName(s) != "select" {
		return fmt.Errorf("element %s is not a select", l.raw)
	}

	l.page.mu.Lock()
	defer l.page.mu.Unlock()

	found := false
	s.Find("option").Each(func(_ int, opt *goquery.Selection) {
		if !found && optionValue(opt) == value {
			opt.SetAttr("selected", "selected")
			found = true
			return
		}
		opt.RemoveAttr("selected")
	})
	if !found {
		return fmt.Errorf("select %s has no option %q", l.raw, value)
	}
	return nil
}

// WaitVisible checks once: a static document never changes on its own
func (l *Locator) WaitVisible(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.visibleElement()
	return err
}

func (l *Locator) Count(ctx context.Context) (int, error) {
	if l.page.IsClosed() {
		return 0, browser.ErrPageClosed
	}
	return l.matches().Length(), nil
}
