package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/v0xg/autoqa/internal/browser"
)

// fakeBrowser hands out scripted pages and remembers every context
type fakeBrowser struct {
	mu       sync.Mutex
	contexts []*fakeContext
	// newPage configures each page; nil means an empty page
	newPage    func(p *fakePage)
	contextErr func(n int) error
}

func (b *fakeBrowser) NewContext(ctx context.Context) (browser.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.contextErr != nil {
		if err := b.contextErr(len(b.contexts)); err != nil {
			b.contexts = append(b.contexts, &fakeContext{browser: b, failed: true})
			return nil, err
		}
	}
	c := &fakeContext{browser: b}
	b.contexts = append(b.contexts, c)
	return c, nil
}

func (b *fakeBrowser) Close() error { return nil }

func (b *fakeBrowser) liveContexts() []*fakeContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*fakeContext
	for _, c := range b.contexts {
		if !c.failed {
			out = append(out, c)
		}
	}
	return out
}

type fakeContext struct {
	browser *fakeBrowser
	failed  bool
	page    *fakePage
	closed  bool
}

func (c *fakeContext) NewPage(ctx context.Context) (browser.Page, error) {
	p := &fakePage{
		title:   "Blank",
		url:     "about:blank",
		present: map[string]bool{},
		hidden:  map[string]bool{},
		status:  200,
	}
	if c.browser.newPage != nil {
		c.browser.newPage(p)
	}
	c.page = p
	return p, nil
}

func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

// fakePage resolves locators from the present/hidden sets
type fakePage struct {
	mu sync.Mutex

	title, url  string
	present     map[string]bool
	hidden      map[string]bool
	status      int
	idleErr     error
	shotErr     error
	closed      bool
	closeErr    error
	navigations []string
	actions     []string
	located     []string
}

func (p *fakePage) log(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if strings.Contains(url, "unreachable") {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.navigations = append(p.navigations, url)
	return nil
}

func (p *fakePage) WaitLoadState(ctx context.Context, state browser.LoadState) error {
	if state == browser.LoadStateNetworkIdle && p.idleErr != nil {
		return p.idleErr
	}
	return ctx.Err()
}

func (p *fakePage) URL(ctx context.Context) (string, error)   { return p.url, nil }
func (p *fakePage) Title(ctx context.Context) (string, error) { return p.title, nil }

func (p *fakePage) Locate(loc string) browser.Locator {
	p.mu.Lock()
	p.located = append(p.located, loc)
	p.mu.Unlock()
	return &fakeLocator{page: p, loc: loc}
}

func (p *fakePage) Elements(ctx context.Context, css string) ([]browser.ElementInfo, error) {
	return nil, nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.Set(x, x%6, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *fakePage) Request(ctx context.Context, r browser.APIRequest) (int, error) {
	p.log("%s %s", r.Method, r.URL)
	return p.status, nil
}

func (p *fakePage) ObserveRequests(ctx context.Context, fn func(browser.ObservedRequest)) func() {
	return func() {}
}

func (p *fakePage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

func (p *fakePage) locatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.located)
}

type fakeLocator struct {
	page *fakePage
	loc  string
}

func (l *fakeLocator) String() string { return l.loc }

func (l *fakeLocator) check() error {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	if !l.page.present[l.loc] {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, l.loc)
	}
	if l.page.hidden[l.loc] {
		return fmt.Errorf("%w: %s", browser.ErrNotVisible, l.loc)
	}
	return nil
}

func (l *fakeLocator) Click(ctx context.Context) error {
	if err := l.check(); err != nil {
		return err
	}
	l.page.log("click %s", l.loc)
	return nil
}

func (l *fakeLocator) Fill(ctx context.Context, value string) error {
	if err := l.check(); err != nil {
		return err
	}
	l.page.log("fill %s %s", l.loc, value)
	return nil
}

func (l *fakeLocator) Select(ctx context.Context, value string) error {
	if err := l.check(); err != nil {
		return err
	}
	l.page.log("select %s %s", l.loc, value)
	return nil
}

func (l *fakeLocator) WaitVisible(ctx context.Context) error { return l.check() }

func (l *fakeLocator) Count(ctx context.Context) (int, error) {
	if l.check() != nil {
		return 0, nil
	}
	return 1, nil
}
