package static

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/locator"
)

// Page holds the parsed document of the last navigation
type Page struct {
	session *Context

	mu           sync.Mutex
	url          *url.URL
	doc          *goquery.Document
	closed       bool
	observers    map[int]func(browser.ObservedRequest)
	nextObserver int
}

var _ browser.Page = (*Page)(nil)

func newPage(c *Context) *Page {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	return &Page{
		session:   c,
		doc:       doc,
		observers: make(map[int]func(browser.ObservedRequest)),
	}
}

// Navigate fetches url and parses the response as the new document.
// Like a real browser, HTTP error statuses still load a page.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if p.IsClosed() {
		return browser.ErrPageClosed
	}
	target, err := p.resolve(rawURL)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return p.load(ctx, req)
}

func (p *Page) load(ctx context.Context, req *http.Request) error {
	req.Header.Set("User-Agent", p.session.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := p.session.client.Do(req)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", req.URL, err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", req.URL, err)
	}

	final := *resp.Request.URL
	final.Fragment = ""

	p.mu.Lock()
	p.url = &final
	p.doc = doc
	observers := make([]func(browser.ObservedRequest), 0, len(p.observers))
	for _, fn := range p.observers {
		observers = append(observers, fn)
	}
	p.mu.Unlock()

	if len(observers) > 0 {
		for _, r := range p.scriptRequests(ctx, doc, &final) {
			for _, fn := range observers {
				fn(r)
			}
		}
	}
	return nil
}

// WaitLoadState returns immediately: a static document is fully loaded
// as soon as Navigate returns.
func (p *Page) WaitLoadState(ctx context.Context, state browser.LoadState) error {
	if p.IsClosed() {
		return browser.ErrPageClosed
	}
	return ctx.Err()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.url == nil {
		return "about:blank", nil
	}
	return p.url.String(), nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	return strings.TrimSpace(p.document().Find("title").First().Text()), nil
}

func (p *Page) Locate(loc string) browser.Locator {
	return &Locator{page: p, raw: loc, query: locator.Parse(loc)}
}

// Elements snapshots every element matching css
func (p *Page) Elements(ctx context.Context, css string) ([]browser.ElementInfo, error) {
	if p.IsClosed() {
		return nil, browser.ErrPageClosed
	}
	var infos []browser.ElementInfo
	p.document().Find(css).Each(func(_ int, s *goquery.Selection) {
		infos = append(infos, elementInfo(s))
	})
	return infos, nil
}

// Screenshot is unavailable without a rendering engine
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, browser.ErrUnsupported
}

// Request sends an HTTP call with the context's cookies
func (p *Page) Request(ctx context.Context, r browser.APIRequest) (int, error) {
	if p.IsClosed() {
		return 0, browser.ErrPageClosed
	}
	target, err := p.resolve(r.URL)
	if err != nil {
		return 0, err
	}

	var body io.Reader
	if r.Data != nil {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.session.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.session.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s failed: %w", method, target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// ObserveRequests reports the API calls found in each loaded document's
// scripts, since no script ever runs here.
func (p *Page) ObserveRequests(ctx context.Context, fn func(browser.ObservedRequest)) func() {
	p.mu.Lock()
	id := p.nextObserver
	p.nextObserver++
	p.observers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *Page) document() *goquery.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

// resolve turns raw into an absolute URL relative to the current page
func (p *Page) resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}

	p.mu.Lock()
	base := p.url
	p.mu.Unlock()

	var u *url.URL
	switch {
	case ref.IsAbs():
		u = ref
	case base != nil:
		u = base.ResolveReference(ref)
	default:
		return nil, fmt.Errorf("relative url %q with no page loaded", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", browser.ErrUnsupported, u.Scheme)
	}
	out := *u
	out.Fragment = ""
	return &out, nil
}

// submit serializes a form the way a browser would and loads the response
func (p *Page) submit(ctx context.Context, form, submitter *goquery.Selection) error {
	method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", http.MethodGet)))
	target, err := p.resolve(form.AttrOr("action", ""))
	if err != nil {
		return err
	}

	values := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, f *goquery.Selection) {
		name := f.AttrOr("name", "")
		if name == "" {
			return
		}
		if _, disabled := f.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(f) {
		case "input":
			switch strings.ToLower(f.AttrOr("type", "text")) {
			case "submit", "image", "button", "reset", "file":
			case "checkbox", "radio":
				if _, checked := f.Attr("checked"); checked {
					values.Add(name, f.AttrOr("value", "on"))
				}
			default:
				values.Add(name, f.AttrOr("value", ""))
			}
		case "textarea":
			values.Add(name, f.Text())
		case "select":
			opt := f.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = f.Find("option").First()
			}
			if opt.Length() > 0 {
				values.Add(name, optionValue(opt))
			}
		}
	})
	if name := submitter.AttrOr("name", ""); name != "" {
		values.Add(name, submitter.AttrOr("value", ""))
	}

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		target.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return p.load(ctx, req)
}
