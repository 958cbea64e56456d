package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/locator"
)

// Page wraps a Rod page
type Page struct {
	page *rod.Page
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ browser.Page = (*Page)(nil)

// Navigate loads url and waits for DOMContentLoaded
func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.IsClosed() {
		return browser.ErrPageClosed
	}
	page := p.page.Context(ctx)

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("navigation to %s timed out: %w", url, err)
	}
	return nil
}

// WaitLoadState blocks until the requested readiness signal or ctx expires
func (p *Page) WaitLoadState(ctx context.Context, state browser.LoadState) error {
	if p.IsClosed() {
		return browser.ErrPageClosed
	}
	page := p.page.Context(ctx)

	switch state {
	case browser.LoadStateNetworkIdle:
		// Persistent connections (WebSockets, polling) can keep this from
		// ever settling, so the caller's deadline is what bounds it.
		page.WaitRequestIdle(settle, nil, nil, nil)()
	default:
		if err := page.WaitLoad(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

// Locate returns a lazily resolved locator
func (p *Page) Locate(loc string) browser.Locator {
	return &Locator{page: p, raw: loc, query: locator.Parse(loc)}
}

// Elements snapshots every element matching css
func (p *Page) Elements(ctx context.Context, css string) ([]browser.ElementInfo, error) {
	if p.IsClosed() {
		return nil, browser.ErrPageClosed
	}
	res, err := p.page.Context(ctx).Eval(`(selector) => {
		const out = [];
		document.querySelectorAll(selector).forEach(el => {
			const attrs = {};
			for (const a of el.attributes) attrs[a.name] = a.value;
			const parent = el.parentElement;
			out.push({
				tag: el.tagName.toLowerCase(),
				attributes: attrs,
				text: ((el.tagName === 'INPUT' ? el.value : (el.innerText || el.textContent)) || '').replace(/\s+/g, ' ').trim().slice(0, 200),
				visible: !!(el.offsetParent || el.getClientRects().length),
				parentTag: parent ? parent.tagName.toLowerCase() : '',
				index: parent ? Array.from(parent.children).indexOf(el) + 1 : 0
			});
		});
		return out;
	}`, css)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", css, err)
	}

	var infos []browser.ElementInfo
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &infos); err != nil {
		return nil, fmt.Errorf("failed to decode elements: %w", err)
	}
	return infos, nil
}

// Screenshot captures the viewport as PNG
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if p.IsClosed() {
		return nil, browser.ErrPageClosed
	}
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Request runs fetch inside the page so the call carries the page's cookies
func (p *Page) Request(ctx context.Context, req browser.APIRequest) (int, error) {
	if p.IsClosed() {
		return 0, browser.ErrPageClosed
	}

	body := ""
	if req.Data != nil {
		data, err := json.Marshal(req.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = string(data)
	}

	res, err := p.page.Context(ctx).Eval(`(method, url, body) => fetch(url, {
		method: method,
		credentials: 'include',
		headers: body ? {'Content-Type': 'application/json'} : {},
		body: body || undefined
	}).then(r => r.status)`, req.Method, req.URL, body)
	if err != nil {
		return 0, fmt.Errorf("%s %s failed: %w", req.Method, req.URL, err)
	}
	return res.Value.Int(), nil
}

// ObserveRequests reports XHR and fetch requests until stop is called. When
// network events cannot be enabled nothing is reported and stop is a no-op.
func (p *Page) ObserveRequests(ctx context.Context, fn func(browser.ObservedRequest)) func() {
	if p.IsClosed() {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	page := p.page.Context(ctx)

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		cancel()
		p.log.Debug("Traffic observation unavailable", zap.Error(err))
		return func() {}
	}

	wait := page.EachEvent(func(e *proto.NetworkRequestWillBeSent) {
		var kind string
		switch e.Type {
		case proto.NetworkResourceTypeXHR:
			kind = "xhr"
		case proto.NetworkResourceTypeFetch:
			kind = "fetch"
		default:
			return
		}
		fn(browser.ObservedRequest{
			Method:       e.Request.Method,
			URL:          e.Request.URL,
			PostData:     e.Request.PostData,
			ResourceType: kind,
		})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()

	return func() {
		cancel()
		<-done
	}
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.page.Close()
}
