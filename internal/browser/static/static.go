// Package static is a JavaScript-free driver: pages are fetched over HTTP
// and queried with goquery. Links and form submits navigate, fills and
// selects update the parsed document.
package static

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/v0xg/autoqa/internal/browser"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures the static driver
type Options struct {
	Timeout   time.Duration // per HTTP exchange
	UserAgent string
	// Transport overrides the HTTP transport, mainly for tests
	Transport http.RoundTripper
}

// Browser hands out contexts that each own a cookie jar
type Browser struct {
	opts Options
}

var _ browser.Browser = (*Browser)(nil)

// New creates a static browser
func New(opts Options) *Browser {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Browser{opts: opts}
}

// NewContext creates an isolated session with its own cookie jar
func (b *Browser) NewContext(ctx context.Context) (browser.Context, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	transport := b.opts.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: b.opts.Timeout,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}
	client := &http.Client{
		Jar:       jar,
		Timeout:   b.opts.Timeout,
		Transport: transport,
	}
	return &Context{client: client, userAgent: b.opts.UserAgent}, nil
}

func (b *Browser) Close() error {
	return nil
}

// Context is one cookie-isolated session
type Context struct {
	client    *http.Client
	userAgent string
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	return newPage(c), nil
}

func (c *Context) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
