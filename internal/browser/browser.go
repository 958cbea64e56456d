// Package browser defines the browser-control capability the crawlers and
// the executor are written against. Drivers live in subpackages.
package browser

import (
	"context"
	"errors"
)

var (
	ErrPageClosed      = errors.New("page is closed")
	ErrElementNotFound = errors.New("element not found")
	ErrNotVisible      = errors.New("element is not visible")
	ErrUnsupported     = errors.New("operation not supported by driver")
)

// LoadState is a page readiness signal
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Browser hands out isolated contexts. Implementations must be safe for
// concurrent NewContext calls.
type Browser interface {
	NewContext(ctx context.Context) (Context, error)
	Close() error
}

// Context is an isolated browsing session: cookies and storage never leak
// between two contexts.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. A Page is used by one goroutine at a time.
type Page interface {
	// Navigate loads url and returns once the DOM content is loaded.
	Navigate(ctx context.Context, url string) error
	WaitLoadState(ctx context.Context, state LoadState) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Locate returns a lazy handle; nothing is resolved until an action runs.
	Locate(locator string) Locator
	// Elements snapshots every element matching a CSS selector.
	Elements(ctx context.Context, css string) ([]ElementInfo, error)

	Screenshot(ctx context.Context) ([]byte, error)
	// Request issues an HTTP call sharing the page's cookies and returns the status code.
	Request(ctx context.Context, req APIRequest) (int, error)
	// ObserveRequests calls fn for every XHR/fetch request the page sends
	// until stop is called.
	ObserveRequests(ctx context.Context, fn func(ObservedRequest)) (stop func())

	IsClosed() bool
	Close() error
}

// Locator is a lazily resolved element handle
type Locator interface {
	String() string
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Select(ctx context.Context, value string) error
	WaitVisible(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// ElementInfo is a point-in-time snapshot of a DOM element
type ElementInfo struct {
	Tag        string            `json:"tag"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Visible    bool              `json:"visible"`
	ParentTag  string            `json:"parentTag,omitempty"`
	Index      int               `json:"index"` // 1-based position among element siblings
}

// Attr returns the named attribute or ""
func (e ElementInfo) Attr(name string) string {
	return e.Attributes[name]
}

// APIRequest is an HTTP call issued through a page
type APIRequest struct {
	Method string
	URL    string
	Data   any
}

// ObservedRequest is an outgoing request seen on the wire
type ObservedRequest struct {
	Method       string
	URL          string
	PostData     string
	ResourceType string // xhr, fetch
}
