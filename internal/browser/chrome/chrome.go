// Package chrome drives headless Chromium over CDP with go-rod.
package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/log"
)

// Options configures the launched browser
type Options struct {
	Width      int
	Height     int
	Headless   bool
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
	Bin        string // browser binary, looked up when empty
	Logger     *zap.Logger
}

// Browser wraps a launched Rod browser
type Browser struct {
	browser *rod.Browser
	opts    Options
}

var _ browser.Browser = (*Browser)(nil)

// Launch starts a local Chromium and connects to it
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}
	if opts.Logger == nil {
		opts.Logger = log.Component("chrome")
	}

	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	l := launcher.New().Context(ctx).Bin(bin).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{browser: b, opts: opts}, nil
}

// NewContext opens an incognito browser context so cookies and storage stay
// isolated from every other context.
func (b *Browser) NewContext(ctx context.Context) (browser.Context, error) {
	inc, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	return &Context{browser: inc, opts: b.opts}, nil
}

// Close shuts the browser down
func (b *Browser) Close() error {
	return b.browser.Close()
}

// Context is one incognito browser context
type Context struct {
	browser *rod.Browser
	opts    Options
}

// NewPage opens a blank tab in the context
func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page = page.Context(context.Background())

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.opts.Width,
		Height:            c.opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	return &Page{page: page, log: c.opts.Logger}, nil
}

// Close disposes the incognito context and every page in it
func (c *Context) Close() error {
	return c.browser.Close()
}

// settle is how long the network must stay quiet to count as idle
const settle = 500 * time.Millisecond
