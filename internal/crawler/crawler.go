// Package crawler walks the same-origin pages of a website, recording the
// interactive elements on each and inferring the user flows they suggest.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/log"
	"github.com/v0xg/autoqa/internal/model"
	"github.com/v0xg/autoqa/internal/progress"
)

// ErrUnknownDepth is returned for a depth outside shallow/deep/exhaustive
var ErrUnknownDepth = errors.New("unknown crawl depth")

// Depth is a coarse page budget tier
type Depth string

const (
	Shallow    Depth = "shallow"
	Deep       Depth = "deep"
	Exhaustive Depth = "exhaustive"
)

// PageBudget returns the maximum number of pages a crawl of depth visits
func PageBudget(depth Depth) (int, error) {
	switch depth {
	case Shallow:
		return 10, nil
	case Deep:
		return 50, nil
	case Exhaustive:
		return 200, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDepth, depth)
}

// Options configures the crawler behavior
type Options struct {
	Screenshots       bool          // attach a thumbnail to each crawled page
	NavigationTimeout time.Duration // per page navigation
	SettleTimeout     time.Duration // bounded wait for the DOM to settle after navigation
	Logger            *zap.Logger
	Progress          progress.Sink
}

// WebsiteCrawler crawls one site per Crawl call. It holds no per-crawl
// state, so concurrent crawls of different targets are safe.
type WebsiteCrawler struct {
	browser  browser.Browser
	opts     Options
	log      *zap.Logger
	progress progress.Sink
}

// New creates a crawler driving b
func New(b browser.Browser, opts Options) *WebsiteCrawler {
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.SettleTimeout == 0 {
		opts.SettleTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("crawler")
	}
	return &WebsiteCrawler{
		browser:  b,
		opts:     opts,
		log:      logger,
		progress: progress.OrDiscard(opts.Progress),
	}
}

// crawlState is everything one crawl mutates
type crawlState struct {
	origin     string
	budget     int
	page       browser.Page
	visited    map[string]bool
	pages      []model.CrawledPage
	linksFound int
}

// Crawl visits same-origin pages depth first from startURL until the page
// budget for depth is spent. Pages that fail to load are skipped; only
// invalid arguments or a browser that cannot open a page fail the crawl.
func (c *WebsiteCrawler) Crawl(ctx context.Context, startURL string, depth Depth) (*model.WebsiteMap, error) {
	budget, err := PageBudget(depth)
	if err != nil {
		return nil, err
	}
	seed, err := url.Parse(startURL)
	if err != nil || (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		return nil, fmt.Errorf("invalid start url %q", startURL)
	}
	seed.Fragment = ""

	bctx, err := c.browser.NewContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage(ctx)
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if err := multierr.Append(page.Close(), bctx.Close()); err != nil {
			c.log.Warn("Browser teardown failed", zap.Error(err))
		}
	}()

	state := &crawlState{
		origin:  origin(seed),
		budget:  budget,
		page:    page,
		visited: make(map[string]bool),
	}

	c.log.Info("Starting crawl",
		zap.String("url", seed.String()),
		zap.String("depth", string(depth)),
		zap.Int("budget", budget))
	c.progress.Report(progress.Update{Progress: 0, Message: "Starting crawl of " + state.origin})

	c.visit(ctx, state, seed.String())

	site := &model.WebsiteMap{
		BaseURL:      state.origin,
		Pages:        state.pages,
		UserFlows:    inferFlows(state.pages),
		Interactions: deriveInteractions(state.pages),
	}
	if site.Pages == nil {
		site.Pages = []model.CrawledPage{}
	}

	c.log.Info("Crawl complete",
		zap.Int("pages", len(site.Pages)),
		zap.Int("links", state.linksFound),
		zap.Int("flows", len(site.UserFlows)))
	c.progress.Report(progress.Update{
		Progress:   100,
		Message:    fmt.Sprintf("Crawl complete: %d pages", len(site.Pages)),
		PagesFound: len(site.Pages),
		LinksFound: state.linksFound,
	})
	return site, nil
}

func (c *WebsiteCrawler) visit(ctx context.Context, s *crawlState, target string) {
	if ctx.Err() != nil || len(s.visited) >= s.budget || s.visited[target] {
		return
	}
	u, err := url.Parse(target)
	if err != nil || origin(u) != s.origin {
		return
	}
	s.visited[target] = true

	navCtx, cancel := context.WithTimeout(ctx, c.opts.NavigationTimeout)
	err = s.page.Navigate(navCtx, target)
	cancel()
	if err != nil {
		c.log.Warn("Skipping page", zap.String("url", target), zap.Error(err))
		return
	}

	// SPAs may never go idle; a timeout here is fine
	settleCtx, cancel := context.WithTimeout(ctx, c.opts.SettleTimeout)
	_ = s.page.WaitLoadState(settleCtx, browser.LoadStateNetworkIdle)
	cancel()

	crawled, links, err := c.extractPage(ctx, s.page, target)
	if err != nil {
		c.log.Warn("Skipping page", zap.String("url", target), zap.Error(err))
		return
	}
	s.pages = append(s.pages, *crawled)
	s.linksFound += len(links)

	c.log.Debug("Crawled page",
		zap.String("url", target),
		zap.Int("elements", len(crawled.Elements)),
		zap.Int("links", len(links)))
	c.progress.Report(progress.Update{
		Progress:   progress.Percent(len(s.visited), s.budget, 95),
		Message:    "Crawled " + target,
		PagesFound: len(s.pages),
		LinksFound: s.linksFound,
	})

	for _, link := range links {
		if len(s.visited) >= s.budget {
			return
		}
		c.visit(ctx, s, link)
	}
}

// origin returns scheme://host[:port]
func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
