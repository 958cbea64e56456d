package apicrawler

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/model"
)

// trafficLog dedupes captured requests by METHOD:path as they arrive
type trafficLog struct {
	base string

	mu        sync.Mutex
	index     map[string]int
	endpoints []model.APIEndpoint
}

func newTrafficLog(base string) *trafficLog {
	return &trafficLog{base: base, index: make(map[string]int)}
}

func (t *trafficLog) record(r browser.ObservedRequest) {
	switch strings.ToLower(r.ResourceType) {
	case "xhr", "fetch":
	default:
		return
	}
	path, ok := underBase(r.URL, t.base)
	if !ok {
		return
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return
	}

	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	ep := model.APIEndpoint{
		Path:   path,
		Method: strings.ToUpper(r.Method),
		Source: model.SourceTraffic,
	}
	query := u.Query()
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ep.Parameters = append(ep.Parameters, model.Parameter{Name: name, In: "query"})
	}
	if r.PostData != "" {
		var body any
		if err := json.Unmarshal([]byte(r.PostData), &body); err == nil {
			ep.RequestBody = body
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.index[ep.Key()]; ok {
		enrich(&t.endpoints[i], ep)
		return
	}
	t.index[ep.Key()] = len(t.endpoints)
	t.endpoints = append(t.endpoints, ep)
}

// underBase returns the part of raw after base when raw is base itself or
// lies below it: /api covers /api/x and /api?q but not /apiary.
func underBase(raw, base string) (string, bool) {
	rest, ok := strings.CutPrefix(raw, base)
	if !ok {
		return "", false
	}
	if rest != "" && !strings.ContainsRune("/?#", rune(rest[0])) {
		return "", false
	}
	return rest, true
}

func (t *trafficLog) snapshot() []model.APIEndpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.APIEndpoint(nil), t.endpoints...)
}

// observeTraffic loads the base URL and records the API calls the page
// makes during the observe window
func (c *APICrawler) observeTraffic(ctx context.Context, base string) []model.APIEndpoint {
	if c.browser == nil {
		return nil
	}

	bctx, err := c.browser.NewContext(ctx)
	if err != nil {
		c.log.Warn("Traffic observation unavailable", zap.Error(err))
		return nil
	}
	page, err := bctx.NewPage(ctx)
	if err != nil {
		_ = bctx.Close()
		c.log.Warn("Traffic observation unavailable", zap.Error(err))
		return nil
	}
	defer func() {
		if err := multierr.Append(page.Close(), bctx.Close()); err != nil {
			c.log.Warn("Browser teardown failed", zap.Error(err))
		}
	}()

	traffic := newTrafficLog(base)
	stop := page.ObserveRequests(ctx, traffic.record)
	defer stop()

	navCtx, cancel := context.WithTimeout(ctx, c.opts.NavigationTimeout)
	err = page.Navigate(navCtx, base)
	cancel()
	if err != nil {
		c.log.Warn("Failed to load base url for traffic observation", zap.String("url", base), zap.Error(err))
		return traffic.snapshot()
	}

	timer := time.NewTimer(c.opts.ObserveWindow)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return traffic.snapshot()
}
