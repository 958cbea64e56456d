// Package apicrawler discovers the HTTP endpoints behind a web application
// by probing for published specs, watching the page's own traffic and,
// failing both, guessing conventional REST routes.
package apicrawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/log"
	"github.com/v0xg/autoqa/internal/model"
	"github.com/v0xg/autoqa/internal/progress"
)

// Options configures discovery
type Options struct {
	// Client issues spec probes; defaults to a client with ProbeTimeout
	Client       *http.Client
	ProbeTimeout time.Duration
	// SpecPaths overrides the conventional spec locations
	SpecPaths []string
	// ObserveWindow is how long page traffic is watched after load
	ObserveWindow     time.Duration
	NavigationTimeout time.Duration
	Logger            *zap.Logger
	Progress          progress.Sink
}

// APICrawler discovers endpoints for one base URL per Discover call
type APICrawler struct {
	browser  browser.Browser
	client   *http.Client
	opts     Options
	log      *zap.Logger
	progress progress.Sink
}

// New creates an API crawler. With a nil browser, passive traffic
// observation is skipped.
func New(b browser.Browser, opts Options) *APICrawler {
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.ObserveWindow == 0 {
		opts.ObserveWindow = 3 * time.Second
	}
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if len(opts.SpecPaths) == 0 {
		opts.SpecPaths = DefaultSpecPaths
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.ProbeTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("apicrawler")
	}
	return &APICrawler{
		browser:  b,
		client:   client,
		opts:     opts,
		log:      logger,
		progress: progress.OrDiscard(opts.Progress),
	}
}

// Discover runs spec probing, traffic observation and heuristic generation
// concurrently and merges what they find. Individual probe or page failures
// never fail discovery.
func (c *APICrawler) Discover(ctx context.Context, baseURL string) (*model.APIMap, error) {
	base, err := normalizeBase(baseURL)
	if err != nil {
		return nil, err
	}

	c.log.Info("Starting API discovery", zap.String("base_url", base))
	c.progress.Report(progress.Update{Progress: 0, Message: "Discovering API endpoints at " + base})

	var (
		wg        sync.WaitGroup
		done      atomic.Int32
		spec      []model.APIEndpoint
		traffic   []model.APIEndpoint
		heuristic []model.APIEndpoint
	)
	finished := func(name string, found int) {
		n := int(done.Add(1))
		c.log.Debug("Discovery strategy finished", zap.String("strategy", name), zap.Int("endpoints", found))
		c.progress.Report(progress.Update{
			Progress:       progress.Percent(n, 3, 95),
			Message:        fmt.Sprintf("%s discovery found %d endpoints", name, found),
			EndpointsFound: found,
		})
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		spec = c.probeSpecs(ctx, base)
		finished("Spec", len(spec))
	}()
	go func() {
		defer wg.Done()
		traffic = c.observeTraffic(ctx, base)
		finished("Traffic", len(traffic))
	}()
	go func() {
		defer wg.Done()
		heuristic = heuristicEndpoints()
		finished("Heuristic", len(heuristic))
	}()
	wg.Wait()

	endpoints := mergeEndpoints(spec, traffic, heuristic)
	api := &model.APIMap{
		BaseURL:        base,
		Endpoints:      endpoints,
		Authentication: inferAuth(endpoints),
	}

	c.log.Info("API discovery complete",
		zap.Int("endpoints", len(endpoints)),
		zap.Int("from_spec", len(spec)),
		zap.Int("from_traffic", len(traffic)),
		zap.String("auth", string(api.Authentication)))
	c.progress.Report(progress.Update{
		Progress:       100,
		Message:        fmt.Sprintf("Discovered %d API endpoints", len(endpoints)),
		EndpointsFound: len(endpoints),
	})
	return api, nil
}

func normalizeBase(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid api base url %q", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// mergeEndpoints unions the lists by METHOD:path in order. The first entry
// for a key wins; later ones only fill fields it left empty.
func mergeEndpoints(lists ...[]model.APIEndpoint) []model.APIEndpoint {
	index := make(map[string]int)
	merged := []model.APIEndpoint{}
	for _, list := range lists {
		for _, ep := range list {
			i, ok := index[ep.Key()]
			if !ok {
				index[ep.Key()] = len(merged)
				merged = append(merged, ep)
				continue
			}
			enrich(&merged[i], ep)
		}
	}
	return merged
}

func enrich(dst *model.APIEndpoint, src model.APIEndpoint) {
	if dst.RequestBody == nil {
		dst.RequestBody = src.RequestBody
	}
	if dst.ResponseSchema == nil {
		dst.ResponseSchema = src.ResponseSchema
	}
	if len(dst.Parameters) == 0 {
		dst.Parameters = src.Parameters
	}
}

// inferAuth is a path heuristic, not real token introspection
func inferAuth(endpoints []model.APIEndpoint) model.AuthType {
	for _, ep := range endpoints {
		if strings.Contains(ep.Path, "/auth/") || strings.Contains(ep.Path, "/login") {
			return model.AuthBearer
		}
	}
	return model.AuthNone
}
