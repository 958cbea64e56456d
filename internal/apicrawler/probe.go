package apicrawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/model"
)

const maxSpecBytes = 10 << 20

// DefaultSpecPaths are the conventional places an API publishes its spec
var DefaultSpecPaths = []string{
	"/swagger.json",
	"/openapi.json",
	"/api-docs",
	"/swagger/v1/swagger.json",
	"/v1/swagger.json",
	"/v2/api-docs",
	"/v3/api-docs",
	"/api/swagger.json",
	"/api/openapi.json",
	"/api/v1/openapi.json",
	"/docs/openapi.json",
	"/swagger.yaml",
	"/openapi.yaml",
}

// probeSpecs fetches every spec path concurrently. Misses are routine and
// only logged at debug.
func (c *APICrawler) probeSpecs(ctx context.Context, base string) []model.APIEndpoint {
	results := make([][]model.APIEndpoint, len(c.opts.SpecPaths))

	var wg sync.WaitGroup
	for i, path := range c.opts.SpecPaths {
		wg.Add(1)
		go func(i int, specURL string) {
			defer wg.Done()
			endpoints, err := c.probe(ctx, specURL)
			if err != nil {
				c.log.Debug("Spec probe missed", zap.String("url", specURL), zap.Error(err))
				return
			}
			c.log.Info("Found API spec", zap.String("url", specURL), zap.Int("endpoints", len(endpoints)))
			results[i] = endpoints
		}(i, base+path)
	}
	wg.Wait()

	var out []model.APIEndpoint
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (c *APICrawler) probe(ctx context.Context, specURL string) ([]model.APIEndpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, specURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSpecBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	format := detectFormat(resp.Header.Get("Content-Type"), specURL, body)
	if format == formatUnknown {
		return nil, fmt.Errorf("not a spec document (content type %q)", resp.Header.Get("Content-Type"))
	}
	return parseSpec(body, format)
}

type docFormat int

const (
	formatUnknown docFormat = iota
	formatJSON
	formatYAML
)

func detectFormat(contentType, specURL string, body []byte) docFormat {
	ct := strings.ToLower(contentType)
	trimmed := bytes.TrimSpace(body)
	switch {
	case strings.Contains(ct, "json"):
		return formatJSON
	case strings.Contains(ct, "yaml") || strings.HasSuffix(specURL, ".yaml") || strings.HasSuffix(specURL, ".yml"):
		return formatYAML
	case strings.Contains(ct, "html"):
		return formatUnknown
	case len(trimmed) > 0 && trimmed[0] == '{':
		return formatJSON
	}
	return formatUnknown
}
