package static

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/coregx/coregex"

	"github.com/v0xg/autoqa/internal/browser"
)

const (
	maxExternalScripts = 10
	maxScriptBytes     = 2 << 20
)

// apiLiteral matches quoted string literals that look like API paths
const apiLiteral = "[\"'`]((?:https?://[^\"'`\\s/]+)?/(?:api|graphql|rest|v[0-9]+)(?:/[A-Za-z0-9_.~:{}-]*)*(?:\\?[^\"'`\\s]*)?)[\"'`]"

var (
	apiPattern = mustCompile(apiLiteral)
	// the lazy DFA inside coregex is not safe for concurrent use
	apiPatternMu sync.Mutex
)

func mustCompile(expr string) *coregex.Regexp {
	re, err := coregex.Compile(expr)
	if err != nil {
		panic(err)
	}
	return re
}

// scanAPIPaths returns the API-looking literals in script source
func scanAPIPaths(src []byte) []string {
	apiPatternMu.Lock()
	matches := apiPattern.FindAll(src, -1)
	apiPatternMu.Unlock()

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) < 3 {
			continue
		}
		out = append(out, string(m[1:len(m)-1]))
	}
	return out
}

// scriptRequests scans inline scripts and a bounded number of same-origin
// external scripts for API calls and reports each as a fetch.
func (p *Page) scriptRequests(ctx context.Context, doc *goquery.Document, base *url.URL) []browser.ObservedRequest {
	var sources [][]byte
	var external []string

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			external = append(external, src)
			return
		}
		sources = append(sources, []byte(s.Text()))
	})

	fetched := 0
	for _, src := range external {
		if fetched >= maxExternalScripts {
			break
		}
		ref, err := url.Parse(src)
		if err != nil {
			continue
		}
		u := base.ResolveReference(ref)
		if u.Host != base.Host {
			continue
		}
		fetched++
		if body := p.fetchScript(ctx, u.String()); body != nil {
			sources = append(sources, body)
		}
	}

	seen := make(map[string]bool)
	var out []browser.ObservedRequest
	for _, src := range sources {
		for _, path := range scanAPIPaths(src) {
			ref, err := url.Parse(path)
			if err != nil {
				continue
			}
			u := base.ResolveReference(ref).String()
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, browser.ObservedRequest{
				Method:       http.MethodGet,
				URL:          u,
				ResourceType: "fetch",
			})
		}
	}
	return out
}

func (p *Page) fetchScript(ctx context.Context, u string) []byte {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.session.userAgent)
	resp, err := p.session.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptBytes))
	if err != nil {
		return nil
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return nil
	}
	return body
}
