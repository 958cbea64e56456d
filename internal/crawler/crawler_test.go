package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/autoqa/internal/browser/static"
	"github.com/v0xg/autoqa/internal/model"
	"github.com/v0xg/autoqa/internal/progress"
)

type recordingSink struct {
	mu      sync.Mutex
	updates []progress.Update
}

func (r *recordingSink) Report(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recordingSink) all() []progress.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Update(nil), r.updates...)
}

func serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCrawler(t *testing.T, sink progress.Sink) *WebsiteCrawler {
	return New(static.New(static.Options{}), Options{
		Screenshots: true,
		Logger:      zaptest.NewLogger(t),
		Progress:    sink,
	})
}

func TestPageBudget(t *testing.T) {
	for depth, want := range map[Depth]int{Shallow: 10, Deep: 50, Exhaustive: 200} {
		got, err := PageBudget(depth)
		require.NoError(t, err)
		assert.Equal(t, want, got, depth)
	}
	_, err := PageBudget("infinite")
	assert.ErrorIs(t, err, ErrUnknownDepth)
}

func TestCrawlThreeLinkedPages(t *testing.T) {
	srv := serve(t, map[string]string{
		"/": `<html><head><title>Home</title></head><body>
			<a href="/login">Login</a> <a href="/products#top">Products</a> <a href="#main">Skip</a>
		</body></html>`,
		"/login": `<html><head><title>Sign in</title></head><body>
			<form action="/session" method="post">
				<input id="email" name="email"><input type="password" name="password">
				<button type="submit">Log in</button>
			</form>
			<a href="/">Home</a>
		</body></html>`,
		"/products": `<html><head><title>Products</title></head><body>
			<button data-testid="add-to-cart">Add to cart</button>
			<a href="/login">Login</a>
		</body></html>`,
	})
	sink := &recordingSink{}

	site, err := newCrawler(t, sink).Crawl(context.Background(), srv.URL+"/", Shallow)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, site.BaseURL)
	require.Len(t, site.Pages, 3)
	urls := []string{site.Pages[0].URL, site.Pages[1].URL, site.Pages[2].URL}
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/login", srv.URL + "/products"}, urls)

	login := site.Pages[1]
	assert.Equal(t, "Sign in", login.Title)
	assert.Empty(t, login.Screenshot, "static driver has no screenshots")
	var locators []string
	for _, el := range login.Elements {
		locators = append(locators, el.Locator)
	}
	assert.Contains(t, locators, `button:has-text("Log in")`)
	assert.Contains(t, locators, `#email`)
	assert.Contains(t, locators, `[name="password"]`)

	updates := sink.all()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, 3, last.PagesFound)
	for _, u := range updates[:len(updates)-1] {
		assert.LessOrEqual(t, u.Progress, 95)
	}

	var flows []string
	for _, f := range site.UserFlows {
		flows = append(flows, f.Name)
	}
	assert.Equal(t, []string{"User Login", "Checkout Process"}, flows)
}

func TestCrawlRespectsBudgetAndOrigin(t *testing.T) {
	other := serve(t, map[string]string{"/": `<html><body>elsewhere</body></html>`})

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int
		_, _ = fmt.Sscanf(r.URL.Path, "/p/%d", &n)
		fmt.Fprintf(w, `<html><body><a href="%s/">Away</a><a href="/p/%d">Next</a><a href="/p/%d">Skip</a></body></html>`,
			other.URL, n+1, n+2)
	}))
	t.Cleanup(srv.Close)

	sink := &recordingSink{}
	site, err := newCrawler(t, sink).Crawl(context.Background(), srv.URL+"/p/0", Shallow)
	require.NoError(t, err)

	assert.Len(t, site.Pages, 10)
	seen := map[string]bool{}
	for _, p := range site.Pages {
		assert.True(t, strings.HasPrefix(p.URL, srv.URL+"/"), p.URL)
		assert.False(t, seen[p.URL], "page %s visited twice", p.URL)
		seen[p.URL] = true
	}
	for _, u := range sink.all() {
		if u.Progress != 100 {
			assert.LessOrEqual(t, u.Progress, 95)
		}
	}
}

func TestCrawlSkipsBrokenPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><a href="/broken">Broken</a><a href="/ok">OK</a></body></html>`)
		case "/broken":
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
		default:
			fmt.Fprint(w, `<html><head><title>Fine</title></head></html>`)
		}
	}))
	t.Cleanup(srv.Close)

	site, err := newCrawler(t, nil).Crawl(context.Background(), srv.URL, Deep)
	require.NoError(t, err)

	require.Len(t, site.Pages, 2)
	assert.Equal(t, srv.URL+"/ok", site.Pages[1].URL)
}

func TestCrawlRejectsBadArguments(t *testing.T) {
	c := newCrawler(t, nil)
	_, err := c.Crawl(context.Background(), "http://example.com", "sideways")
	assert.ErrorIs(t, err, ErrUnknownDepth)

	_, err = c.Crawl(context.Background(), "ftp://example.com", Shallow)
	assert.Error(t, err)
}

func TestInferFlows(t *testing.T) {
	pages := []model.CrawledPage{
		{URL: "https://shop.test/account/SignUp", Title: "Create account"},
		{URL: "https://shop.test/", Title: "Shop", Elements: []model.InteractiveElement{
			{Type: model.ElementButton, Locator: "#go", Text: "Proceed to Checkout"},
		}},
	}

	flows := inferFlows(pages)
	require.Len(t, flows, 2)
	assert.Equal(t, "User Registration", flows[0].Name)
	assert.Equal(t, model.PriorityHigh, flows[0].Priority)
	assert.Equal(t, "Checkout Process", flows[1].Name)
	assert.Equal(t, model.PriorityCritical, flows[1].Priority)
	assert.NotEmpty(t, flows[1].Steps)

	assert.Empty(t, inferFlows(nil))
}

func TestDeriveInteractions(t *testing.T) {
	pages := []model.CrawledPage{{
		URL: "https://app.test/login",
		Elements: []model.InteractiveElement{
			{Type: model.ElementInput, Locator: "#email"},
			{Type: model.ElementButton, Locator: "#submit", Text: "Go"},
			{Type: model.ElementForm, Locator: "form"},
			{Type: model.ElementLink, Locator: `a:has-text("Help")`},
			{Type: model.ElementSelect, Locator: "#role"},
		},
	}}

	got := deriveInteractions(pages)
	assert.Equal(t, []model.Interaction{
		{Type: model.InteractionFill, Locator: "#email", PageURL: "https://app.test/login"},
		{Type: model.InteractionClick, Locator: "#submit", PageURL: "https://app.test/login", Text: "Go"},
		{Type: model.InteractionClick, Locator: `a:has-text("Help")`, PageURL: "https://app.test/login"},
	}, got)
}

func TestCrawledLocatorsResolveOnTheirPage(t *testing.T) {
	srv := serve(t, map[string]string{
		"/": `<html><head><title>Catalog</title></head><body>
			<button><span>Save</span></button>
			<a href="/next"><span>Next page</span></a>
			<form action="/search"><input name="q"><input type="submit" value="Search"></form>
		</body></html>`,
		"/next": `<html><head><title>Next</title></head><body>
			<a class="back link" href="/"><em>Back</em> to catalog</a>
			<ul><li><button>Buy</button></li></ul>
		</body></html>`,
		"/search": `<html><head><title>Results</title></head><body></body></html>`,
	})
	b := static.New(static.Options{})
	site, err := New(b, Options{Logger: zaptest.NewLogger(t)}).Crawl(context.Background(), srv.URL, Shallow)
	require.NoError(t, err)
	require.Len(t, site.Pages, 2)

	ctx := context.Background()
	bctx, err := b.NewContext(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bctx.Close() })
	page, err := bctx.NewPage(ctx)
	require.NoError(t, err)

	var locators []string
	for _, p := range site.Pages {
		for _, el := range p.Elements {
			locators = append(locators, el.Locator)

			require.NoError(t, page.Navigate(ctx, p.URL))
			n, err := page.Locate(el.Locator).Count(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 1, "%s on %s", el.Locator, p.URL)

			switch el.Type {
			case model.ElementButton, model.ElementLink:
				assert.NoError(t, page.Locate(el.Locator).Click(ctx), el.Locator)
			case model.ElementInput:
				if !strings.HasPrefix(el.Locator, "input:has-text") {
					assert.NoError(t, page.Locate(el.Locator).Fill(ctx, "x"), el.Locator)
				}
			}
		}
	}
	assert.Contains(t, locators, `button:has-text("Save")`)
	assert.Contains(t, locators, `a:has-text("Next page")`)
	assert.Contains(t, locators, `input:has-text("Search")`)
}
