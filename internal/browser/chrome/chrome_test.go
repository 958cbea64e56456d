package chrome

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/v0xg/autoqa/internal/browser"
)

const catalogHTML = `<html><head><title>Catalog</title></head><body>
<button><span>Save</span></button>
<a href="/next"><span>Next page</span></a>
<form action="/search"><input name="q"><input type="submit" value="Search"></form>
</body></html>`

// openPage launches a local Chromium or skips when none is installed
func openPage(t *testing.T, logger *zap.Logger) *Page {
	t.Helper()
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no Chromium binary available")
	}
	b, err := Launch(context.Background(), Options{Headless: true, Logger: logger})
	if err != nil {
		t.Skipf("browser did not start: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	bctx, err := b.NewContext(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bctx.Close() })
	page, err := bctx.NewPage(context.Background())
	require.NoError(t, err)
	return page.(*Page)
}

func TestTextLocatorsResolveWrappedAndValueText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, catalogHTML)
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	page := openPage(t, zap.NewNop())
	require.NoError(t, page.Navigate(ctx, srv.URL))

	for _, loc := range []string{
		`button:has-text("Save")`,
		`a:has-text("Next page")`,
		`input:has-text("Search")`,
	} {
		n, err := page.Locate(loc).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n, loc)
	}

	inputs, err := page.Elements(ctx, `input[type="submit"]`)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "Search", inputs[0].Text)
}

func TestObserveRequestsWithoutNetworkEvents(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	page := openPage(t, zap.New(core))

	// the target is gone but the wrapper still thinks it is open
	require.NoError(t, page.page.Close())

	stop := page.ObserveRequests(context.Background(), func(browser.ObservedRequest) {
		t.Error("no request should be reported")
	})
	stop()

	assert.Equal(t, 1, logs.FilterMessage("Traffic observation unavailable").Len())
}

func TestObserveRequestsOnClosedPage(t *testing.T) {
	page := openPage(t, zap.NewNop())
	require.NoError(t, page.Close())

	stop := page.ObserveRequests(context.Background(), func(browser.ObservedRequest) {})
	stop()
	assert.True(t, page.IsClosed())
}
