package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/autoqa/internal/model"
)

// execute runs the CLI in a scratch directory and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("AUTOQA_DATABASE_DSN", "")

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><head><title>Shop</title></head><body>
			<a href="/login"><span>Sign in</span></a>
			<button data-testid="save">Save</button>
		</body></html>`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Login</title></head><body>
			<form><input name="email"><input type="submit" value="Log in"></form>
		</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlCommand(t *testing.T) {
	srv := newSite(t)

	out, err := execute(t, "crawl", srv.URL, "--driver", "static", "--depth", "shallow")
	require.NoError(t, err)

	var site model.WebsiteMap
	require.NoError(t, json.Unmarshal([]byte(out), &site))
	assert.Equal(t, srv.URL, site.BaseURL)
	require.Len(t, site.Pages, 2)
	assert.Equal(t, "Login", site.Pages[1].Title)

	var flows []string
	for _, f := range site.UserFlows {
		flows = append(flows, f.Name)
	}
	assert.Contains(t, flows, "User Login")
}

func TestCrawlCommandWritesOutputFile(t *testing.T) {
	srv := newSite(t)

	out, err := execute(t, "crawl", srv.URL, "--driver", "static", "-o", "site.json")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile("site.json")
	require.NoError(t, err)
	var site model.WebsiteMap
	require.NoError(t, json.Unmarshal(data, &site))
	assert.Len(t, site.Pages, 2)
}

func TestDiscoverCommand(t *testing.T) {
	srv := newSite(t)
	require.NoError(t, os.WriteFile("fast.yaml", []byte("api:\n  observe_window: 10ms\n"), 0o644))

	out, err := execute(t, "discover", srv.URL, "--driver", "static", "--config", "fast.yaml")
	require.NoError(t, err)

	var api model.APIMap
	require.NoError(t, json.Unmarshal([]byte(out), &api))
	assert.Len(t, api.Endpoints, 29)
	assert.Equal(t, model.AuthBearer, api.Authentication)
}

func TestRunCommandHealsLocators(t *testing.T) {
	srv := newSite(t)
	tests := []model.TestCase{{
		ID:   "save",
		Name: "Save from the home page",
		Steps: []model.TestStep{
			model.Navigate(srv.URL),
			model.Click("#save"),
			model.Assert(model.AssertTitle, "Shop"),
		},
	}}
	data, err := json.Marshal(tests)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tests.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, "run", path, "--driver", "static", "--workers", "1")
	require.NoError(t, err)

	var res model.ExecutionResults
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Healed, 1)
	assert.Equal(t, "save", res.Healed[0].TestID)
}

func TestCommandErrors(t *testing.T) {
	srv := newSite(t)

	_, err := execute(t, "crawl", srv.URL, "--driver", "netscape")
	assert.ErrorContains(t, err, "unknown driver")

	_, err = execute(t, "crawl", srv.URL, "--driver", "static", "--depth", "forever")
	assert.Error(t, err)

	_, err = execute(t, "run", "missing.json", "--driver", "static")
	assert.ErrorContains(t, err, "failed to read tests")

	_, err = execute(t, "crawl")
	assert.Error(t, err)
}
