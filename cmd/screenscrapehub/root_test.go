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

	"screenscrapehub/pkg/types"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/news/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/news/":
			fmt.Fprint(w, `<html><body><a href="/news/first">1</a><a href="second">2</a><a href="logo.png">x</a></body></html>`)
		case "/news/first":
			fmt.Fprint(w, `<html><body><h1>First</h1><p>one</p></body></html>`)
		case "/news/second":
			fmt.Fprint(w, `<html><body><p>two</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PORT", "")
	t.Setenv("SCRAPEHUB_LOG_LEVEL", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLinksCommand(t *testing.T) {
	srv := newSite(t)
	cfg := writeConfig(t, "logging:\n  level: error\n")

	out, err := run(t, "links", "--config", cfg, srv.URL+"/news/")
	require.NoError(t, err)

	var report types.LinkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Links, 2)
	assert.Equal(t, srv.URL+"/news/first", report.Links[0].AbsoluteURL)
	assert.Equal(t, srv.URL+"/news/second", report.Links[1].AbsoluteURL)
	assert.NotEmpty(t, report.Rejected)
}

func TestScrapeCommand(t *testing.T) {
	srv := newSite(t)

	out, err := run(t, "scrape", "--log-level", "error", "--workers", "2", srv.URL+"/news/")
	require.NoError(t, err)

	var results []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, srv.URL+"/news/first", results[0]["url"])
	assert.Contains(t, results[0]["content"], "First")
	assert.Contains(t, results[1]["content"], "two")
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "scrape", "--log-level", "error", "not a url")
	require.Error(t, err)

	_, err = run(t, "links", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "https://example.com/")
	require.Error(t, err)

	_, err = run(t, "links", "--config", writeConfig(t, "bogus: true\n"), "https://example.com/")
	require.Error(t, err)

	_, err = run(t, "scrape", "--workers=-1", "--log-level", "error", "https://example.com/")
	require.Error(t, err)

	_, err = run(t, "scrape")
	require.Error(t, err)
}
