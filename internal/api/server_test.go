package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carolinuci/spacetime-crawler/internal/config"
	"github.com/carolinuci/spacetime-crawler/internal/crawler"
)

const richBody = `<html><body><p>Graduate admissions for the computer science program open every autumn.</p>` +
	`<a href="/b">next</a><a href="https://example.com/">away</a><a href="/data/c.zip">zip</a></body></html>`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.LinkLog.Path = filepath.Join(t.TempDir(), "found_urls.txt")
	gate, err := crawler.NewGate(context.Background(), cfg, nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gate.Close() })
	return NewServer(gate, nil)
}

func do(t *testing.T, h http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServerStaticRoutes(t *testing.T) {
	server := newTestServer(t)

	assertRoute(t, server, http.MethodGet, "/health", http.StatusOK, "application/json")
	assertRoute(t, server, http.MethodGet, "/openapi.yaml", http.StatusOK, "application/yaml")
	assertRoute(t, server, http.MethodGet, "/docs", http.StatusOK, "text/html; charset=utf-8")
}

func TestAdmitEndpoint(t *testing.T) {
	server := newTestServer(t)

	rr := do(t, server, http.MethodPost, "/api/gate/admit", AdmitRequest{URLs: []string{
		"https://www.ics.uci.edu/about",
		"https://www.ics.uci.edu/list?sessionid=1",
		"https://example.com/",
		"http://[::1",
	}})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp AdmitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Decisions, 4)

	assert.True(t, resp.Decisions[0].Admitted)
	assert.Equal(t, "admitted", resp.Decisions[0].Reason)
	assert.Equal(t, "blocked", resp.Decisions[1].Reason)
	assert.NotEmpty(t, resp.Decisions[1].Pattern)
	assert.Equal(t, "out_of_scope", resp.Decisions[2].Reason)
	assert.Equal(t, "malformed", resp.Decisions[3].Reason)
	assert.NotEmpty(t, resp.Decisions[3].Error)
}

func TestAdmitEndpointValidatesPayload(t *testing.T) {
	server := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, server, http.MethodPost, "/api/gate/admit", AdmitRequest{}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, server, http.MethodPost, "/api/gate/admit", map[string]any{"url": "x"}).Code)

	rr := do(t, server, http.MethodGet, "/api/gate/admit", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "POST", rr.Header().Get("Allow"))
}

func TestEvaluateEndpointDetectsDuplicates(t *testing.T) {
	server := newTestServer(t)
	page := PageRequest{URL: "https://www.ics.uci.edu/a", StatusCode: 200, Body: richBody}

	var first, second VerdictResponse
	rr := do(t, server, http.MethodPost, "/api/gate/evaluate", page)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	assert.False(t, first.LowValue)
	assert.Equal(t, "ok", first.Reason)
	assert.Len(t, first.Fingerprint, 64)

	page.URL = "https://www.ics.uci.edu/copy"
	rr = do(t, server, http.MethodPost, "/api/gate/evaluate", page)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.True(t, second.LowValue)
	assert.Equal(t, "duplicate", second.Reason)
}

func TestScrapeEndpoint(t *testing.T) {
	server := newTestServer(t)
	page := PageRequest{URL: "https://www.ics.uci.edu/a", StatusCode: 200, Body: richBody}

	var resp ScrapeResponse
	rr := do(t, server, http.MethodPost, "/api/gate/scrape", page)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, "useful", resp.Outcome)
	assert.Equal(t, "https://www.ics.uci.edu/a", resp.PageURL)
	assert.Equal(t, []string{
		"https://www.ics.uci.edu/b",
		"https://example.com/",
		"https://www.ics.uci.edu/data/c.zip",
	}, resp.Links)
	assert.Equal(t, []string{"https://www.ics.uci.edu/b"}, resp.Admitted)
	assert.Equal(t, map[string]int{"out_of_scope": 1, "extension": 1}, resp.Rejected)
	assert.Empty(t, resp.Errors)

	resp = ScrapeResponse{}
	rr = do(t, server, http.MethodPost, "/api/gate/scrape", page)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "already_seen", resp.Outcome)
	assert.Empty(t, resp.Links)
}

func TestScrapeEndpointReportsLowValue(t *testing.T) {
	server := newTestServer(t)
	page := PageRequest{URL: "https://www.ics.uci.edu/thin", StatusCode: 200, Body: "<p>short</p>"}

	var resp ScrapeResponse
	rr := do(t, server, http.MethodPost, "/api/gate/scrape", page)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "low_value", resp.Outcome)
	assert.Equal(t, "thin_content", resp.Verdict)
	assert.Equal(t, []string{}, resp.Admitted)
}

func TestStatsEndpoint(t *testing.T) {
	server := newTestServer(t)
	page := PageRequest{URL: "https://vision.ics.uci.edu/a", StatusCode: 200, Body: richBody}
	require.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/api/gate/scrape", page).Code)

	var resp StatsResponse
	rr := do(t, server, http.MethodGet, "/api/gate/stats?top=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.EqualValues(t, 1, resp.UniqueURLs)
	assert.EqualValues(t, 1, resp.Fingerprints)
	assert.Equal(t, 1, resp.UsefulPages)
	assert.Equal(t, "https://vision.ics.uci.edu/a", resp.LongestPage)
	assert.Len(t, resp.TopWords, 3)
	assert.Equal(t, map[string]int{"vision.ics.uci.edu": 1}, resp.Subdomains)

	assert.Equal(t, http.StatusBadRequest, do(t, server, http.MethodGet, "/api/gate/stats?top=x", nil).Code)
}

func assertRoute(t *testing.T, h http.Handler, method, path string, wantStatus int, wantContentType string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d (body=%s)", method, path, wantStatus, rr.Code, rr.Body.String())
	}
	if wantContentType != "" {
		if got := rr.Header().Get("Content-Type"); got != wantContentType {
			t.Fatalf("%s %s: expected content-type %s, got %s", method, path, wantContentType, got)
		}
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("%s %s: expected non-empty body", method, path)
	}
}
