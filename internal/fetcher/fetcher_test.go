package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

func TestHTTPFetcherFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>hello</p>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, err := NewHTTPFetcher(Options{UserAgent: "test-agent", Headers: map[string]string{"X-Extra": "yes"}})
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/old", page.URL)
	assert.Equal(t, srv.URL+"/new", page.FinalURL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "<p>hello</p>", string(page.Body))
	assert.Equal(t, "text/html", page.Header("Content-Type"))
	assert.False(t, page.FetchedAt.IsZero())
}

func TestHTTPFetcherReturnsErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f, err := NewHTTPFetcher(Options{})
	require.NoError(t, err)
	page, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
}

func TestHTTPFetcherDecodesCompressedBodies(t *testing.T) {
	const body = "<p>compressed body</p>"

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(body))
	require.NoError(t, gw.Close())

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(body))
	require.NoError(t, bw.Close())

	for encoding, payload := range map[string][]byte{"gzip": gz.Bytes(), "br": br.Bytes()} {
		t.Run(encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				_, _ = w.Write(payload)
			}))
			defer srv.Close()

			f, err := NewHTTPFetcher(Options{})
			require.NoError(t, err)
			page, err := f.Fetch(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, body, string(page.Body))
			assert.Empty(t, page.Header("Content-Encoding"))
			assert.Empty(t, page.Header("Content-Length"))
		})
	}
}

func TestHTTPFetcherEnforcesBodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(Options{MaxBodyBytes: 16})
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestHTTPFetcherRejectsBadURL(t *testing.T) {
	f, err := NewHTTPFetcher(Options{})
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "http://[::1")
	assert.Error(t, err)

	_, err = NewHTTPFetcher(Options{ProxyURL: "http://[::1"})
	assert.Error(t, err)
}

type stubFetcher struct {
	page  *types.PageResponse
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) (*types.PageResponse, error) {
	s.calls++
	return s.page, s.err
}

type stubRenderer struct {
	page *types.PageResponse
	err  error
}

func (s stubRenderer) Render(context.Context, string) (*types.PageResponse, error) {
	return s.page, s.err
}

func TestCompositePrefersRenderer(t *testing.T) {
	rendered := &types.PageResponse{URL: "u", StatusCode: 200}
	plain := &stubFetcher{page: &types.PageResponse{URL: "u", StatusCode: 200}}

	c := NewComposite(plain, stubRenderer{page: rendered}, zap.NewNop())
	page, err := c.Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Same(t, rendered, page)
	assert.Equal(t, 0, plain.calls)
}

func TestCompositeFallsBackToHTTP(t *testing.T) {
	plain := &stubFetcher{page: &types.PageResponse{URL: "u", StatusCode: 200}}
	c := NewComposite(plain, stubRenderer{err: errors.New("no chrome")}, nil)

	page, err := c.Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Same(t, plain.page, page)
	assert.Equal(t, 1, plain.calls)

	c = NewComposite(plain, nil, nil)
	_, err = c.Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, 2, plain.calls)
}

func TestNewChromedpRendererDefaults(t *testing.T) {
	r := NewChromedpRenderer(RenderOptions{}, nil)
	assert.Equal(t, 1, cap(r.semaphore))
	assert.Positive(t, r.opts.Timeout)
	assert.Positive(t, r.opts.CaptureDelay)
}

func TestCompositeKeepsRendererStatus(t *testing.T) {
	notFound := &types.PageResponse{URL: "u", FinalURL: "u", StatusCode: http.StatusNotFound, Body: []byte("<p>gone</p>")}
	plain := &stubFetcher{page: &types.PageResponse{URL: "u", StatusCode: 200}}

	c := NewComposite(plain, stubRenderer{page: notFound}, nil)
	page, err := c.Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
	assert.Equal(t, 0, plain.calls)
}

func TestRenderedPageUsesDocumentResponse(t *testing.T) {
	resp := &network.Response{
		Status: 404,
		Headers: network.Headers{
			"content-type":     "text/html",
			"content-length":   "1234",
			"content-encoding": "gzip",
			"x-request-id":     7,
		},
	}
	page := renderedPage("https://www.ics.uci.edu/missing", "https://www.ics.uci.edu/missing", resp, "<html></html>")

	assert.Equal(t, http.StatusNotFound, page.StatusCode)
	assert.Equal(t, "text/html", page.Header("Content-Type"))
	assert.Equal(t, "7", page.Header("X-Request-Id"))
	assert.Empty(t, page.Header("Content-Length"))
	assert.Empty(t, page.Header("Content-Encoding"))
	assert.Equal(t, []byte("<html></html>"), page.Body)
}

func TestRenderedPageDefaultsContentType(t *testing.T) {
	page := renderedPage("u", "u", &network.Response{Status: 200}, "<p>x</p>")
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", page.Header("Content-Type"))
}
