package types

import (
	"net/http"
	"net/url"
	"time"
)

// CrawlRequest models a work item submitted to the crawler frontier.
type CrawlRequest struct {
	URL        *url.URL
	Depth      int
	Parent     *url.URL
	MaxDepth   int
	EnqueuedAt time.Time
}

// PageResponse is the fetch layer's view of a retrieved page. Values are
// treated as immutable once handed to the gate.
type PageResponse struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Headers    http.Header
	FetchedAt  time.Time
}

// BaseURL returns the URL links should be resolved against.
func (p *PageResponse) BaseURL() string {
	if p == nil {
		return ""
	}
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// Header returns a single response header value, tolerating nil maps.
func (p *PageResponse) Header(key string) string {
	if p == nil || p.Headers == nil {
		return ""
	}
	return p.Headers.Get(key)
}
