package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

// RenderOptions configures the headless Chrome renderer.
type RenderOptions struct {
	Timeout            time.Duration
	WaitForSelector    string
	UserAgent          string
	MaxBodyBytes       int64
	DisableHeadless    bool
	ConcurrentSessions int
	CaptureDelay       time.Duration
}

// ChromedpRenderer renders pages in headless Chrome with bounded concurrency.
type ChromedpRenderer struct {
	opts      RenderOptions
	semaphore chan struct{}
	logger    *zap.Logger
}

// NewChromedpRenderer constructs a renderer.
func NewChromedpRenderer(opts RenderOptions, logger *zap.Logger) *ChromedpRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 16 * 1024 * 1024
	}
	if opts.ConcurrentSessions <= 0 {
		opts.ConcurrentSessions = 1
	}
	if opts.CaptureDelay <= 0 {
		opts.CaptureDelay = 1500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromedpRenderer{
		opts:      opts,
		semaphore: make(chan struct{}, opts.ConcurrentSessions),
		logger:    logger,
	}
}

// Render navigates to rawURL and returns the final DOM. Status code and
// headers come from the main document response, so error pages keep their
// status.
func (r *ChromedpRenderer) Render(parentCtx context.Context, rawURL string) (*types.PageResponse, error) {
	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-parentCtx.Done():
		return nil, parentCtx.Err()
	}

	ctx, cancel := context.WithTimeout(parentCtx, r.opts.Timeout)
	defer cancel()

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !r.opts.DisableHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	start := time.Now()
	resp, err := chromedp.RunResponse(chromeCtx, chromedp.Navigate(rawURL))
	if err != nil {
		return nil, fmt.Errorf("chromedp navigate: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("chromedp navigate %s: no document response", rawURL)
	}

	var html, finalURL string
	var actions []chromedp.Action
	if sel := strings.TrimSpace(r.opts.WaitForSelector); sel != "" && resp.Status == http.StatusOK {
		actions = append(actions, chromedp.WaitReady(sel, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Sleep(r.opts.CaptureDelay))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp capture: %w", err)
	}
	if int64(len(html)) > r.opts.MaxBodyBytes {
		return nil, fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, r.opts.MaxBodyBytes)
	}
	if finalURL == "" {
		finalURL = rawURL
	}

	r.logger.Debug("render complete",
		zap.String("url", rawURL),
		zap.String("final_url", finalURL),
		zap.Int64("status", resp.Status),
		zap.Duration("latency", time.Since(start)),
		zap.Int("html_bytes", len(html)),
	)
	return renderedPage(rawURL, finalURL, resp, html), nil
}

// renderedPage builds a page from the document response and the captured
// DOM. Content-Encoding and Content-Length describe the network transfer,
// not the serialized DOM, so they are dropped.
func renderedPage(rawURL, finalURL string, resp *network.Response, html string) *types.PageResponse {
	headers := make(http.Header, len(resp.Headers))
	for k, v := range resp.Headers {
		headers.Set(k, fmt.Sprint(v))
	}
	headers.Del("Content-Encoding")
	headers.Del("Content-Length")
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "text/html; charset=utf-8")
	}
	return &types.PageResponse{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: int(resp.Status),
		Body:       []byte(html),
		Headers:    headers,
		FetchedAt:  time.Now(),
	}
}
