// Package crawler is the host crawl loop: it fetches pages, feeds them to the
// scraper and queues the links the gate admits.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/internal/config"
	"github.com/carolinuci/spacetime-crawler/internal/fetcher"
	"github.com/carolinuci/spacetime-crawler/internal/frontier"
	"github.com/carolinuci/spacetime-crawler/internal/ledger"
	"github.com/carolinuci/spacetime-crawler/internal/metrics"
	"github.com/carolinuci/spacetime-crawler/internal/wordfreq"
	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

// ErrNoSeeds is returned by Run when no configured seed passes admission.
var ErrNoSeeds = errors.New("no admissible crawl seeds")

// Engine orchestrates fetching, gating and queueing.
type Engine struct {
	cfg     config.Config
	fetcher fetcher.Fetcher
	gate    *Gate
	ledger  ledger.Ledger
	metrics *metrics.Metrics
	logger  *zap.Logger

	footprint *Footprint
	queue     *Queue

	maxPages  int64
	enqueued  atomic.Int64
	processed atomic.Int64
}

// Option customises an Engine.
type Option func(*Engine)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithLedger replaces the ledger selected by configuration. The engine does
// not close an injected ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// NewEngine builds a crawler engine from configuration. m may be nil.
func NewEngine(ctx context.Context, cfg config.Config, logger *zap.Logger, m *metrics.Metrics, opts ...Option) (*Engine, error) {
	if err := cfg.ValidateCrawl(); err != nil {
		return nil, fmt.Errorf("crawl config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{cfg: cfg, metrics: m, logger: logger}
	for _, opt := range opts {
		opt(e)
	}

	gate, err := NewGate(ctx, cfg, e.ledger, logger, m)
	if err != nil {
		return nil, err
	}
	e.gate = gate
	e.ledger = gate.Ledger

	if e.fetcher == nil {
		if e.fetcher, err = e.buildFetcher(); err != nil {
			_ = gate.Close()
			return nil, err
		}
	}

	e.maxPages = int64(cfg.Crawl.MaxPages)
	if e.maxPages <= 0 {
		e.maxPages = math.MaxInt64
	}
	e.footprint = NewFootprint()
	e.queue = NewQueue(cfg.Worker.QueueSize)
	return e, nil
}

func (e *Engine) buildFetcher() (fetcher.Fetcher, error) {
	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    e.cfg.Crawl.UserAgent,
		Headers:      e.cfg.Crawl.Headers,
		Timeout:      e.cfg.Crawl.RequestTimeout.Duration,
		MaxBodyBytes: e.cfg.Crawl.MaxBodyBytes,
		ProxyURL:     e.cfg.Crawl.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("http fetcher: %w", err)
	}
	if !e.cfg.Rendering.Enabled {
		return httpFetcher, nil
	}
	renderer := fetcher.NewChromedpRenderer(fetcher.RenderOptions{
		Timeout:            e.cfg.Rendering.Timeout.Duration,
		WaitForSelector:    e.cfg.Rendering.WaitForSelector,
		CaptureDelay:       e.cfg.Rendering.CaptureDelay.Duration,
		UserAgent:          e.cfg.Crawl.UserAgent,
		MaxBodyBytes:       e.cfg.Crawl.MaxBodyBytes,
		DisableHeadless:    e.cfg.Rendering.DisableHeadless,
		ConcurrentSessions: e.cfg.Rendering.ConcurrentSessions,
	}, e.logger.Named("render"))
	return fetcher.NewComposite(httpFetcher, renderer, e.logger.Named("fetcher")), nil
}

// Run executes the crawl until the frontier drains or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer e.Close()

	pool, err := NewWorkerPool(e.cfg.Worker.Concurrency, e.queue)
	if err != nil {
		return err
	}

	seeds, err := e.buildSeedRequests()
	if err != nil {
		return err
	}
	for _, req := range seeds {
		e.enqueue(ctx, req)
	}
	if e.queue.Len() == 0 {
		return ErrNoSeeds
	}

	start := time.Now()
	e.logger.Info("crawl started",
		zap.Int("seeds", len(seeds)),
		zap.Int("workers", e.cfg.Worker.Concurrency),
	)
	pool.Run(ctx, e.handleRequest)
	e.queue.Close()
	e.logSummary(ctx, time.Since(start))

	if err := ctx.Err(); err != nil {
		e.logger.Warn("context cancelled, crawl stopped early")
		return err
	}
	return nil
}

// Close releases resources owned by the engine.
func (e *Engine) Close() error {
	return e.gate.Close()
}

// Words exposes the word-frequency counter; nil when disabled.
func (e *Engine) Words() *wordfreq.Counter {
	return e.gate.Words
}

// Processed reports how many pages were fetched.
func (e *Engine) Processed() int64 {
	return e.processed.Load()
}

func (e *Engine) enqueue(ctx context.Context, req types.CrawlRequest) {
	if req.URL == nil || req.Depth > req.MaxDepth {
		return
	}
	key := frontier.Key(req.URL.String())
	if !e.footprint.Claim(key) {
		return
	}
	seen, err := e.ledger.Seen(ctx, key)
	if err != nil {
		e.logger.Warn("ledger lookup failed", zap.String("url", key), zap.Error(err))
	}
	if seen {
		return
	}
	if e.enqueued.Load() >= e.maxPages {
		return
	}
	if e.enqueued.Add(1) > e.maxPages {
		e.enqueued.Add(-1)
		return
	}

	req.EnqueuedAt = time.Now()
	if err := e.queue.Push(req); err != nil {
		e.enqueued.Add(-1)
		e.footprint.Release(key)
		if !errors.Is(err, ErrQueueClosed) {
			e.logger.Warn("enqueue failed", zap.String("url", key), zap.Error(err))
		}
		return
	}
	e.metrics.SetQueueDepth(e.queue.Len())
}

func (e *Engine) handleRequest(ctx context.Context, req types.CrawlRequest) {
	if ctx.Err() != nil {
		return
	}
	e.metrics.SetQueueDepth(e.queue.Len())
	rawURL := req.URL.String()

	start := time.Now()
	page, err := e.fetcher.Fetch(ctx, rawURL)
	e.metrics.ObserveFetch(time.Since(start).Seconds(), err != nil)
	if err != nil {
		e.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return
	}
	e.processed.Add(1)

	res, err := e.gate.Scraper.ScrapePage(ctx, page)
	if err != nil {
		e.logger.Warn("scrape reported errors", zap.String("url", rawURL), zap.Error(err))
	}
	e.logger.Info("page processed",
		zap.String("url", rawURL),
		zap.String("final_url", page.FinalURL),
		zap.Int("status", page.StatusCode),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("links", len(res.Links)),
		zap.Int("admitted", len(res.Admitted)),
		zap.Int("depth", req.Depth),
	)

	if req.Depth >= req.MaxDepth {
		return
	}
	for _, link := range res.Admitted {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		e.enqueue(ctx, types.CrawlRequest{
			URL:      u,
			Depth:    req.Depth + 1,
			Parent:   req.URL,
			MaxDepth: req.MaxDepth,
		})
	}
}

func (e *Engine) buildSeedRequests() ([]types.CrawlRequest, error) {
	maxDepth := e.cfg.Crawl.MaxDepth
	seeds := make([]types.CrawlRequest, 0, len(e.cfg.Crawl.Seeds))
	for _, seed := range e.cfg.Crawl.Seeds {
		parsed, err := url.Parse(seed.URL)
		if err != nil {
			return nil, fmt.Errorf("parse seed %q: %w", seed.URL, err)
		}
		if parsed.Scheme == "" {
			parsed, err = url.Parse("https://" + seed.URL)
			if err != nil {
				return nil, fmt.Errorf("parse seed %q: %w", seed.URL, err)
			}
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("seed %q missing host", seed.URL)
		}

		decision, err := e.gate.Admitter.Admit(parsed.String())
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", seed.URL, err)
		}
		if !decision.Admitted {
			e.logger.Warn("seed rejected by admission",
				zap.String("url", parsed.String()),
				zap.String("reason", string(decision.Reason)),
			)
			continue
		}

		depthLimit := maxDepth
		if seed.MaxDepth > 0 && seed.MaxDepth < depthLimit {
			depthLimit = seed.MaxDepth
		}
		seeds = append(seeds, types.CrawlRequest{URL: parsed, MaxDepth: depthLimit})
	}
	return seeds, nil
}

func (e *Engine) logSummary(ctx context.Context, elapsed time.Duration) {
	fields := []zap.Field{
		zap.Int64("pages_fetched", e.processed.Load()),
		zap.Int64("pages_enqueued", e.enqueued.Load()),
		zap.Int("urls_discovered", e.footprint.Len()),
		zap.Duration("elapsed", elapsed),
	}
	if stats, err := e.ledger.Stats(context.WithoutCancel(ctx)); err == nil {
		fields = append(fields,
			zap.Int64("unique_urls", stats.URLs),
			zap.Int64("unique_fingerprints", stats.Fingerprints),
		)
	}
	if words := e.gate.Words; words != nil {
		longestURL, longestWords := words.Longest()
		top := words.Top(e.cfg.WordFreq.TopN)
		topWords := make([]string, 0, len(top))
		for _, entry := range top {
			topWords = append(topWords, fmt.Sprintf("%s:%d", entry.Word, entry.Count))
		}
		subdomains := words.Subdomains()
		hosts := make([]string, 0, len(subdomains))
		for _, sd := range subdomains {
			hosts = append(hosts, fmt.Sprintf("%s, %d", sd.Host, sd.Pages))
		}
		fields = append(fields,
			zap.Int("useful_pages", words.Pages()),
			zap.String("longest_page", longestURL),
			zap.Int("longest_page_words", longestWords),
			zap.Strings("top_words", topWords),
			zap.Strings("subdomains", hosts),
		)
	}
	e.logger.Info("crawl finished", fields...)
}
