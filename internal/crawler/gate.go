package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/internal/config"
	"github.com/carolinuci/spacetime-crawler/internal/frontier"
	"github.com/carolinuci/spacetime-crawler/internal/ledger"
	"github.com/carolinuci/spacetime-crawler/internal/metrics"
	"github.com/carolinuci/spacetime-crawler/internal/quality"
	"github.com/carolinuci/spacetime-crawler/internal/scraper"
	"github.com/carolinuci/spacetime-crawler/internal/storage"
	"github.com/carolinuci/spacetime-crawler/internal/wordfreq"
)

// Gate bundles the admission and quality-gating components built from one
// configuration. The crawl engine and the HTTP API share it.
type Gate struct {
	Admitter  *frontier.Admitter
	Ledger    ledger.Ledger
	Evaluator *quality.Evaluator
	Scraper   *scraper.Scraper
	// Words is nil when word counting is disabled.
	Words *wordfreq.Counter

	closers   []func() error
	closeOnce sync.Once
}

// NewGate builds a Gate. When l is nil the ledger is selected by cfg and
// closed with the gate; an injected ledger stays open.
func NewGate(ctx context.Context, cfg config.Config, l ledger.Ledger, logger *zap.Logger, m *metrics.Metrics) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{Ledger: l}

	var err error
	if g.Admitter, err = frontier.NewAdmitterFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("admitter: %w", err)
	}

	if g.Ledger == nil {
		if g.Ledger, err = ledger.New(ctx, cfg.Ledger, logger.Named("ledger")); err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
		g.closers = append(g.closers, g.Ledger.Close)
	}

	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		_ = g.Close()
		return nil, err
	}
	pipeline := storage.NewPipeline(sinks...)
	g.closers = append(g.closers, pipeline.Close)

	if cfg.WordFreq.Enabled {
		stopwords, err := wordfreq.LoadStopwords(cfg.WordFreq.StopwordsPath)
		if err != nil {
			_ = g.Close()
			return nil, err
		}
		g.Words = wordfreq.NewCounter(stopwords, cfg.WordFreq.MinTokenLength)
	}

	g.Evaluator = quality.NewEvaluator(cfg.Quality, g.Ledger, logger.Named("quality"))
	opts := scraper.ExtractorOptions{
		Ledger:    g.Ledger,
		Evaluator: g.Evaluator,
		Words:     g.Words,
		Logger:    logger.Named("extractor"),
	}
	if pipeline != nil {
		opts.Sink = pipeline
	}
	extractor, err := scraper.NewExtractor(opts)
	if err != nil {
		_ = g.Close()
		return nil, err
	}
	g.Scraper = scraper.New(extractor, g.Admitter, m, logger.Named("scraper"))

	logger.Info("gate ready",
		zap.Strings("allowed_domains", cfg.Scope.AllowedDomains),
		zap.Int("blocklist_patterns", g.Admitter.Patterns()),
		zap.String("ledger", cfg.Ledger.Backend),
		zap.Int("sinks", len(sinks)),
		zap.Bool("word_freq", g.Words != nil),
	)
	return g, nil
}

// Close releases the ledger and link sinks owned by the gate.
func (g *Gate) Close() error {
	var err error
	g.closeOnce.Do(func() {
		for i := len(g.closers) - 1; i >= 0; i-- {
			if cerr := g.closers[i](); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	})
	return err
}

func openSinks(ctx context.Context, cfg config.Config) ([]storage.LinkSink, error) {
	fileLog, err := storage.OpenFileLog(cfg.LinkLog)
	if err != nil {
		return nil, err
	}
	sinks := []storage.LinkSink{fileLog}

	if cfg.DB.Driver != "" && cfg.DB.DSN != "" {
		sqlWriter, err := storage.NewSQLWriter(ctx, cfg.DB)
		if err != nil {
			_ = fileLog.Close()
			return nil, err
		}
		sinks = append(sinks, sqlWriter)
	}
	return sinks, nil
}
