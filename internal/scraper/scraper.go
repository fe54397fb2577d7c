package scraper

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/internal/frontier"
	"github.com/carolinuci/spacetime-crawler/internal/metrics"
	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

// Result is an Extraction plus the admission outcome of each link.
type Result struct {
	Extraction
	Admitted []string
	Rejected map[frontier.Reason]int
}

// Scraper runs the extractor and filters its links through the admitter.
type Scraper struct {
	extractor *Extractor
	admitter  *frontier.Admitter
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New builds a scraper. m may be nil.
func New(extractor *Extractor, admitter *frontier.Admitter, m *metrics.Metrics, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{extractor: extractor, admitter: admitter, metrics: m, logger: logger}
}

// Scrape returns the admitted links of page in document order, without
// repeats. The error, when set, joins malformed-URL and ledger failures; the
// returned links are still valid.
func (s *Scraper) Scrape(ctx context.Context, page *types.PageResponse) ([]string, error) {
	res, err := s.ScrapePage(ctx, page)
	return res.Admitted, err
}

// ScrapePage is Scrape with the full per-page detail.
func (s *Scraper) ScrapePage(ctx context.Context, page *types.PageResponse) (Result, error) {
	ext, extractErr := s.extractor.Extract(ctx, page)
	res := Result{Extraction: ext}

	outcome := string(ext.Outcome)
	if ext.Outcome == OutcomeLowValue {
		outcome = string(ext.Verdict.Reason)
	}
	s.metrics.ObservePage(outcome)
	if ext.Outcome != OutcomeUseful {
		s.logger.Debug("page yielded no links",
			zap.String("url", ext.PageURL),
			zap.String("outcome", outcome),
		)
		return res, extractErr
	}
	s.metrics.AddLinks(len(ext.Links))

	errs := []error{extractErr}
	seen := make(map[string]struct{}, len(ext.Links))
	for _, link := range ext.Links {
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		decision, err := s.admitter.Admit(link)
		s.metrics.ObserveAdmission(decision.Admitted, string(decision.Reason))
		if err != nil {
			errs = append(errs, err)
		}
		if decision.Admitted {
			res.Admitted = append(res.Admitted, link)
			continue
		}
		if res.Rejected == nil {
			res.Rejected = make(map[frontier.Reason]int)
		}
		res.Rejected[decision.Reason]++
		s.logger.Debug("link rejected",
			zap.String("url", link),
			zap.String("reason", string(decision.Reason)),
			zap.String("pattern", decision.Pattern),
		)
	}
	return res, errors.Join(errs...)
}
