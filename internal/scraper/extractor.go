// Package scraper turns a fetched page into the list of URLs that may
// re-enter the crawl frontier.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/internal/frontier"
	"github.com/carolinuci/spacetime-crawler/internal/ledger"
	"github.com/carolinuci/spacetime-crawler/internal/processor"
	"github.com/carolinuci/spacetime-crawler/internal/quality"
	"github.com/carolinuci/spacetime-crawler/internal/storage"
	"github.com/carolinuci/spacetime-crawler/internal/wordfreq"
	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

// Outcome classifies what happened to a page.
type Outcome string

const (
	OutcomeUseful      Outcome = "useful"
	OutcomeBadStatus   Outcome = "bad_status"
	OutcomeAlreadySeen Outcome = "already_seen"
	OutcomeUnparseable Outcome = "unparseable"
	OutcomeLowValue    Outcome = "low_value"
	OutcomeLedgerError Outcome = "ledger_error"
)

// Extraction is the result of Extract. Links is empty unless Outcome is
// OutcomeUseful.
type Extraction struct {
	PageURL string
	Outcome Outcome
	Verdict quality.Verdict
	Links   []string
}

// Extractor pulls normalized absolute links from useful pages.
type Extractor struct {
	ledger    ledger.Ledger
	evaluator *quality.Evaluator
	sink      storage.LinkSink
	words     *wordfreq.Counter
	logger    *zap.Logger
}

// ExtractorOptions wires an Extractor. Sink and Words are optional.
type ExtractorOptions struct {
	Ledger    ledger.Ledger
	Evaluator *quality.Evaluator
	Sink      storage.LinkSink
	Words     *wordfreq.Counter
	Logger    *zap.Logger
}

// NewExtractor builds an extractor.
func NewExtractor(opts ExtractorOptions) (*Extractor, error) {
	if opts.Ledger == nil {
		return nil, errors.New("extractor requires a ledger")
	}
	if opts.Evaluator == nil {
		return nil, errors.New("extractor requires a quality evaluator")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Extractor{
		ledger:    opts.Ledger,
		evaluator: opts.Evaluator,
		sink:      opts.Sink,
		words:     opts.Words,
		logger:    opts.Logger,
	}, nil
}

// Extract returns every hyperlink of page, resolved against its final URL
// and normalized. Pages that are not 200, were already processed, cannot be
// parsed or are low value yield no links and leave no log entry. A page is
// marked processed before it is parsed, so a later copy of the same final
// URL is skipped even when this one turns out to be low value.
//
// Hrefs that cannot be resolved are skipped and reported through the
// returned error, which wraps frontier.ErrMalformedURL.
func (x *Extractor) Extract(ctx context.Context, page *types.PageResponse) (Extraction, error) {
	if page == nil || page.StatusCode != 200 {
		return Extraction{Outcome: OutcomeBadStatus, PageURL: frontier.Key(page.BaseURL())}, nil
	}

	res := Extraction{PageURL: frontier.Key(page.BaseURL())}
	fresh, err := x.ledger.MarkSeen(ctx, res.PageURL)
	if err != nil {
		res.Outcome = OutcomeLedgerError
		return res, fmt.Errorf("mark %s seen: %w", res.PageURL, err)
	}
	if !fresh {
		res.Outcome = OutcomeAlreadySeen
		return res, nil
	}

	doc, err := processor.Parse(page.Body)
	if err != nil {
		x.logger.Debug("page not parseable", zap.String("url", res.PageURL), zap.Error(err))
		res.Outcome = OutcomeUnparseable
		return res, nil
	}

	res.Verdict = x.evaluator.EvaluateDocument(ctx, page, doc)
	if res.Verdict.LowValue {
		res.Outcome = OutcomeLowValue
		return res, nil
	}

	base, err := url.Parse(strings.TrimSpace(page.BaseURL()))
	if err != nil {
		res.Outcome = OutcomeUnparseable
		return res, fmt.Errorf("%w: base %q: %v", frontier.ErrMalformedURL, page.BaseURL(), err)
	}

	var errs []error
	links := make([]string, 0, len(doc.Hrefs))
	for _, href := range doc.Hrefs {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %q on %s: %v", frontier.ErrMalformedURL, href, res.PageURL, err))
			continue
		}
		link := frontier.Normalize(base.ResolveReference(ref).String())
		if link == "" {
			continue
		}
		links = append(links, link)
	}
	res.Links = links
	res.Outcome = OutcomeUseful

	if x.sink != nil {
		if err := x.sink.Append(ctx, storage.Record{SourceURL: res.PageURL, Links: links}); err != nil {
			x.logger.Error("link log append failed", zap.String("url", res.PageURL), zap.Error(err))
		}
	}
	if x.words != nil {
		x.words.ObserveText(res.PageURL, doc.Text)
	}
	return res, errors.Join(errs...)
}
