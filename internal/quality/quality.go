// Package quality decides whether a fetched page carries enough unique
// information to be counted and mined for links.
package quality

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/internal/config"
	"github.com/carolinuci/spacetime-crawler/internal/ledger"
	"github.com/carolinuci/spacetime-crawler/internal/processor"
	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

// Reason names the check that produced a verdict.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonBadStatus   Reason = "bad_status"
	ReasonEmptyBody   Reason = "empty_body"
	ReasonThinContent Reason = "thin_content"
	ReasonDuplicate   Reason = "duplicate"
	ReasonLinkFarm    Reason = "link_farm"
	ReasonOversized   Reason = "oversized"
	ReasonBadHeader   Reason = "bad_header"
	ReasonParseError  Reason = "parse_error"
	ReasonLedgerError Reason = "ledger_error"
)

// Verdict is the outcome of a quality evaluation. Low-value pages are not an
// error; Err is only set when parsing or the ledger failed.
type Verdict struct {
	LowValue    bool
	Reason      Reason
	Fingerprint string
	TextLength  int
	LinkRatio   float64
	Err         error
}

func lowValue(reason Reason) Verdict {
	return Verdict{LowValue: true, Reason: reason}
}

// Evaluator applies the thin-content, duplicate, link-farm and size checks.
type Evaluator struct {
	cfg    config.QualityConfig
	ledger ledger.Ledger
	logger *zap.Logger
}

// NewEvaluator builds an evaluator that records fingerprints in l.
func NewEvaluator(cfg config.QualityConfig, l ledger.Ledger, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{cfg: cfg, ledger: l, logger: logger}
}

// Fingerprint is the hex SHA-256 of collapsed page text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Evaluate parses the page body and judges it.
func (e *Evaluator) Evaluate(ctx context.Context, page *types.PageResponse) Verdict {
	if v, done := precheck(page); done {
		return v
	}
	doc, err := processor.Parse(page.Body)
	if err != nil {
		v := lowValue(ReasonParseError)
		v.Err = err
		return v
	}
	return e.EvaluateDocument(ctx, page, doc)
}

// EvaluateDocument judges a page that was already parsed into doc. Checks run
// in order and stop at the first failure; a new fingerprint is recorded even
// when a later check rejects the page.
func (e *Evaluator) EvaluateDocument(ctx context.Context, page *types.PageResponse, doc *processor.Document) Verdict {
	if v, done := precheck(page); done {
		return v
	}
	if doc == nil {
		return lowValue(ReasonParseError)
	}

	textLen := doc.TextLength()
	if textLen < e.cfg.MinTextLength {
		v := lowValue(ReasonThinContent)
		v.TextLength = textLen
		return v
	}

	v := Verdict{
		Reason:      ReasonOK,
		Fingerprint: Fingerprint(doc.Text),
		TextLength:  textLen,
		LinkRatio:   doc.LinkRatio(),
	}

	added, err := e.ledger.RecordFingerprint(ctx, v.Fingerprint)
	if err != nil {
		e.logger.Warn("record fingerprint failed",
			zap.String("url", page.BaseURL()),
			zap.Error(err),
		)
		v.LowValue, v.Reason, v.Err = true, ReasonLedgerError, err
		return v
	}
	if !added {
		v.LowValue, v.Reason = true, ReasonDuplicate
		return v
	}

	if v.LinkRatio > e.cfg.MaxLinkRatio {
		v.LowValue, v.Reason = true, ReasonLinkFarm
		return v
	}

	if reason, ok := e.checkContentLength(page.Header("Content-Length")); !ok {
		v.LowValue, v.Reason = true, reason
		return v
	}
	return v
}

func (e *Evaluator) checkContentLength(raw string) (Reason, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ReasonOK, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return ReasonBadHeader, false
	}
	if n > e.cfg.MaxContentLength {
		return ReasonOversized, false
	}
	return ReasonOK, true
}

func precheck(page *types.PageResponse) (Verdict, bool) {
	if page == nil || page.StatusCode != http.StatusOK {
		return lowValue(ReasonBadStatus), true
	}
	if len(page.Body) == 0 {
		return lowValue(ReasonEmptyBody), true
	}
	return Verdict{}, false
}

// String renders a verdict for logs.
func (v Verdict) String() string {
	if !v.LowValue {
		return fmt.Sprintf("ok text=%d ratio=%.3f", v.TextLength, v.LinkRatio)
	}
	return fmt.Sprintf("low_value reason=%s text=%d", v.Reason, v.TextLength)
}
