package frontier

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/carolinuci/spacetime-crawler/internal/config"
)

// ErrMalformedURL marks a URL that could not be parsed at all. Reaching the
// gate with one usually means the upstream extraction is broken.
var ErrMalformedURL = errors.New("malformed url")

// Reason explains an admission decision.
type Reason string

const (
	ReasonAdmitted   Reason = "admitted"
	ReasonMalformed  Reason = "malformed"
	ReasonBlocked    Reason = "blocked"
	ReasonOutOfScope Reason = "out_of_scope"
	ReasonExtension  Reason = "extension"
)

// Decision is the outcome of Admit.
type Decision struct {
	Admitted bool
	Reason   Reason
	// Pattern is the blocklist pattern that fired, when Reason is ReasonBlocked.
	Pattern string
}

// Admitter combines the blocklist, scope and extension checks.
type Admitter struct {
	scope     *Scope
	blocklist *Blocklist
}

// NewAdmitter wires an admitter from its matchers.
func NewAdmitter(scope *Scope, blocklist *Blocklist) *Admitter {
	return &Admitter{scope: scope, blocklist: blocklist}
}

// Patterns reports how many blocklist patterns the admitter applies.
func (a *Admitter) Patterns() int {
	return a.blocklist.Len()
}

// NewAdmitterFromConfig compiles the scope and blocklist sections of cfg.
func NewAdmitterFromConfig(cfg config.Config) (*Admitter, error) {
	scope, err := NewScope(cfg.Scope)
	if err != nil {
		return nil, err
	}
	blocklist, err := NewBlocklist(cfg.Blocklist.All())
	if err != nil {
		return nil, err
	}
	return NewAdmitter(scope, blocklist), nil
}

// Admit decides whether raw may enter the frontier. A non-nil error is only
// returned for URLs that cannot be parsed; the decision is then a rejection.
func (a *Admitter) Admit(raw string) (Decision, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return Decision{Reason: ReasonMalformed}, fmt.Errorf("%w: %q: %v", ErrMalformedURL, raw, err)
	}
	if pattern, blocked := a.blocklist.Match(raw); blocked {
		return Decision{Reason: ReasonBlocked, Pattern: pattern}, nil
	}
	if !a.scope.inScope(u) {
		return Decision{Reason: ReasonOutOfScope}, nil
	}
	if HasBlockedExtension(u.Path) {
		return Decision{Reason: ReasonExtension}, nil
	}
	return Decision{Admitted: true, Reason: ReasonAdmitted}, nil
}

// Allowed is Admit without the decision detail.
func (a *Admitter) Allowed(raw string) bool {
	d, err := a.Admit(raw)
	return err == nil && d.Admitted
}
