package frontier

import (
	"fmt"
	"regexp"
	"strings"
)

// Blocklist rejects URLs that match known crawler-trap or low-value patterns.
// A single hit is enough, so the patterns are evaluated as one combined
// expression and only consulted individually to label a hit.
type Blocklist struct {
	combined *regexp.Regexp
	patterns []*regexp.Regexp
}

// NewBlocklist compiles patterns case-insensitively.
func NewBlocklist(patterns []string) (*Blocklist, error) {
	b := &Blocklist{}
	parts := make([]string, 0, len(patterns))
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			return nil, fmt.Errorf("compile blocklist pattern %q: %w", raw, err)
		}
		b.patterns = append(b.patterns, re)
		parts = append(parts, "(?:"+raw+")")
	}
	if len(parts) == 0 {
		return b, nil
	}
	combined, err := regexp.Compile("(?i)" + strings.Join(parts, "|"))
	if err != nil {
		return nil, fmt.Errorf("compile blocklist: %w", err)
	}
	b.combined = combined
	return b, nil
}

// Allowed reports whether raw matches none of the patterns.
func (b *Blocklist) Allowed(raw string) bool {
	return b == nil || b.combined == nil || !b.combined.MatchString(raw)
}

// Match returns the first pattern that blocks raw.
func (b *Blocklist) Match(raw string) (string, bool) {
	if b.Allowed(raw) {
		return "", false
	}
	for _, re := range b.patterns {
		if re.MatchString(raw) {
			return strings.TrimPrefix(re.String(), "(?i)"), true
		}
	}
	return "", true
}

// Len reports how many patterns are loaded.
func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.patterns)
}
