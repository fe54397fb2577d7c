package frontier

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/carolinuci/spacetime-crawler/internal/config"
)

// Scope reports whether a URL falls inside the crawl's allowed hosts.
type Scope struct {
	suffixes       []string
	restrictedHost string
	restrictedPath string
}

// NewScope builds a scope matcher from configuration.
func NewScope(cfg config.ScopeConfig) (*Scope, error) {
	if len(cfg.AllowedDomains) == 0 {
		return nil, errors.New("scope requires at least one allowed domain")
	}
	suffixes := make([]string, 0, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			suffixes = append(suffixes, d)
		}
	}
	if len(suffixes) == 0 {
		return nil, errors.New("scope requires at least one allowed domain")
	}
	return &Scope{
		suffixes:       suffixes,
		restrictedHost: strings.TrimSuffix(strings.ToLower(cfg.RestrictedHost), "."),
		restrictedPath: cfg.RestrictedPathPrefix,
	}, nil
}

// InScope parses raw and reports whether it may be crawled. Unparseable URLs,
// non-http(s) schemes and hosts without a registrable domain are rejected.
func (s *Scope) InScope(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return s.inScope(u)
}

func (s *Scope) inScope(u *url.URL) bool {
	if u == nil || !httpScheme(u.Scheme) {
		return false
	}
	host, ok := registrableHost(u)
	if !ok {
		return false
	}
	if s.restrictedHost != "" && host == s.restrictedHost {
		return underPath(u.EscapedPath(), s.restrictedPath) || underPath(u.Path, s.restrictedPath)
	}
	for _, suffix := range s.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// underPath reports whether p is prefix itself or lies below it. The match
// stops at segment boundaries, so /a/bc is not under /a/b.
func underPath(p, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// registrableHost lowercases the host and checks it sits below a public suffix.
func registrableHost(u *url.URL) (string, bool) {
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || strings.ContainsAny(host, " /\\@") {
		return "", false
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return "", false
	}
	return host, true
}

func httpScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
