// Package frontier decides which discovered URLs may re-enter the crawl
// frontier: normalization, scope, trap blocklist and extension filtering.
package frontier

import (
	"net/url"
	"strings"
)

// Normalize strips the fragment and any comma-delimited annotation from a
// raw URL. It never fails and is idempotent.
func Normalize(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// Key returns the ledger key for a URL.
func Key(raw string) string {
	return Normalize(strings.TrimSpace(raw))
}

// Subdomain returns the lowercase host of a URL, or "" when it has none.
func Subdomain(raw string) string {
	u, err := url.Parse(Normalize(raw))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}
