// Package report summarises a discovered-links log after a crawl.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/carolinuci/spacetime-crawler/internal/frontier"
)

// Summary counts what a links log contains.
type Summary struct {
	Lines      int
	UniqueURLs int
	// Subdomains maps each host under the reported domain to the number of
	// unique URLs seen on it.
	Subdomains map[string]int
}

// SortedSubdomains returns the hosts of Subdomains in alphabetical order.
func (s Summary) SortedSubdomains() []string {
	hosts := make([]string, 0, len(s.Subdomains))
	for h := range s.Subdomains {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Summarize reads one URL per line. Lines written in the summary format
// ("url - n") and lines carrying fragments or comma annotations collapse to
// the same URL. Hosts strictly below domain are tallied as subdomains.
func Summarize(r io.Reader, domain string) (Summary, error) {
	domain = strings.ToLower(strings.Trim(strings.TrimSpace(domain), "."))
	out := Summary{Subdomains: make(map[string]int)}
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out.Lines++
		if i := strings.Index(line, " - "); i >= 0 {
			line = line[:i]
		}
		key := frontier.Key(line)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		host := frontier.Subdomain(key)
		if domain != "" && strings.HasSuffix(host, "."+domain) {
			out.Subdomains[host]++
		}
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, fmt.Errorf("read links log: %w", err)
	}
	out.UniqueURLs = len(seen)
	return out, nil
}

// SummarizeFile runs Summarize over the file at path.
func SummarizeFile(path, domain string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open links log: %w", err)
	}
	defer f.Close()
	return Summarize(f, domain)
}

// Write prints s in a human readable form.
func Write(w io.Writer, s Summary, domain string) error {
	if _, err := fmt.Fprintf(w, "lines: %d\nunique urls: %d\nsubdomains of %s: %d\n",
		s.Lines, s.UniqueURLs, domain, len(s.Subdomains)); err != nil {
		return err
	}
	for _, host := range s.SortedSubdomains() {
		if _, err := fmt.Fprintf(w, "%s, %d\n", host, s.Subdomains[host]); err != nil {
			return err
		}
	}
	return nil
}
