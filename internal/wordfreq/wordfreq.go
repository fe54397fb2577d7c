// Package wordfreq keeps the word statistics reported at the end of a crawl.
// It is a side channel: nothing in it feeds back into crawl decisions.
package wordfreq

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/carolinuci/spacetime-crawler/internal/frontier"
)

//go:embed stopwords.txt
var defaultStopwords string

// Tokenize lowercases text and splits it into runs of letters, digits and
// underscores.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}

// Stopwords is a set of words excluded from frequency counts.
type Stopwords map[string]struct{}

// Contains reports whether word is a stopword.
func (s Stopwords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// DefaultStopwords returns the built-in English list.
func DefaultStopwords() Stopwords {
	sw, _ := ParseStopwords(strings.NewReader(defaultStopwords))
	return sw
}

// LoadStopwords reads one word per line from path. An empty path selects the
// built-in list; a missing file is an error.
func LoadStopwords(path string) (Stopwords, error) {
	if path == "" {
		return DefaultStopwords(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stopwords: %w", err)
	}
	defer f.Close()
	return ParseStopwords(f)
}

// ParseStopwords reads one word per line. Blank lines and lines starting
// with # are ignored.
func ParseStopwords(r io.Reader) (Stopwords, error) {
	sw := make(Stopwords)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sw[line] = struct{}{}
		// Contractions tokenize into their parts.
		for _, part := range Tokenize(line) {
			sw[part] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stopwords: %w", err)
	}
	return sw, nil
}

// Entry is one word with its count.
type Entry struct {
	Word      string
	Count     int
	Documents int
}

// Subdomain is one host with the number of distinct pages counted on it.
type Subdomain struct {
	Host  string
	Pages int
}

// Counter accumulates term and document frequencies across pages.
type Counter struct {
	stopwords Stopwords
	minLength int

	mu           sync.Mutex
	terms        map[string]int
	documents    map[string]int
	subdomains   map[string]int
	pages        int
	longestURL   string
	longestWords int
}

// NewCounter builds a counter that ignores stopwords and tokens shorter than
// minLength runes.
func NewCounter(stopwords Stopwords, minLength int) *Counter {
	if stopwords == nil {
		stopwords = Stopwords{}
	}
	return &Counter{
		stopwords:  stopwords,
		minLength:  minLength,
		terms:      make(map[string]int),
		documents:  make(map[string]int),
		subdomains: make(map[string]int),
	}
}

// Observe records the tokens of one page. The page's word count, used for
// Longest, includes stopwords.
func (c *Counter) Observe(pageURL string, tokens []string) {
	if c == nil {
		return
	}
	kept := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < c.minLength || c.stopwords.Contains(tok) {
			continue
		}
		kept[tok]++
	}
	host := frontier.Subdomain(pageURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages++
	for tok, n := range kept {
		c.terms[tok] += n
		c.documents[tok]++
	}
	if host != "" {
		c.subdomains[host]++
	}
	if len(tokens) > c.longestWords {
		c.longestWords = len(tokens)
		c.longestURL = pageURL
	}
}

// ObserveText tokenizes text and records it.
func (c *Counter) ObserveText(pageURL, text string) {
	c.Observe(pageURL, Tokenize(text))
}

// Top returns the n most frequent words, ties broken alphabetically. n <= 0
// returns every word.
func (c *Counter) Top(n int) []Entry {
	c.mu.Lock()
	entries := make([]Entry, 0, len(c.terms))
	for word, count := range c.terms {
		entries = append(entries, Entry{Word: word, Count: count, Documents: c.documents[word]})
	}
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Word < entries[j].Word
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Longest returns the page with the most words.
func (c *Counter) Longest() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.longestURL, c.longestWords
}

// Pages returns how many pages were observed.
func (c *Counter) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages
}

// Subdomains lists page counts per host, sorted by host.
func (c *Counter) Subdomains() []Subdomain {
	c.mu.Lock()
	out := make([]Subdomain, 0, len(c.subdomains))
	for host, pages := range c.subdomains {
		out = append(out, Subdomain{Host: host, Pages: pages})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}
