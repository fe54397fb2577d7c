package api

import (
	"net/http"
	"time"

	"github.com/carolinuci/spacetime-crawler/pkg/types"
)

// AdmitRequest lists URLs to run through admission.
type AdmitRequest struct {
	URLs []string `json:"urls"`
}

// AdmitDecision is the admission outcome for one URL.
type AdmitDecision struct {
	URL      string `json:"url"`
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason"`
	Pattern  string `json:"pattern,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AdmitResponse carries decisions in request order.
type AdmitResponse struct {
	Decisions []AdmitDecision `json:"decisions"`
}

// PageRequest describes a page fetched elsewhere.
type PageRequest struct {
	URL        string            `json:"url"`
	FinalURL   string            `json:"final_url,omitempty"`
	StatusCode int               `json:"status_code"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers,omitempty"`
}

func (p PageRequest) page() *types.PageResponse {
	headers := make(http.Header, len(p.Headers))
	for k, v := range p.Headers {
		headers.Set(k, v)
	}
	return &types.PageResponse{
		URL:        p.URL,
		FinalURL:   p.FinalURL,
		StatusCode: p.StatusCode,
		Body:       []byte(p.Body),
		Headers:    headers,
		FetchedAt:  time.Now(),
	}
}

// VerdictResponse is the quality verdict for a page.
type VerdictResponse struct {
	LowValue    bool    `json:"low_value"`
	Reason      string  `json:"reason"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	TextLength  int     `json:"text_length"`
	LinkRatio   float64 `json:"link_ratio"`
}

// ScrapeResponse is the outcome of running a page through the gate.
type ScrapeResponse struct {
	PageURL  string         `json:"page_url"`
	Outcome  string         `json:"outcome"`
	Verdict  string         `json:"verdict,omitempty"`
	Links    []string       `json:"links"`
	Admitted []string       `json:"admitted"`
	Rejected map[string]int `json:"rejected,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
}

// WordCount is one entry of the word frequency table.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// StatsResponse summarises the ledger and word counter.
type StatsResponse struct {
	UniqueURLs   int64          `json:"unique_urls"`
	Fingerprints int64          `json:"fingerprints"`
	UsefulPages  int            `json:"useful_pages"`
	LongestPage  string         `json:"longest_page,omitempty"`
	LongestWords int            `json:"longest_page_words,omitempty"`
	TopWords     []WordCount    `json:"top_words,omitempty"`
	Subdomains   map[string]int `json:"subdomains,omitempty"`
}
