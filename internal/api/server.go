// Package api exposes the admission and quality gate over HTTP so fetchers
// running outside this process can share one ledger and one set of rules.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/internal/crawler"
)

const maxRequestBytes = 16 << 20

// Server exposes the HTTP API of the gate.
type Server struct {
	gate   *crawler.Gate
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewServer wires handlers onto an HTTP mux.
func NewServer(gate *crawler.Gate, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		gate:   gate,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/gate/admit", s.handleAdmit)
	s.mux.HandleFunc("/api/gate/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("/api/gate/scrape", s.handleScrape)
	s.mux.HandleFunc("/api/gate/stats", s.handleStats)
	s.mux.HandleFunc("/openapi.yaml", s.handleOpenAPI)
	s.mux.HandleFunc("/docs", s.handleDocs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req AdmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		http.Error(w, "urls must not be empty", http.StatusBadRequest)
		return
	}

	resp := AdmitResponse{Decisions: make([]AdmitDecision, 0, len(req.URLs))}
	for _, raw := range req.URLs {
		d, err := s.gate.Admitter.Admit(raw)
		out := AdmitDecision{
			URL:      raw,
			Admitted: d.Admitted,
			Reason:   string(d.Reason),
			Pattern:  d.Pattern,
		}
		if err != nil {
			out.Error = err.Error()
		}
		resp.Decisions = append(resp.Decisions, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvaluate records the page fingerprint, so evaluating the same content
// twice reports a duplicate.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req PageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v := s.gate.Evaluator.Evaluate(r.Context(), req.page())
	if v.Err != nil {
		s.logger.Warn("evaluate failed", zap.String("url", req.URL), zap.Error(v.Err))
	}
	writeJSON(w, http.StatusOK, VerdictResponse{
		LowValue:    v.LowValue,
		Reason:      string(v.Reason),
		Fingerprint: v.Fingerprint,
		TextLength:  v.TextLength,
		LinkRatio:   v.LinkRatio,
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req PageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.gate.Scraper.ScrapePage(r.Context(), req.page())

	resp := ScrapeResponse{
		PageURL:  res.PageURL,
		Outcome:  string(res.Outcome),
		Links:    nonNil(res.Links),
		Admitted: nonNil(res.Admitted),
	}
	if res.Verdict.LowValue {
		resp.Verdict = string(res.Verdict.Reason)
	}
	if len(res.Rejected) > 0 {
		resp.Rejected = make(map[string]int, len(res.Rejected))
		for reason, n := range res.Rejected {
			resp.Rejected[string(reason)] = n
		}
	}
	if err != nil {
		resp.Errors = errorStrings(err)
		s.logger.Debug("scrape reported errors", zap.String("url", req.URL), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	top := 20
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "top must be a non-negative integer", http.StatusBadRequest)
			return
		}
		top = n
	}

	stats, err := s.gate.Ledger.Stats(r.Context())
	if err != nil {
		s.logger.Error("ledger stats failed", zap.Error(err))
		http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
		return
	}
	resp := StatsResponse{UniqueURLs: stats.URLs, Fingerprints: stats.Fingerprints}
	if words := s.gate.Words; words != nil {
		resp.UsefulPages = words.Pages()
		resp.LongestPage, resp.LongestWords = words.Longest()
		for _, e := range words.Top(top) {
			resp.TopWords = append(resp.TopWords, WordCount{Word: e.Word, Count: e.Count})
		}
		if subs := words.Subdomains(); len(subs) > 0 {
			resp.Subdomains = make(map[string]int, len(subs))
			for _, sd := range subs {
				resp.Subdomains[sd.Host] = sd.Pages
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, fmt.Sprintf("invalid json payload: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func errorStrings(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
