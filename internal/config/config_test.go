package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
crawl:
  seeds:
    - url: https://www.ics.uci.edu
`

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"cs.uci.edu", "ics.uci.edu", "informatics.uci.edu", "stat.uci.edu"}, cfg.Scope.AllowedDomains)
	assert.Equal(t, "today.uci.edu", cfg.Scope.RestrictedHost)
	assert.Equal(t, 50, cfg.Quality.MinTextLength)
	assert.Equal(t, 5.0, cfg.Quality.MaxLinkRatio)
	assert.Equal(t, int64(10*1024*1024), cfg.Quality.MaxContentLength)
	assert.Equal(t, LedgerMemory, cfg.Ledger.Backend)
	assert.Equal(t, LogFormatURLs, cfg.LinkLog.Format)
	assert.Equal(t, DefaultBlocklistPatterns(), cfg.Blocklist.All())
}

func TestLoadFromReaderOverrides(t *testing.T) {
	doc := `
scope:
  allowed_domains: ["  Example.COM. ", "example.com", "Other.org"]
  restricted_host: ""
  restricted_path_prefix: ""
blocklist:
  patterns: ['[?&]page=']
  extra_patterns: ['/calendar/']
quality:
  min_text_length: 10
ledger:
  backend: REDIS
  redis:
    addr: redis:6379
    timeout: 3
link_log:
  format: Summary
crawl:
  seeds:
    - url: " https://example.com/ "
  request_timeout: 1500ms
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"example.com", "other.org"}, cfg.Scope.AllowedDomains)
	assert.Equal(t, []string{`[?&]page=`, `/calendar/`}, cfg.Blocklist.All())
	assert.Equal(t, 10, cfg.Quality.MinTextLength)
	assert.Equal(t, LedgerRedis, cfg.Ledger.Backend)
	assert.Equal(t, 3*time.Second, cfg.Ledger.Redis.Timeout.Duration)
	assert.Equal(t, LogFormatSummary, cfg.LinkLog.Format)
	assert.Equal(t, "https://example.com/", cfg.Crawl.Seeds[0].URL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Crawl.RequestTimeout.Duration)
}

func TestValidateFailsFast(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty allow list", func(c *Config) { c.Scope.AllowedDomains = nil }, "allowed_domains"},
		{"half restricted", func(c *Config) { c.Scope.RestrictedPathPrefix = "" }, "set together"},
		{"bad pattern", func(c *Config) { c.Blocklist.ExtraPatterns = []string{"(unclosed"} }, "blocklist pattern"},
		{"zero ratio", func(c *Config) { c.Quality.MaxLinkRatio = 0 }, "max_link_ratio"},
		{"unknown ledger", func(c *Config) { c.Ledger.Backend = "etcd" }, "ledger backend"},
		{"bad log format", func(c *Config) { c.LinkLog.Format = "csv" }, "link_log.format"},
		{"db half set", func(c *Config) { c.DB.Driver = "postgres" }, "db.driver"},
		{"missing stopwords", func(c *Config) { c.WordFreq.StopwordsPath = filepath.Join(t.TempDir(), "nope.txt") }, "stopwords_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Error(t, cfg.ValidateCrawl())
		})
	}
}

func TestValidateCrawlFailsFast(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no seeds", func(c *Config) { c.Crawl.Seeds = nil }, "seed"},
		{"negative depth", func(c *Config) { c.Crawl.MaxDepth = -1 }, "crawl.max_depth"},
		{"blank user agent", func(c *Config) { c.Crawl.UserAgent = " " }, "crawl.user_agent"},
		{"no workers", func(c *Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"render without sessions", func(c *Config) {
			c.Rendering.Enabled = true
			c.Rendering.ConcurrentSessions = 0
		}, "rendering.concurrent_sessions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Crawl.Seeds = []SeedConfig{{URL: "https://www.ics.uci.edu"}}
			tt.mutate(&cfg)
			assert.NoError(t, cfg.Validate())
			err := cfg.ValidateCrawl()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAcceptsGateOnlyConfig(t *testing.T) {
	doc := `
ledger:
  backend: memory
link_log:
  path: links.txt
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Empty(t, cfg.Crawl.Seeds)
	assert.ErrorContains(t, cfg.ValidateCrawl(), "seed")

	cfg.Crawl.Seeds = []SeedConfig{{URL: "https://www.ics.uci.edu"}}
	cfg.Crawl.MaxDepth = 0
	assert.NoError(t, cfg.ValidateCrawl())
}

func TestValidateAcceptsExistingStopwords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(path, []byte("the\nand\n"), 0o600))

	cfg := Default()
	cfg.Crawl.Seeds = []SeedConfig{{URL: "https://www.ics.uci.edu"}}
	cfg.WordFreq.StopwordsPath = path
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("crawl:\n  seedz: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode config")
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Crawl.Seeds, 4)
	assert.Equal(t, 1500*time.Millisecond, cfg.Rendering.CaptureDelay.Duration)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}
