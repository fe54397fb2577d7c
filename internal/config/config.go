package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures everything the gate and its host crawl loop need at startup.
type Config struct {
	Scope     ScopeConfig     `yaml:"scope"`
	Blocklist BlocklistConfig `yaml:"blocklist"`
	Quality   QualityConfig   `yaml:"quality"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	LinkLog   LinkLogConfig   `yaml:"link_log"`
	DB        SQLConfig       `yaml:"db"`
	WordFreq  WordFreqConfig  `yaml:"word_freq"`
	Worker    WorkerConfig    `yaml:"worker"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Rendering RenderingConfig `yaml:"rendering"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ScopeConfig defines which hosts and paths the crawl may traverse.
type ScopeConfig struct {
	AllowedDomains       []string `yaml:"allowed_domains"`
	RestrictedHost       string   `yaml:"restricted_host"`
	RestrictedPathPrefix string   `yaml:"restricted_path_prefix"`
}

// BlocklistConfig lists trap patterns. Patterns replaces the defaults when set;
// ExtraPatterns is appended to whatever Patterns ends up being.
type BlocklistConfig struct {
	Patterns      []string `yaml:"patterns"`
	ExtraPatterns []string `yaml:"extra_patterns"`
}

// QualityConfig holds the low-value page thresholds.
type QualityConfig struct {
	MinTextLength    int     `yaml:"min_text_length"`
	MaxLinkRatio     float64 `yaml:"max_link_ratio"`
	MaxContentLength int64   `yaml:"max_content_length"`
}

// LedgerConfig selects the dedup ledger backend.
type LedgerConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the shared Redis ledger.
type RedisConfig struct {
	Addr      string   `yaml:"addr"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"key_prefix"`
	Timeout   Duration `yaml:"timeout"`
}

// LinkLogConfig configures the append-only discovered-link log.
type LinkLogConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// SQLConfig describes an optional Postgres sink for discovered links.
type SQLConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	CreateIfMissing bool     `yaml:"create_if_missing"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// WordFreqConfig controls the word-frequency side channel.
type WordFreqConfig struct {
	Enabled        bool   `yaml:"enabled"`
	StopwordsPath  string `yaml:"stopwords_path"`
	MinTokenLength int    `yaml:"min_token_length"`
	TopN           int    `yaml:"top_n"`
}

// WorkerConfig controls concurrency and queue sizing of the host loop.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

// CrawlConfig controls the host crawl loop.
type CrawlConfig struct {
	Seeds          []SeedConfig      `yaml:"seeds"`
	MaxDepth       int               `yaml:"max_depth"`
	MaxPages       int               `yaml:"max_pages"`
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	RequestTimeout Duration          `yaml:"request_timeout"`
	MaxBodyBytes   int64             `yaml:"max_body_bytes"`
	ProxyURL       string            `yaml:"proxy_url"`
}

// RenderingConfig enables headless Chrome rendering in the host fetcher.
type RenderingConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Timeout            Duration `yaml:"timeout"`
	WaitForSelector    string   `yaml:"wait_for_selector"`
	CaptureDelay       Duration `yaml:"capture_delay"`
	ConcurrentSessions int      `yaml:"concurrent_sessions"`
	DisableHeadless    bool     `yaml:"disable_headless"`
}

// SeedConfig declares an initial URL and optional depth override.
type SeedConfig struct {
	URL      string `yaml:"url"`
	MaxDepth int    `yaml:"max_depth"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// MetricsConfig exposes prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

// Link log formats.
const (
	LogFormatURLs    = "urls"
	LogFormatSummary = "summary"
)

// Default returns a Config populated with the crawl's standard scope and thresholds.
func Default() Config {
	return Config{
		Scope: ScopeConfig{
			AllowedDomains: []string{
				"ics.uci.edu",
				"cs.uci.edu",
				"informatics.uci.edu",
				"stat.uci.edu",
			},
			RestrictedHost:       "today.uci.edu",
			RestrictedPathPrefix: "/department/information_computer_sciences",
		},
		Blocklist: BlocklistConfig{
			Patterns: DefaultBlocklistPatterns(),
		},
		Quality: QualityConfig{
			MinTextLength:    50,
			MaxLinkRatio:     5,
			MaxContentLength: 10 * 1024 * 1024,
		},
		Ledger: LedgerConfig{
			Backend: LedgerMemory,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "spacetime:",
				Timeout:   DurationFrom(2 * time.Second),
			},
		},
		LinkLog: LinkLogConfig{
			Path:   "found_urls.txt",
			Format: LogFormatURLs,
		},
		DB: SQLConfig{
			AutoMigrate: true,
		},
		WordFreq: WordFreqConfig{
			Enabled:        true,
			MinTokenLength: 2,
			TopN:           50,
		},
		Worker: WorkerConfig{
			Concurrency: 8,
			QueueSize:   4096,
		},
		Crawl: CrawlConfig{
			MaxDepth:       8,
			MaxPages:       0,
			UserAgent:      "IR UW24 spacetime-crawler",
			Headers:        map[string]string{},
			RequestTimeout: DurationFrom(10 * time.Second),
			MaxBodyBytes:   16 * 1024 * 1024,
		},
		Rendering: RenderingConfig{
			Timeout:            DurationFrom(30 * time.Second),
			CaptureDelay:       DurationFrom(1500 * time.Millisecond),
			ConcurrentSessions: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// DefaultBlocklistPatterns returns the trap patterns applied when the
// configuration does not override them. Matching is case-insensitive.
func DefaultBlocklistPatterns() []string {
	return []string{
		`[?&](page|paged|sort|order|orderby)=`,
		`[?&](sessionid|sid|phpsessid|jsessionid)=`,
		`\.(mp3|mp4|avi|wmv|flv|doc|docx|ppt|pptx|xls|xlsx)$`,
		`/(assets|static|public|dist)/`,
		`^mailto:`,
		`^tel:`,
		`[?&](search|query|q|term|s)=`,
		`[?&](comment|replytocom)=`,
		`/(199\d|20\d{2})/`,
		`[?&](token|auth|key)=`,
		`\.(rss|xml|atom)$`,
		`[?&]lang=`,
		`/(en|fr|de|es|jp)/`,
		`[?&](affiliate|partner|ref)=`,
		`[?&](debug|test)=`,
		`/(api|v1|v2|json|graphql)/`,
		`/(status|heartbeat|healthcheck)(/|$)`,
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate rejects configurations the gate cannot start with. Crawl
// settings are checked by ValidateCrawl.
func (c Config) Validate() error {
	if len(c.Scope.AllowedDomains) == 0 {
		return errors.New("scope.allowed_domains must list at least one domain")
	}
	if (c.Scope.RestrictedHost == "") != (c.Scope.RestrictedPathPrefix == "") {
		return errors.New("scope.restricted_host and scope.restricted_path_prefix must be set together")
	}
	if c.Scope.RestrictedPathPrefix != "" && !strings.HasPrefix(c.Scope.RestrictedPathPrefix, "/") {
		return fmt.Errorf("scope.restricted_path_prefix must start with / (got %q)", c.Scope.RestrictedPathPrefix)
	}
	for _, p := range c.Blocklist.All() {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("blocklist pattern %q: %w", p, err)
		}
	}
	if c.Quality.MinTextLength < 0 {
		return fmt.Errorf("quality.min_text_length must be >= 0 (got %d)", c.Quality.MinTextLength)
	}
	if c.Quality.MaxLinkRatio <= 0 {
		return fmt.Errorf("quality.max_link_ratio must be > 0 (got %v)", c.Quality.MaxLinkRatio)
	}
	if c.Quality.MaxContentLength <= 0 {
		return fmt.Errorf("quality.max_content_length must be > 0 (got %d)", c.Quality.MaxContentLength)
	}
	switch c.Ledger.Backend {
	case LedgerMemory:
	case LedgerRedis:
		if c.Ledger.Redis.Addr == "" {
			return errors.New("ledger.redis.addr must be set when ledger.backend is redis")
		}
	default:
		return fmt.Errorf("unsupported ledger backend %q", c.Ledger.Backend)
	}
	if c.LinkLog.Path == "" {
		return errors.New("link_log.path must be set")
	}
	if c.LinkLog.Format != LogFormatURLs && c.LinkLog.Format != LogFormatSummary {
		return fmt.Errorf("unsupported link_log.format %q", c.LinkLog.Format)
	}
	if (c.DB.Driver == "") != (c.DB.DSN == "") {
		return errors.New("db.driver and db.dsn must be set together")
	}
	if c.WordFreq.Enabled && c.WordFreq.StopwordsPath != "" {
		if _, err := os.Stat(c.WordFreq.StopwordsPath); err != nil {
			return fmt.Errorf("word_freq.stopwords_path: %w", err)
		}
	}
	return nil
}

// ValidateCrawl runs Validate plus the checks that only matter when this
// process fetches pages itself.
func (c Config) ValidateCrawl() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Crawl.Seeds) == 0 {
		return errors.New("at least one crawl seed must be configured")
	}
	for i := range c.Crawl.Seeds {
		if c.Crawl.Seeds[i].URL == "" {
			return fmt.Errorf("seed %d has empty url", i)
		}
		if c.Crawl.Seeds[i].MaxDepth < 0 {
			return fmt.Errorf("seed %s has invalid max_depth %d", c.Crawl.Seeds[i].URL, c.Crawl.Seeds[i].MaxDepth)
		}
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0 (got %d)", c.Crawl.MaxDepth)
	}
	if c.Crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.max_pages must be >= 0 (got %d)", c.Crawl.MaxPages)
	}
	if c.Crawl.MaxBodyBytes <= 0 {
		return fmt.Errorf("crawl.max_body_bytes must be > 0 (got %d)", c.Crawl.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Crawl.UserAgent) == "" {
		return errors.New("crawl.user_agent must be set")
	}
	if c.Rendering.Enabled && c.Rendering.ConcurrentSessions <= 0 {
		return fmt.Errorf("rendering.concurrent_sessions must be > 0 (got %d)", c.Rendering.ConcurrentSessions)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0 (got %d)", c.Worker.Concurrency)
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be > 0 (got %d)", c.Worker.QueueSize)
	}
	return nil
}

// All returns the effective blocklist in evaluation order.
func (b BlocklistConfig) All() []string {
	out := make([]string, 0, len(b.Patterns)+len(b.ExtraPatterns))
	out = append(out, b.Patterns...)
	out = append(out, b.ExtraPatterns...)
	return out
}

func (c *Config) normalise() {
	c.Scope.AllowedDomains = dedupeDomains(c.Scope.AllowedDomains)
	c.Scope.RestrictedHost = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(c.Scope.RestrictedHost)), ".")
	c.Scope.RestrictedPathPrefix = strings.TrimSpace(c.Scope.RestrictedPathPrefix)

	c.Blocklist.Patterns = trimNonEmpty(c.Blocklist.Patterns)
	c.Blocklist.ExtraPatterns = trimNonEmpty(c.Blocklist.ExtraPatterns)

	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = LedgerMemory
	}
	c.LinkLog.Path = strings.TrimSpace(c.LinkLog.Path)
	c.LinkLog.Format = strings.ToLower(strings.TrimSpace(c.LinkLog.Format))
	if c.LinkLog.Format == "" {
		c.LinkLog.Format = LogFormatURLs
	}
	c.WordFreq.StopwordsPath = strings.TrimSpace(c.WordFreq.StopwordsPath)

	for i := range c.Crawl.Seeds {
		c.Crawl.Seeds[i].URL = strings.TrimSpace(c.Crawl.Seeds[i].URL)
	}
	c.Crawl.UserAgent = strings.TrimSpace(c.Crawl.UserAgent)
	c.Crawl.ProxyURL = strings.TrimSpace(c.Crawl.ProxyURL)
	c.Rendering.WaitForSelector = strings.TrimSpace(c.Rendering.WaitForSelector)
	if c.Crawl.Headers == nil {
		c.Crawl.Headers = make(map[string]string)
	}
}

// dedupeDomains lowercases, strips leading/trailing dots and drops duplicates.
func dedupeDomains(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.Trim(strings.ToLower(strings.TrimSpace(v)), ".")
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}

func trimNonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
