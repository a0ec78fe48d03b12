package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rohmanhakim/wayback-robots/internal/robots"
	"github.com/rohmanhakim/wayback-robots/pkg/hashutil"
	"github.com/rohmanhakim/wayback-robots/pkg/urlutil"
)

const (
	DefaultArchiveURL = "https://web.archive.org"
	DefaultUserAgent  = "wayback-robots/1.0"
	DefaultCacheTTL   = 7 * 24 * time.Hour
)

// CDX timestamps are 1 to 14 digits, e.g. 2019 or 20190131.
var cdxTimestampPattern = regexp.MustCompile(`^[0-9]{1,14}$`)

type Config struct {
	//===============
	//  Target
	//===============
	// Domain whose archived robots.txt files are collected. Used verbatim.
	host string
	// Base URL of the web archive serving the CDX and replay endpoints
	archiveURL url.URL
	// Optional lower bound of the CDX listing
	from string
	// Optional upper bound of the CDX listing
	to string
	// Maximum number of snapshots to process; 0 means unlimited
	maxSnapshots int

	//===============
	// Politeness
	//===============
	// Minimum waiting time between two requests to the archive.
	baseDelay time.Duration
	// Randomized variation added on top of the base delay.
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// maximum attempt during retry; 1 disables retrying
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration
	// Whether 429 and 5xx answers stretch the pacing delay
	backoffOnThrottle bool

	//===============
	// Fetch
	//===============
	// Maximum time of a single request; 0 means no limit
	timeout time.Duration
	// User agent that will be used in the request header. In raw string
	userAgent string

	//===============
	// Extraction
	//===============
	// Whether captured paths are trimmed
	trimPaths bool
	// How HTML and JSON captures are treated
	documentMode robots.DocumentMode

	//===============
	// Cache
	//===============
	// Redis address; empty keeps the cache in memory
	cacheRedisAddr string
	// Expiry of redis cache entries
	cacheTTL time.Duration

	//===============
	// Output
	//===============
	// Directory receiving <host>-robots.txt
	outputDir string
	// Whether the program will simulate what it would do without writing the output
	dryRun bool
	// Hash algorithm used to fingerprint the written file
	hashAlgo hashutil.HashAlgo
	// Log verbosity: debug, info, warn or error
	logLevel string
	// Optional path receiving the prometheus metrics after the run
	metricsFile string
}

// WithDefault creates a new Config for host with default values for all other fields.
// host is mandatory; Build rejects an empty one.
func WithDefault(host string) *Config {
	archiveURL, _ := url.Parse(DefaultArchiveURL)
	defaultConfig := Config{
		host:                   host,
		archiveURL:             *archiveURL,
		maxSnapshots:           0,
		baseDelay:              time.Second,
		jitter:                 0,
		randomSeed:             time.Now().UnixNano(),
		maxAttempt:             1,
		backoffInitialDuration: time.Second,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     30 * time.Second,
		backoffOnThrottle:      false,
		timeout:                0,
		userAgent:              DefaultUserAgent,
		trimPaths:              false,
		documentMode:           robots.DocumentModeRaw,
		cacheTTL:               DefaultCacheTTL,
		outputDir:              ".",
		dryRun:                 false,
		hashAlgo:               hashutil.HashAlgoBLAKE3,
		logLevel:               "info",
	}
	return &defaultConfig
}

func (c *Config) WithHost(host string) *Config {
	c.host = host
	return c
}

func (c *Config) WithArchiveURL(archiveURL url.URL) *Config {
	c.archiveURL = archiveURL
	return c
}

func (c *Config) WithFrom(from string) *Config {
	c.from = from
	return c
}

func (c *Config) WithTo(to string) *Config {
	c.to = to
	return c
}

func (c *Config) WithMaxSnapshots(max int) *Config {
	c.maxSnapshots = max
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithBackoffOnThrottle(enabled bool) *Config {
	c.backoffOnThrottle = enabled
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithTrimPaths(trim bool) *Config {
	c.trimPaths = trim
	return c
}

func (c *Config) WithDocumentMode(mode robots.DocumentMode) *Config {
	c.documentMode = mode
	return c
}

func (c *Config) WithCacheRedisAddr(addr string) *Config {
	c.cacheRedisAddr = addr
	return c
}

func (c *Config) WithCacheTTL(ttl time.Duration) *Config {
	c.cacheTTL = ttl
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) WithHashAlgo(algo hashutil.HashAlgo) *Config {
	c.hashAlgo = algo
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) WithMetricsFile(path string) *Config {
	c.metricsFile = path
	return c
}

func (c *Config) Build() (Config, error) {
	if strings.TrimSpace(c.host) == "" {
		return Config{}, fmt.Errorf("%w: host cannot be empty", ErrInvalidConfig)
	}
	if c.archiveURL.Scheme != "http" && c.archiveURL.Scheme != "https" {
		return Config{}, fmt.Errorf("%w: archiveUrl must be an http(s) URL, got %q", ErrInvalidConfig, c.archiveURL.String())
	}
	if c.archiveURL.Host == "" {
		return Config{}, fmt.Errorf("%w: archiveUrl has no host", ErrInvalidConfig)
	}
	if c.from != "" && !cdxTimestampPattern.MatchString(c.from) {
		return Config{}, fmt.Errorf("%w: from must be 1-14 digits, got %q", ErrInvalidConfig, c.from)
	}
	if c.to != "" && !cdxTimestampPattern.MatchString(c.to) {
		return Config{}, fmt.Errorf("%w: to must be 1-14 digits, got %q", ErrInvalidConfig, c.to)
	}
	if c.maxSnapshots < 0 {
		return Config{}, fmt.Errorf("%w: maxSnapshots cannot be negative", ErrInvalidConfig)
	}
	if c.baseDelay < 0 || c.jitter < 0 || c.timeout < 0 {
		return Config{}, fmt.Errorf("%w: baseDelay, jitter and timeout cannot be negative", ErrInvalidConfig)
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempt must be at least 1", ErrInvalidConfig)
	}
	if c.backoffInitialDuration <= 0 {
		return Config{}, fmt.Errorf("%w: backoffInitialDuration must be positive", ErrInvalidConfig)
	}
	if c.backoffMultiplier < 1 {
		return Config{}, fmt.Errorf("%w: backoffMultiplier must be at least 1", ErrInvalidConfig)
	}
	if c.backoffMaxDuration < c.backoffInitialDuration {
		return Config{}, fmt.Errorf("%w: backoffMaxDuration cannot be below backoffInitialDuration", ErrInvalidConfig)
	}
	if _, err := robots.ParseDocumentMode(string(c.documentMode)); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if _, err := hashutil.ParseHashAlgo(string(c.hashAlgo)); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if _, err := log.ParseLevel(c.logLevel); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if c.cacheTTL < 0 {
		return Config{}, fmt.Errorf("%w: cacheTTL cannot be negative", ErrInvalidConfig)
	}

	c.archiveURL = urlutil.NormalizeBase(c.archiveURL)
	if c.documentMode == "" {
		c.documentMode = robots.DocumentModeRaw
	}
	if c.cacheTTL == 0 {
		c.cacheTTL = DefaultCacheTTL
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.outputDir == "" {
		c.outputDir = "."
	}

	return *c, nil
}

func (c Config) Host() string {
	return c.host
}

func (c Config) ArchiveURL() url.URL {
	return c.archiveURL
}

func (c Config) From() string {
	return c.from
}

func (c Config) To() string {
	return c.to
}

func (c Config) MaxSnapshots() int {
	return c.maxSnapshots
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) BackoffOnThrottle() bool {
	return c.backoffOnThrottle
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) TrimPaths() bool {
	return c.trimPaths
}

func (c Config) DocumentMode() robots.DocumentMode {
	return c.documentMode
}

func (c Config) CacheRedisAddr() string {
	return c.cacheRedisAddr
}

func (c Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c Config) OutputDir() string {
	return c.outputDir
}

func (c Config) DryRun() bool {
	return c.dryRun
}

func (c Config) HashAlgo() hashutil.HashAlgo {
	return c.hashAlgo
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) MetricsFile() string {
	return c.metricsFile
}
