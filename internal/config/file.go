package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rohmanhakim/wayback-robots/internal/robots"
	"github.com/rohmanhakim/wayback-robots/pkg/fileutil"
	"github.com/rohmanhakim/wayback-robots/pkg/hashutil"
)

// Duration accepts either a Go duration string ("1500ms") or a number of
// nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string or an integer: %s", string(data))
	}
	*d = Duration(n)
	return nil
}

type configDTO struct {
	ArchiveURL             string    `json:"archiveUrl,omitempty" yaml:"archiveUrl,omitempty"`
	From                   string    `json:"from,omitempty" yaml:"from,omitempty"`
	To                     string    `json:"to,omitempty" yaml:"to,omitempty"`
	MaxSnapshots           int       `json:"maxSnapshots,omitempty" yaml:"maxSnapshots,omitempty"`
	BaseDelay              *Duration `json:"baseDelay,omitempty" yaml:"baseDelay,omitempty"`
	Jitter                 *Duration `json:"jitter,omitempty" yaml:"jitter,omitempty"`
	RandomSeed             int64     `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	MaxAttempt             int       `json:"maxAttempt,omitempty" yaml:"maxAttempt,omitempty"`
	BackoffInitialDuration *Duration `json:"backoffInitialDuration,omitempty" yaml:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64   `json:"backoffMultiplier,omitempty" yaml:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     *Duration `json:"backoffMaxDuration,omitempty" yaml:"backoffMaxDuration,omitempty"`
	BackoffOnThrottle      *bool     `json:"backoffOnThrottle,omitempty" yaml:"backoffOnThrottle,omitempty"`
	Timeout                *Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UserAgent              string    `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	TrimPaths              *bool     `json:"trimPaths,omitempty" yaml:"trimPaths,omitempty"`
	DocumentMode           string    `json:"documentMode,omitempty" yaml:"documentMode,omitempty"`
	CacheRedisAddr         string    `json:"cacheRedisAddr,omitempty" yaml:"cacheRedisAddr,omitempty"`
	CacheTTL               *Duration `json:"cacheTtl,omitempty" yaml:"cacheTtl,omitempty"`
	OutputDir              string    `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	DryRun                 *bool     `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`
	HashAlgo               string    `json:"hashAlgo,omitempty" yaml:"hashAlgo,omitempty"`
	LogLevel               string    `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	MetricsFile            string    `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty"`
}

// newConfigFromDTO layers the file values over the defaults. Absent keys keep
// their default.
func newConfigFromDTO(host string, dto configDTO) (Config, error) {
	builder := WithDefault(host)

	if dto.ArchiveURL != "" {
		archiveURL, err := url.Parse(dto.ArchiveURL)
		if err != nil {
			return Config{}, fmt.Errorf("%w: archiveUrl: %s", ErrInvalidConfig, err.Error())
		}
		builder.WithArchiveURL(*archiveURL)
	}
	if dto.From != "" {
		builder.WithFrom(dto.From)
	}
	if dto.To != "" {
		builder.WithTo(dto.To)
	}
	if dto.MaxSnapshots != 0 {
		builder.WithMaxSnapshots(dto.MaxSnapshots)
	}
	if dto.BaseDelay != nil {
		builder.WithBaseDelay(time.Duration(*dto.BaseDelay))
	}
	if dto.Jitter != nil {
		builder.WithJitter(time.Duration(*dto.Jitter))
	}
	if dto.RandomSeed != 0 {
		builder.WithRandomSeed(dto.RandomSeed)
	}
	if dto.MaxAttempt != 0 {
		builder.WithMaxAttempt(dto.MaxAttempt)
	}
	if dto.BackoffInitialDuration != nil {
		builder.WithBackoffInitialDuration(time.Duration(*dto.BackoffInitialDuration))
	}
	if dto.BackoffMultiplier != 0 {
		builder.WithBackoffMultiplier(dto.BackoffMultiplier)
	}
	if dto.BackoffMaxDuration != nil {
		builder.WithBackoffMaxDuration(time.Duration(*dto.BackoffMaxDuration))
	}
	if dto.BackoffOnThrottle != nil {
		builder.WithBackoffOnThrottle(*dto.BackoffOnThrottle)
	}
	if dto.Timeout != nil {
		builder.WithTimeout(time.Duration(*dto.Timeout))
	}
	if dto.UserAgent != "" {
		builder.WithUserAgent(dto.UserAgent)
	}
	if dto.TrimPaths != nil {
		builder.WithTrimPaths(*dto.TrimPaths)
	}
	if dto.DocumentMode != "" {
		mode, err := robots.ParseDocumentMode(dto.DocumentMode)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
		builder.WithDocumentMode(mode)
	}
	if dto.CacheRedisAddr != "" {
		builder.WithCacheRedisAddr(dto.CacheRedisAddr)
	}
	if dto.CacheTTL != nil {
		builder.WithCacheTTL(time.Duration(*dto.CacheTTL))
	}
	if dto.OutputDir != "" {
		builder.WithOutputDir(dto.OutputDir)
	}
	if dto.DryRun != nil {
		builder.WithDryRun(*dto.DryRun)
	}
	if dto.HashAlgo != "" {
		algo, err := hashutil.ParseHashAlgo(dto.HashAlgo)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
		builder.WithHashAlgo(algo)
	}
	if dto.LogLevel != "" {
		builder.WithLogLevel(strings.ToLower(dto.LogLevel))
	}
	if dto.MetricsFile != "" {
		builder.WithMetricsFile(dto.MetricsFile)
	}

	return builder.Build()
}

// WithConfigFile loads a JSON (.json) or YAML (.yaml, .yml) config file for
// host. The host itself never comes from the file.
func WithConfigFile(path string, host string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	cfgDTO := configDTO{}
	switch strings.ToLower(fileutil.GetFileExtension(path)) {
	case "yaml", "yml":
		err = yaml.UnmarshalWithOptions(configContent, &cfgDTO, yaml.UseJSONUnmarshaler())
	default:
		err = json.Unmarshal(configContent, &cfgDTO)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(host, cfgDTO)
}
