package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rohmanhakim/wayback-robots/internal/build"
	"github.com/rohmanhakim/wayback-robots/internal/config"
	"github.com/rohmanhakim/wayback-robots/internal/logging"
	"github.com/rohmanhakim/wayback-robots/internal/robots"
	"github.com/rohmanhakim/wayback-robots/internal/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	programName = "waybackrobots"
	envPrefix   = "WAYBACK_ROBOTS"
)

var ErrMissingHost = errors.New("missing domain name")

// flag names, also the environment keys once upper-cased and prefixed
const (
	flagConfigFile        = "config-file"
	flagOutputDir         = "output-dir"
	flagDryRun            = "dry-run"
	flagUserAgent         = "user-agent"
	flagTimeout           = "timeout"
	flagBaseDelay         = "base-delay"
	flagJitter            = "jitter"
	flagRandomSeed        = "random-seed"
	flagMaxAttempt        = "max-attempt"
	flagBackoffOnThrottle = "backoff-on-throttle"
	flagFrom              = "from"
	flagTo                = "to"
	flagMaxSnapshots      = "max-snapshots"
	flagTrimPaths         = "trim-paths"
	flagDocumentMode      = "document-mode"
	flagArchiveURL        = "archive-url"
	flagCacheRedisAddr    = "cache-redis-addr"
	flagCacheTTL          = "cache-ttl"
	flagLogLevel          = "log-level"
	flagMetricsFile       = "metrics-file"
)

var env = newEnv()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   programName + " [flags] <domain-name>",
	Short: "Collect every path ever disallowed by a site's robots.txt.",
	Long: `waybackrobots lists every archived capture of <domain-name>/robots.txt in the
Wayback Machine, fetches each distinct capture, extracts the value of every
Disallow directive and writes the union to <domain-name>-robots.txt.

Requests to the archive are paced (one second apart by default).`,
	Version:       build.FullVersion(),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := Run(ctx, args, cmd.ErrOrStderr()); err != nil {
			return &runError{err: err}
		}
		return nil
	},
}

// runError marks failures Run has already logged.
type runError struct {
	err error
}

func (e *runError) Error() string { return e.err.Error() }

func (e *runError) Unwrap() error { return e.err }

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := ExecuteWithArgs(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// ExecuteWithArgs runs the root command with explicit arguments and streams.
func ExecuteWithArgs(ctx context.Context, args []string, out, errOut io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	err := rootCmd.ExecuteContext(ctx)
	var logged *runError
	if err != nil && !errors.As(err, &logged) {
		// flag and argument parsing errors
		logger, _ := logging.New(errOut, logging.DefaultLevel)
		logger.Error(err.Error())
		logger.Error(fmt.Sprintf("Run '%s --help' for usage.", programName))
	}
	return err
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String(flagConfigFile, "", "config file path, JSON or YAML (e.g., /home/myuser/config.yaml)")
	flags.String(flagOutputDir, ".", "directory receiving <domain-name>-robots.txt")
	flags.Bool(flagDryRun, false, "collect paths without writing the output file")
	flags.String(flagUserAgent, config.DefaultUserAgent, "user agent string for archive requests")
	flags.Duration(flagTimeout, 0, "timeout of a single archive request (0 for none)")
	flags.Duration(flagBaseDelay, time.Second, "minimum delay between two archive requests")
	flags.Duration(flagJitter, 0, "random jitter added to the base delay")
	flags.Int64(flagRandomSeed, 0, "seed for jitter generation (0 for current time)")
	flags.Int(flagMaxAttempt, 1, "attempts per archive request (1 disables retrying)")
	flags.Bool(flagBackoffOnThrottle, false, "stretch the delay exponentially after 429 and 5xx answers")
	flags.String(flagFrom, "", "only list captures from this timestamp on (1-14 digits, e.g. 2015)")
	flags.String(flagTo, "", "only list captures up to this timestamp (1-14 digits)")
	flags.Int(flagMaxSnapshots, 0, "maximum number of captures to process (0 for unlimited)")
	flags.Bool(flagTrimPaths, false, "trim surrounding whitespace from collected paths")
	flags.String(flagDocumentMode, string(robots.DocumentModeRaw), "handling of HTML/JSON captures: raw, skip or text")
	flags.String(flagArchiveURL, config.DefaultArchiveURL, "base URL of the web archive")
	flags.String(flagCacheRedisAddr, "", "redis address caching extracted captures across runs")
	flags.Duration(flagCacheTTL, config.DefaultCacheTTL, "expiry of redis cache entries")
	flags.String(flagLogLevel, logging.DefaultLevel, "log level: debug, info, warn or error")
	flags.String(flagMetricsFile, "", "write prometheus metrics to this file after the run")

	rootCmd.SetVersionTemplate(build.Describe(programName) + "\n")

	if err := env.BindPFlags(flags); err != nil {
		panic(err)
	}
}

// newEnv lets every flag be given as WAYBACK_ROBOTS_<FLAG_NAME>.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Run executes one collection for the host in args[0], logging to stderr.
func Run(ctx context.Context, args []string, stderr io.Writer) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		logger, _ := logging.New(stderr, logging.DefaultLevel)
		logger.Error(fmt.Sprintf("Usage:\n\t%s <domain-name>", programName))
		return ErrMissingHost
	}
	host := args[0]

	cfg, err := InitConfigWithError(host)
	if err != nil {
		logger, _ := logging.New(stderr, logging.DefaultLevel)
		logger.Error(err.Error())
		return err
	}

	logger, err := logging.New(stderr, cfg.LogLevel())
	if err != nil {
		return err
	}

	s := scheduler.NewScheduler(cfg, logger)
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			logger.Warn("failed to release resources", "err", closeErr)
		}
	}()

	if _, err := s.Execute(ctx, host); err != nil {
		if errors.Is(err, scheduler.ErrCancelled) {
			logger.Warn("Interrupted, nothing was written.")
		}
		return err
	}
	return nil
}

// InitConfigWithError builds the run config for host.
// Precedence: flags, then WAYBACK_ROBOTS_* environment variables, then the
// config file, then defaults. The host always comes from the argument.
func InitConfigWithError(host string) (config.Config, error) {
	if strings.TrimSpace(host) == "" {
		return config.Config{}, fmt.Errorf("%w: host cannot be empty", config.ErrInvalidConfig)
	}

	configBuilder := config.WithDefault(host)
	if cfgFile := env.GetString(flagConfigFile); cfgFile != "" {
		fileCfg, err := config.WithConfigFile(cfgFile, host)
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
		configBuilder = &fileCfg
	}

	if env.IsSet(flagArchiveURL) {
		archiveURL, err := url.Parse(env.GetString(flagArchiveURL))
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: %s", config.ErrInvalidConfig, err.Error())
		}
		configBuilder = configBuilder.WithArchiveURL(*archiveURL)
	}
	if env.IsSet(flagFrom) {
		configBuilder = configBuilder.WithFrom(env.GetString(flagFrom))
	}
	if env.IsSet(flagTo) {
		configBuilder = configBuilder.WithTo(env.GetString(flagTo))
	}
	if env.IsSet(flagMaxSnapshots) {
		configBuilder = configBuilder.WithMaxSnapshots(env.GetInt(flagMaxSnapshots))
	}
	if env.IsSet(flagBaseDelay) {
		configBuilder = configBuilder.WithBaseDelay(env.GetDuration(flagBaseDelay))
	}
	if env.IsSet(flagJitter) {
		configBuilder = configBuilder.WithJitter(env.GetDuration(flagJitter))
	}
	if env.IsSet(flagRandomSeed) && env.GetInt64(flagRandomSeed) != 0 {
		configBuilder = configBuilder.WithRandomSeed(env.GetInt64(flagRandomSeed))
	}
	if env.IsSet(flagMaxAttempt) {
		configBuilder = configBuilder.WithMaxAttempt(env.GetInt(flagMaxAttempt))
	}
	if env.IsSet(flagBackoffOnThrottle) {
		configBuilder = configBuilder.WithBackoffOnThrottle(env.GetBool(flagBackoffOnThrottle))
	}
	if env.IsSet(flagTimeout) {
		configBuilder = configBuilder.WithTimeout(env.GetDuration(flagTimeout))
	}
	if env.IsSet(flagUserAgent) {
		configBuilder = configBuilder.WithUserAgent(env.GetString(flagUserAgent))
	}
	if env.IsSet(flagTrimPaths) {
		configBuilder = configBuilder.WithTrimPaths(env.GetBool(flagTrimPaths))
	}
	if env.IsSet(flagDocumentMode) {
		mode, err := robots.ParseDocumentMode(env.GetString(flagDocumentMode))
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: %s", config.ErrInvalidConfig, err.Error())
		}
		configBuilder = configBuilder.WithDocumentMode(mode)
	}
	if env.IsSet(flagCacheRedisAddr) {
		configBuilder = configBuilder.WithCacheRedisAddr(env.GetString(flagCacheRedisAddr))
	}
	if env.IsSet(flagCacheTTL) {
		configBuilder = configBuilder.WithCacheTTL(env.GetDuration(flagCacheTTL))
	}
	if env.IsSet(flagOutputDir) {
		configBuilder = configBuilder.WithOutputDir(env.GetString(flagOutputDir))
	}
	if env.IsSet(flagDryRun) {
		configBuilder = configBuilder.WithDryRun(env.GetBool(flagDryRun))
	}
	if env.IsSet(flagLogLevel) {
		configBuilder = configBuilder.WithLogLevel(strings.ToLower(env.GetString(flagLogLevel)))
	}
	if env.IsSet(flagMetricsFile) {
		configBuilder = configBuilder.WithMetricsFile(env.GetString(flagMetricsFile))
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// ResetFlags restores every flag to its default and forgets that it was set.
func ResetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	rootCmd.Flags().VisitAll(reset)
}

// Test helper functions to set flag values from tests
func setFlagForTest(name string, value string) {
	if err := rootCmd.PersistentFlags().Set(name, value); err != nil {
		panic(err)
	}
}

func SetConfigFileForTest(path string) {
	setFlagForTest(flagConfigFile, path)
}

func SetOutputDirForTest(dir string) {
	setFlagForTest(flagOutputDir, dir)
}

func SetDryRunForTest(dry bool) {
	setFlagForTest(flagDryRun, fmt.Sprintf("%t", dry))
}

func SetUserAgentForTest(agent string) {
	setFlagForTest(flagUserAgent, agent)
}

func SetTimeoutForTest(t time.Duration) {
	setFlagForTest(flagTimeout, t.String())
}

func SetBaseDelayForTest(delay time.Duration) {
	setFlagForTest(flagBaseDelay, delay.String())
}

func SetJitterForTest(j time.Duration) {
	setFlagForTest(flagJitter, j.String())
}

func SetRandomSeedForTest(seed int64) {
	setFlagForTest(flagRandomSeed, fmt.Sprintf("%d", seed))
}

func SetMaxAttemptForTest(attempts int) {
	setFlagForTest(flagMaxAttempt, fmt.Sprintf("%d", attempts))
}

func SetBackoffOnThrottleForTest(enabled bool) {
	setFlagForTest(flagBackoffOnThrottle, fmt.Sprintf("%t", enabled))
}

func SetFromForTest(from string) {
	setFlagForTest(flagFrom, from)
}

func SetToForTest(to string) {
	setFlagForTest(flagTo, to)
}

func SetMaxSnapshotsForTest(max int) {
	setFlagForTest(flagMaxSnapshots, fmt.Sprintf("%d", max))
}

func SetTrimPathsForTest(trim bool) {
	setFlagForTest(flagTrimPaths, fmt.Sprintf("%t", trim))
}

func SetDocumentModeForTest(mode string) {
	setFlagForTest(flagDocumentMode, mode)
}

func SetArchiveURLForTest(archiveURL string) {
	setFlagForTest(flagArchiveURL, archiveURL)
}

func SetCacheRedisAddrForTest(addr string) {
	setFlagForTest(flagCacheRedisAddr, addr)
}

func SetCacheTTLForTest(ttl time.Duration) {
	setFlagForTest(flagCacheTTL, ttl.String())
}

func SetLogLevelForTest(level string) {
	setFlagForTest(flagLogLevel, level)
}

func SetMetricsFileForTest(path string) {
	setFlagForTest(flagMetricsFile, path)
}
