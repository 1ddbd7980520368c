package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/cache"
	"github.com/KaramelBytes/tabloom-cli/internal/catalog"
	cfgpkg "github.com/KaramelBytes/tabloom-cli/internal/config"
	"github.com/KaramelBytes/tabloom-cli/internal/logging"
	"github.com/KaramelBytes/tabloom-cli/internal/metrics"
	"github.com/KaramelBytes/tabloom-cli/internal/tabulate"
	"github.com/KaramelBytes/tabloom-cli/internal/utils"
)

var (
	cfgFile  string
	debug    bool
	logLevel string

	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "tabloom",
	Short: "Tabloom CLI: survey cross-tabulation with significance testing",
	Long: `Tabloom builds banner tables from respondent-level survey data: questions in rows,
cross breaks and waves in columns, with pairwise z-test letters and wave numerals.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		logging.Sync()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tabloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if debug {
		level = "debug"
	}
	if err := logging.Init(level, cfg.LogFormat, cfg.LogOutput); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to init logging: %v\n", err)
	}
	metrics.Init()
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// newCache builds the configured cache backend.
func newCache(ctx context.Context, c *cfgpkg.Global) (cache.Cache, error) {
	return cache.New(ctx, c.CacheOptions(), logging.Log)
}

// newService wires the study registry, the catalog (when its file exists,
// memoized in kv when kv is set) and the tabulation settings.
func newService(c *cfgpkg.Global, kv cache.Cache) (*tabulate.Service, error) {
	dir, err := defaultStudiesDir()
	if err != nil {
		return nil, err
	}
	svc := &tabulate.Service{StudiesDir: dir, Options: c.ComposeOptions(), Log: logging.Log}
	path, err := utils.ExpandHome(c.CatalogPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		logging.Log.Debug("no catalog file", zap.String("path", path))
		return svc, nil
	}
	store, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}
	svc.Catalog = store
	if kv != nil {
		svc.Catalog = catalog.NewCached(store, kv, c.CacheTTL())
	}
	return svc, nil
}
