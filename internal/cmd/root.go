// Package cmd provides the laneway command-line interface: flag and
// configuration handling, wiring of storage and crawler, and the run
// lifecycle including signal-driven shutdown.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hfujita/laneway/internal/chunker"
	"github.com/hfujita/laneway/internal/config"
	"github.com/hfujita/laneway/internal/crawler"
	"github.com/hfujita/laneway/internal/index"
	"github.com/hfujita/laneway/internal/logging"
	"github.com/hfujita/laneway/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

var rootCmd = &cobra.Command{
	Use:   "laneway [seed URLs...]",
	Short: "A polite site crawler with per-host rate limiting",
	Long: `Laneway crawls a set of sites politely: every host gets its own
queue with a request-rate and concurrency budget, fetches are retried
with exponential backoff, and extracted page text is deduplicated and
written to SQLite plus an optional JSONL chunk file.`,
	Args: cobra.ArbitraryArgs,
	RunE: runCrawl,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version string shown by --version.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./laneway.yml)")
	rootCmd.Flags().Bool("show-config", false, "Display effective configuration as YAML and exit")

	rootCmd.Flags().StringSlice("allowed-hosts", nil, "Hosts eligible for crawling (defaults to seed hosts)")
	rootCmd.Flags().Int("depth", 5, "Maximum link depth from a seed")
	rootCmd.Flags().IntP("max-pages", "n", 200, "Stop after dispatching this many pages")
	rootCmd.Flags().Float64("rps", 1, "Requests per second per host")
	rootCmd.Flags().Int("host-concurrency", 2, "Concurrent fetches per host")
	rootCmd.Flags().IntP("concurrency", "c", 4, "Concurrent fetches across all hosts")
	rootCmd.Flags().Int("retries", 3, "Retries per URL beyond the first attempt")
	rootCmd.Flags().DurationP("timeout", "t", 30*time.Second, "HTTP request timeout")
	rootCmd.Flags().StringP("user-agent", "u", "Laneway/1.0", "HTTP User-Agent header")
	rootCmd.Flags().Bool("ignore-robots", false, "Ignore robots.txt rules")
	rootCmd.Flags().StringP("database", "d", "./laneway.db", "Path to SQLite results database")
	rootCmd.Flags().StringP("output", "o", "", "Write extracted documents and chunks to this JSONL file")
	rootCmd.Flags().Int("chunk-size", 1000, "Target chunk size in approximate tokens")
	rootCmd.Flags().Int("chunk-overlap", 150, "Overlap between consecutive chunks in tokens")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-file", "", "Also write logs to this file")

	binds := []struct {
		key  string
		flag string
	}{
		{"allowed_hosts", "allowed-hosts"},
		{"depth_limit", "depth"},
		{"max_pages", "max-pages"},
		{"rate_limits.per_host_rps", "rps"},
		{"rate_limits.per_host_concurrency", "host-concurrency"},
		{"rate_limits.global_concurrency", "concurrency"},
		{"retries", "retries"},
		{"request_timeout", "timeout"},
		{"user_agent", "user-agent"},
		{"database_path", "database"},
		{"output_jsonl", "output"},
		{"chunk_size_tokens", "chunk-size"},
		{"chunk_overlap_tokens", "chunk-overlap"},
		{"logging.level", "log-level"},
		{"logging.file", "log-file"},
	}
	for _, b := range binds {
		if err := viper.BindPFlag(b.key, rootCmd.Flags().Lookup(b.flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", b.flag, err)
		}
	}
}

// initConfig locates and reads the config file and enables LANEWAY_*
// environment overrides.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("laneway")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("LANEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.SeedURLs = args

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(args) > 0 {
		cfg.SeedURLs = args
	}

	// The flag inverts into the config field, so the YAML file stays
	// positive ("respect_robots: true").
	if ignore, _ := cmd.Flags().GetBool("ignore-robots"); ignore {
		cfg.RespectRobots = false
	}
	return cfg, nil
}

func showCurrentConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: configuration validation failed: %v\n\n", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	fmt.Printf("# Laneway configuration (effective)\n")
	fmt.Printf("# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("# Sources, highest priority first: flags, LANEWAY_* env, laneway.yml, defaults\n\n")
	fmt.Print(string(data))
	return nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if showConfig {
		return showCurrentConfig(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting crawl",
		"seeds", cfg.SeedURLs,
		"allowed_hosts", cfg.AllowedHosts,
		"max_pages", cfg.MaxPages,
		"depth_limit", cfg.DepthLimit,
		"per_host_rps", cfg.RateLimits.PerHostRPS,
		"global_concurrency", cfg.RateLimits.GlobalConcurrency,
		"respect_robots", cfg.RespectRobots)

	if err := store.SetMeta("started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record crawl start", "error", err)
	}
	if err := store.SetMeta("user_agent", cfg.UserAgent); err != nil {
		slog.Warn("Failed to record user agent", "error", err)
	}

	c := crawler.New(cfg, store)
	stats, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	if err := store.SetMeta("finished_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record crawl finish", "error", err)
	}

	if cfg.OutputJSONL != "" {
		ch := chunker.New(cfg.ChunkSizeTokens, cfg.ChunkOverlapTokens)
		writer := index.NewWriter(cfg.OutputJSONL, ch)
		if _, err := writer.WriteDocuments(c.Documents()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	completed, failed, err := store.Summary()
	if err != nil {
		slog.Warn("Failed to read result summary", "error", err)
	}
	if urls := c.FailedURLs(); len(urls) > 0 {
		slog.Warn("Crawl had failures", "count", len(urls), "urls", urls)
	}

	fmt.Printf("Crawl complete: %d pages crawled, %d failed, %d skipped, %d documents (%d duplicates) in %s\n",
		stats.PagesCrawled, stats.PagesFailed, stats.PagesSkipped,
		stats.Documents, stats.Duplicates, stats.Duration.Round(time.Millisecond))
	fmt.Printf("Database %s: %d completed, %d failed records\n", cfg.DatabasePath, completed, failed)
	return nil
}
