// Package cmd provides the command-line interface for sitesearch.
// It handles command parsing, configuration loading and wiring of the
// index, search and health-check components.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
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

	"github.com/hnm/search/internal/config"
	"github.com/hnm/search/internal/logging"
	"github.com/hnm/search/internal/search"
	"github.com/hnm/search/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
}

// Execute builds the command tree and runs it until it finishes or the
// process receives SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// app carries the state shared by all subcommands of one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "sitesearch",
		Short: "Index, search and health-check the pages of a website",
		Long: `sitesearch keeps a search index of a website's pages.

Pages are scanned for their title, meta description, meta keywords and
searchable text; markup annotated with data-search="excluded" is skipped
unless a nested element re-includes it with data-search="included".
A periodic check removes entries whose URLs no longer resolve.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
		RunE: a.runRoot,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./sitesearch.yml)")
	root.PersistentFlags().StringP("database", "d", "./sitesearch.db", "Path to SQLite database file")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "json", "Log format: json or text")
	root.PersistentFlags().StringP("user-agent", "u", "SiteSearchBot/1.0", "HTTP User-Agent header")
	root.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"database_path", "database"},
		{"log.level", "log-level"},
		{"log.format", "log-format"},
		{"user_agent", "user-agent"},
	}
	for _, bind := range bindFlags {
		if err := a.v.BindPFlag(bind.viperKey, root.PersistentFlags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}

	root.AddCommand(
		a.newIndexCmd(),
		a.newRemoveCmd(),
		a.newSearchCmd(),
		a.newCheckCmd(),
		a.newServeCmd(),
		a.newTruncateCmd(),
		a.newStatsCmd(),
		a.newGroupCmd(),
	)

	return root
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig(cmd *cobra.Command) error {
	setDefaults(a.v, config.DefaultConfig())

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("sitesearch")
	}

	a.v.SetEnvPrefix("SS")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", a.v.ConfigFileUsed())
	return nil
}

// setDefaults registers every key so that environment variables can
// override nested settings.
func setDefaults(v *viper.Viper, cfg *config.Config) {
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	v.SetDefault("check.concurrency", cfg.Check.Concurrency)
	v.SetDefault("check.timeout", cfg.Check.Timeout)
	v.SetDefault("check.batch_limit", cfg.Check.BatchLimit)
	v.SetDefault("check.batch_fraction", cfg.Check.BatchFraction)
	v.SetDefault("check.interval", cfg.Check.Interval)
	v.SetDefault("check.host_delay", cfg.Check.HostDelay)
	v.SetDefault("search.result_limit", cfg.Search.ResultLimit)
	v.SetDefault("search.allowed_query_params", cfg.Search.AllowedQueryParams)
	v.SetDefault("server.listen_addr", cfg.Server.ListenAddr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
	v.SetDefault("log.console", cfg.Log.Console)
}

// loadConfig merges defaults, config file, environment and flags.
func (a *app) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func (a *app) runRoot(cmd *cobra.Command, _ []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")
	if !showConfig {
		return cmd.Help()
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	return showCurrentConfig(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
}

func showCurrentConfig(out, errOut io.Writer, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(errOut, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(out, "# Current sitesearch configuration\n")
	fmt.Fprintf(out, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(out, "# Configuration file search paths: ./sitesearch.yml\n")
	fmt.Fprintf(out, "# Environment variables prefix: SS_\n\n")
	fmt.Fprint(out, string(yamlData))
	fmt.Fprintf(out, "\n# Configuration source priority:\n")
	fmt.Fprintf(out, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(out, "# 2. Environment variables (SS_ prefix)\n")
	fmt.Fprintf(out, "# 3. Configuration file (sitesearch.yml)\n")
	fmt.Fprintf(out, "# 4. Default values (lowest priority)\n")

	return nil
}

// env is what a subcommand needs at run time.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storage.SQLiteStorage
	closers []io.Closer
}

// setup loads and validates the configuration, installs the logger and
// opens the database.
func (a *app) setup() (*env, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser, err := logging.NewLogger(logging.Config{
		Level:      logging.ParseLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		FilePath:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    cfg.Log.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)

	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		closers: []io.Closer{store, logCloser},
	}, nil
}

func (e *env) Close() {
	for _, c := range e.closers {
		_ = c.Close()
	}
}

func (e *env) indexer() *search.Indexer {
	return search.NewIndexer(e.store,
		search.WithAllowedQueryParams(e.cfg.Search.AllowedQueryParams...),
		search.WithIndexerLogger(e.logger),
	)
}

func (e *env) searcher() *search.Searcher {
	return search.NewSearcher(e.store,
		search.WithResultLimit(e.cfg.Search.ResultLimit),
		search.WithSearcherLogger(e.logger),
	)
}
