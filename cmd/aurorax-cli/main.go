// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the aurorax-cli command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/aurorax-go/internal/api"
	"github.com/pdiddy/aurorax-go/internal/history"
	"github.com/pdiddy/aurorax-go/internal/secrets"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Process-wide state built by PersistentPreRunE.
var (
	cfg      types.Config
	logger   = zap.NewNop()
	client   *api.Client
	registry *prometheus.Registry
)

// secretsDir is where the API key fallback is read from.
var secretsDir = secrets.DefaultDir

// rootCmd is the base command for the aurorax-cli.
var rootCmd = &cobra.Command{
	Use:   "aurorax-cli",
	Short: "Search the AuroraX database from the command line",
	Long: `aurorax-cli submits conjunction, ephemeris and data product searches to
the AuroraX API, waits for them to complete and prints the results.

Searches are described by query files in JSON or YAML. Use search-template
to get a starting point, edit it, then run search with the file. Every
request the CLI submits is recorded in a local history so it can be
listed and refreshed later.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(viper.GetBool("verbose"))
		if err != nil {
			return err
		}
		logger = log

		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c

		registry = prometheus.NewRegistry()
		client = api.New(cfg.API,
			api.WithLogger(logger),
			api.WithMetrics(api.NewMetrics(registry)))
		logger.Debug("client ready", zap.String("base_url", client.BaseURL()), zap.Bool("api_key", client.HasAPIKey()))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync() //nolint:errcheck
		if !viper.GetBool("stats") || registry == nil {
			return nil
		}
		return api.WriteSummary(cmd.ErrOrStderr(), registry)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./aurorax.yaml or ~/.config/aurorax/aurorax.yaml)")
	flags.String("base-url", "", "API base URL (default: "+types.ProductionBaseURL+")")
	flags.Bool("staging", false, "use the staging API ("+types.StagingBaseURL+")")
	flags.String("history", "", "request history database (default: ~/.config/aurorax/history.db)")
	flags.Bool("no-history", false, "do not record requests in the local history")
	flags.BoolP("verbose", "v", false, "log progress to stderr")
	flags.Bool("stats", false, "print HTTP request metrics to stderr when done")

	bind(flags, "api.base_url", "base-url")
	bind(flags, "api.staging", "staging")
	bind(flags, "history.path", "history")
	bind(flags, "history.disabled", "no-history")
	bind(flags, "verbose", "verbose")
	bind(flags, "stats", "stats")
}

func bind(flags *pflag.FlagSet, key, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("aurorax")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "aurorax"))
		}
	}

	viper.SetEnvPrefix("AURORAX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the settings from flags, environment and config
// file. The API key falls back to the secrets directory.
func loadConfig() (types.Config, error) {
	var c types.Config

	c.API.BaseURL = viper.GetString("api.base_url")
	if c.API.BaseURL == "" && viper.GetBool("api.staging") {
		c.API.BaseURL = types.StagingBaseURL
	}
	c.API.APIKey = viper.GetString("api.key")
	if c.API.APIKey == "" {
		key, err := secrets.APIKey(secretsDir, logger)
		if err != nil {
			return c, err
		}
		c.API.APIKey = key
	}
	c.API.Timeout = viper.GetDuration("api.timeout")
	c.API.MaxRetries = viper.GetInt("api.max_retries")
	c.API.UserAgent = "aurorax-cli/" + version

	c.Poll.Interval = viper.GetDuration("poll.interval")
	c.Poll.MaxInterval = viper.GetDuration("poll.max_interval")
	c.Poll.Backoff = viper.GetFloat64("poll.backoff")
	c.Poll.Timeout = viper.GetDuration("poll.timeout")

	c.Results.PageSize = viper.GetInt("results.page_size")

	c.History.Path = viper.GetString("history.path")
	c.History.Disabled = viper.GetBool("history.disabled")

	c.API = c.API.WithDefaults()
	c.Poll = c.Poll.WithDefaults()
	c.Results = c.Results.WithDefaults()
	return c, nil
}

// newLogger builds a development logger on stderr.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	zc.DisableStacktrace = true
	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}

// openHistory opens the request history, or returns nil when recording
// is disabled.
func openHistory() (*history.Store, error) {
	if cfg.History.Disabled {
		return nil, nil
	}
	path := cfg.History.Path
	if path == "" {
		p, err := history.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return history.Open(path)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
