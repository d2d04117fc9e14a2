package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tagscraper/pkg/config"
	"tagscraper/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dataDir    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tagscraper",
	Short: "Resilient incremental hashtag post collector",
	Long: `Tagscraper collects posts for hashtags from a feed and maintains a
deduplicated local archive across runs.

Features:
  - Adaptive rate limiting that backs off when the feed throttles
  - Automatic retry with exponential backoff and jitter
  - Circuit breaker that fails fast during source outages
  - Incremental, crash-safe archive: re-runs only pay for new posts
  - Concurrent multi-tag collection`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./tagscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "archive directory (default ./data_store)")

	rootCmd.SetVersionTemplate(`tagscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig resolves configuration from all sources and initializes
// the global logger.
func loadConfig(extraFlags map[string]interface{}) (*config.Config, error) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if dataDir != "" {
		flags["data-dir"] = dataDir
	}
	for k, v := range extraFlags {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
