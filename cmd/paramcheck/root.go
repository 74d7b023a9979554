package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"paramcheck/internal/config"
	"paramcheck/internal/logging"
)

var (
	rootConfigPath string
	rootSchemaPath string
	rootLogLevel   string
)

// stdout receives report output and listings; tests replace it.
var stdout io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:           "paramcheck",
	Short:         "Autopilot parameter verification toolkit",
	Long:          "paramcheck polls a fleet of autopilots for their parameters and diffs them against a blessed manifest.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "paramcheck.yaml", "Path to configuration YAML")
	rootCmd.PersistentFlags().StringVar(&rootSchemaPath, "schema", "", "Path to CUE schema file (built-in schema when empty)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the configuration file. A missing file at the default
// location falls back to the built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(rootConfigPath, rootSchemaPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
		cfg.ApplyEnv()
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if rootLogLevel != "" {
		cfg.LogLevel = rootLogLevel
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to the configured file, or to
// stderr unless quiet is set.
func newLogger(cfg *config.Config, quiet bool) (*slog.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return logging.New(f, level), func() { f.Close() }, nil
	}
	if quiet {
		return logging.Discard(), func() {}, nil
	}
	return logging.New(nil, level), func() {}, nil
}
