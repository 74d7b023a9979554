package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"paramcheck/internal/report"
)

var (
	replayInput string
	replaySpeed float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an exported findings log",
	Long:  "replay feeds rows from a JSONL export back into the configured sinks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Replaying into the export being read would truncate it.
		cfg.Output.File = ""
		logger, closeLog, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		defer closeLog()

		writers, err := newWriters(cfg, cfg.Devices, 0, logger)
		if err != nil {
			return err
		}
		defer writers.Close()
		n, err := report.ReplayLogFile(replayInput, writers, replaySpeed)
		logger.Info("replay finished", slog.String("input", replayInput), slog.Int("rows", n))
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to a findings JSONL export")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Playback speed multiplier, 0 for as fast as possible")
	replayCmd.MarkFlagRequired("input")
}
