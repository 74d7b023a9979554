package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"paramcheck/internal/report"
)

var (
	historyDB    string
	historyLimit int
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List runs stored in the SQLite history",
	Long:  "history lists recent runs from the SQLite sink, or the findings of one run with --run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.Output.SQLite
		if cmd.Flags().Changed("db") {
			path = historyDB
		}
		if path == "" {
			return errors.New("no history database: set output.sqlite or --db")
		}
		db, err := report.OpenSQLite(path)
		if err != nil {
			return err
		}
		defer db.Close()
		if historyRun != "" {
			return printRunFindings(db, historyRun)
		}
		return printRuns(db, historyLimit)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "", "SQLite history file (default output.sqlite)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the findings of this run")
}

func printRuns(db *report.SQLiteWriter, limit int) error {
	runs, err := db.Runs(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDEVICES\tFINDINGS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.RunID, humanize.Time(r.Started), r.Devices, r.Findings)
	}
	return tw.Flush()
}

func printRunFindings(db *report.SQLiteWriter, runID string) error {
	findings, err := db.Findings(runID)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		_, err := fmt.Fprintf(stdout, "run %s: no findings\n", runID)
		return err
	}
	w := report.NewPlainTextWriter(stdout)
	return report.WriteFindings(w, findings)
}
