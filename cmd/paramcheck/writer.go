package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"paramcheck/internal/config"
	"paramcheck/internal/report"
)

// newWriters builds the sinks named by the output configuration. The console
// writer comes first; file, SQLite, GreptimeDB and NATS sinks are added when
// configured. Closing the returned writer closes every sink.
func newWriters(cfg *config.Config, devices []uint8, expected int, logger *slog.Logger) (*report.MultiWriter, error) {
	mw := report.NewMultiWriter()
	switch cfg.Output.Format {
	case config.FormatJSON:
		mw.Add(report.NewJSONWriterTo(stdout))
	case config.FormatTUI:
		mw.Add(report.NewTUIWriter(devices, expected))
	default:
		mw.Add(consoleWriter())
	}

	out := cfg.Output
	if out.File != "" {
		fw, err := report.NewFileWriter(out.File,
			report.CompanionPath(out.File, "devices"),
			report.CompanionPath(out.File, "params"))
		if err != nil {
			mw.Close()
			return nil, err
		}
		mw.Add(fw)
	}
	if out.SQLite != "" {
		sw, err := report.OpenSQLite(out.SQLite)
		if err != nil {
			mw.Close()
			return nil, err
		}
		mw.Add(sw)
	}
	if out.Greptime.Endpoint != "" {
		gw, err := report.NewGreptimeWriter(out.Greptime.Endpoint, out.Greptime.Database, logger)
		if err != nil {
			mw.Close()
			return nil, err
		}
		mw.Add(gw)
	}
	if out.NATS.URL != "" {
		nw, err := report.NewNATSWriter(out.NATS.URL, out.NATS.SubjectPrefix)
		if err != nil {
			mw.Close()
			return nil, fmt.Errorf("nats sink: %w", err)
		}
		mw.Add(nw)
	}
	return mw, nil
}

// consoleWriter prints text to stdout, colored only when stdout is the terminal.
func consoleWriter() *report.TextWriter {
	if stdout == io.Writer(os.Stdout) {
		return report.NewTextWriter()
	}
	return report.NewPlainTextWriter(stdout)
}
