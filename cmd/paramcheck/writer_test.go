package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"paramcheck/internal/config"
	"paramcheck/internal/report"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestNewWritersText(t *testing.T) {
	buf := captureStdout(t)
	cfg := config.Default()
	w, err := newWriters(cfg, cfg.Devices, 2, nil)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer w.Close()
	if w.Len() != 1 {
		t.Fatalf("expected only the console writer, got %d", w.Len())
	}
	row := report.FindingRow{DeviceID: 2, Param: "GAIN", Kind: report.FindingMismatch, Expected: "1", Observed: 2}
	if err := w.WriteFinding(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := buf.String(); got != "GAIN: expected 1, device 2 set to 2\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestNewWritersJSON(t *testing.T) {
	buf := captureStdout(t)
	cfg := config.Default()
	cfg.Output.Format = config.FormatJSON
	w, err := newWriters(cfg, cfg.Devices, 1, nil)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer w.Close()
	if err := w.WriteDevice(report.DeviceRow{DeviceID: 4, State: report.StateCollected}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"type":"device"`) {
		t.Fatalf("expected a JSON device envelope, got %q", buf.String())
	}
}

func TestNewWritersFileAndSQLite(t *testing.T) {
	captureStdout(t)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.File = filepath.Join(dir, "run.jsonl")
	cfg.Output.SQLite = filepath.Join(dir, "history.db")
	w, err := newWriters(cfg, cfg.Devices, 1, nil)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	if w.Len() != 3 {
		t.Fatalf("expected console, file and sqlite writers, got %d", w.Len())
	}
	rows := []report.FindingRow{{RunID: "r1", DeviceID: 2, Param: "GAIN", Kind: report.FindingMissing, Expected: "1"}}
	if err := report.WriteFindings(w, rows); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	for _, p := range []string{cfg.Output.File, filepath.Join(dir, "run.devices.jsonl"), filepath.Join(dir, "run.params.jsonl")} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
	}
	info, _ := os.Stat(cfg.Output.File)
	if info.Size() == 0 {
		t.Fatalf("expected findings log to be non-empty")
	}

	db, err := report.OpenSQLite(cfg.Output.SQLite)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer db.Close()
	stored, err := db.Findings("r1")
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected one stored finding, got %v %v", stored, err)
	}
}

func TestNewWritersBadFilePath(t *testing.T) {
	captureStdout(t)
	cfg := config.Default()
	cfg.Output.File = filepath.Join(t.TempDir(), "missing", "run.jsonl")
	if _, err := newWriters(cfg, cfg.Devices, 1, nil); err == nil {
		t.Fatalf("expected error for unwritable export path")
	}
}
