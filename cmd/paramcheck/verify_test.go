package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paramcheck/internal/config"
	"paramcheck/internal/logging"
	"paramcheck/internal/manifest"
)

func simulatedConfig(scenario string, devices ...uint8) *config.Config {
	cfg := config.Default()
	cfg.Devices = devices
	cfg.RequestDelay = 0
	cfg.RoundDelay = 20 * time.Millisecond
	cfg.Timeout = 300 * time.Millisecond
	cfg.Simulation.Scenario = scenario
	return cfg
}

func loadTestManifest(t *testing.T, text string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	return m
}

func TestRunVerifyBaselineFleet(t *testing.T) {
	buf := captureStdout(t)
	cfg := simulatedConfig("baseline", 2, 4)
	cfg.Output.Format = config.FormatJSON

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m := loadTestManifest(t, "GAIN 1.5\nRATE 20\n")
	if err := runVerify(logging.NewContext(ctx, logging.Discard()), cfg, m); err != nil {
		t.Fatalf("runVerify failed: %v", err)
	}
	out := buf.String()
	if strings.Count(out, `"state":"verified"`) != 2 {
		t.Fatalf("expected two verified devices, got %q", out)
	}
	if strings.Contains(out, `"type":"finding"`) {
		t.Fatalf("baseline fleet produced findings: %q", out)
	}
}

func TestRunVerifyScenarioMismatch(t *testing.T) {
	buf := captureStdout(t)
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	sc := "name: drift\nautopilots:\n  - id: 2\n    overrides:\n      RATE:\n        value: \"25\"\n  - id: 5\n    offline: true\n"
	if err := os.WriteFile(path, []byte(sc), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	cfg := simulatedConfig(path, 2, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m := loadTestManifest(t, "GAIN 1.5\nRATE 20\n")
	if err := runVerify(logging.NewContext(ctx, logging.Discard()), cfg, m); err != nil {
		t.Fatalf("runVerify failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "RATE: expected 20, device 2 set to 25") {
		t.Fatalf("missing mismatch line in %q", out)
	}
	if !strings.Contains(out, "device 5: timed out") {
		t.Fatalf("missing timeout line in %q", out)
	}
	if strings.Contains(out, "GAIN") {
		t.Fatalf("matching parameter reported: %q", out)
	}
}

func TestRunVerifyAdminAddressInUse(t *testing.T) {
	captureStdout(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	cfg := simulatedConfig("baseline", 2)
	cfg.Admin.Addr = ln.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = runVerify(logging.NewContext(ctx, logging.Discard()), cfg, loadTestManifest(t, "GAIN 1\n"))
	if err == nil || !strings.Contains(err.Error(), cfg.Admin.Addr) {
		t.Fatalf("expected admin bind error naming %s, got %v", cfg.Admin.Addr, err)
	}
}

func TestDeviceIDs(t *testing.T) {
	got, err := deviceIDs([]uint{2, 255})
	if err != nil || len(got) != 2 || got[1] != 255 {
		t.Fatalf("unexpected ids %v %v", got, err)
	}
	if _, err := deviceIDs([]uint{256}); err == nil {
		t.Fatalf("expected error for id 256")
	}
	if _, err := deviceIDs([]uint{0}); err == nil {
		t.Fatalf("expected error for id 0")
	}
}

func TestVerifyOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tolerance = 0.5
	opts := verifyOptions(cfg)
	if err := opts.Validate(); err != nil {
		t.Fatalf("default config gives invalid options: %v", err)
	}
	if opts.Tolerance != 0.5 || opts.Provider != "A/P" || len(opts.Devices) != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestPrintManifest(t *testing.T) {
	buf := captureStdout(t)
	m := loadTestManifest(t, "RATE 20\nGAIN abc\n")
	if err := printManifest(m); err != nil {
		t.Fatalf("printManifest failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "GAIN") || !strings.Contains(lines[0], "not a number (line 2)") {
		t.Fatalf("unparsable entry not flagged: %q", lines[0])
	}
	if lines[2] != "2 params, 1 unparsable" {
		t.Fatalf("unexpected summary %q", lines[2])
	}
}
