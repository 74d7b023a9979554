package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReplayLog(t *testing.T) {
	data := `{"run_id":"r","device_id":4,"param":"A","kind":"mismatch","expected":"1","observed":2,"ts":"2024-01-01T00:00:00Z"}
{"run_id":"r","device_id":4,"param":"B","kind":"unparsable","expected":"x","observed":0,"ts":"2024-01-01T00:00:00.010Z"}
`
	cw := &countingWriter{}
	n, err := ReplayLog(strings.NewReader(data), cw, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 2 || cw.findings != 2 {
		t.Fatalf("expected 2 findings, got n=%d writes=%d", n, cw.findings)
	}
}

func TestReplayLogBadLine(t *testing.T) {
	cw := &countingWriter{}
	n, err := ReplayLog(strings.NewReader("{\"param\":\"A\"}\nnot json\n"), cw, 0)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if n != 1 {
		t.Fatalf("expected 1 row before the error, got %d", n)
	}
}

func TestReplayLogFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	fw, err := NewFileWriter(path, "", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_ = fw.WriteFinding(FindingRow{DeviceID: 2, Param: "GAIN", Kind: FindingMismatch})
	fw.Close()

	cw := &countingWriter{}
	if _, err := ReplayLogFile(path, cw, 0); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if cw.findings != 1 {
		t.Fatalf("expected 1 finding, got %d", cw.findings)
	}
	if _, err := ReplayLogFile(filepath.Join(t.TempDir(), "missing"), cw, 0); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
