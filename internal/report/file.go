package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// FileWriter writes findings, device rows and observed values to JSONL files.
// Device and param rows go to companion files next to the findings file.
type FileWriter struct {
	mu        sync.Mutex
	findFile  *os.File
	devFile   *os.File
	paramFile *os.File
	findEnc   *json.Encoder
	devEnc    *json.Encoder
	paramEnc  *json.Encoder
}

// CompanionPath derives the path of a companion log from the findings path,
// e.g. run.jsonl -> run.devices.jsonl.
func CompanionPath(findingsPath, suffix string) string {
	if i := strings.LastIndex(findingsPath, "."); i > strings.LastIndex(findingsPath, "/") {
		return findingsPath[:i] + "." + suffix + findingsPath[i:]
	}
	return findingsPath + "." + suffix
}

// NewFileWriter creates a FileWriter. devicesPath or paramsPath may be empty to skip those logs.
func NewFileWriter(findingsPath, devicesPath, paramsPath string) (*FileWriter, error) {
	ff, err := os.Create(findingsPath)
	if err != nil {
		return nil, fmt.Errorf("create findings log: %w", err)
	}
	fw := &FileWriter{findFile: ff, findEnc: json.NewEncoder(ff)}
	if devicesPath != "" {
		df, err := os.Create(devicesPath)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("create device log: %w", err)
		}
		fw.devFile = df
		fw.devEnc = json.NewEncoder(df)
	}
	if paramsPath != "" {
		pf, err := os.Create(paramsPath)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("create param log: %w", err)
		}
		fw.paramFile = pf
		fw.paramEnc = json.NewEncoder(pf)
	}
	return fw, nil
}

// WriteFinding logs a single finding.
func (f *FileWriter) WriteFinding(row FindingRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findEnc.Encode(row)
}

// WriteFindings logs multiple findings.
func (f *FileWriter) WriteFindings(rows []FindingRow) error {
	for _, r := range rows {
		if err := f.WriteFinding(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteDevice logs a device row, if enabled.
func (f *FileWriter) WriteDevice(row DeviceRow) error {
	if f.devEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devEnc.Encode(row)
}

// WriteParam logs an observed value, if enabled.
func (f *FileWriter) WriteParam(row ParamRow) error {
	if f.paramEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paramEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	for _, file := range []*os.File{f.findFile, f.devFile, f.paramFile} {
		if file == nil {
			continue
		}
		if e := file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
