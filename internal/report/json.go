package report

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONWriter prints every row as one JSON object per line.
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterTo creates a JSONWriter on out.
func NewJSONWriterTo(out io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(out)}
}

type jsonEnvelope struct {
	Type string `json:"type"`
	Row  any    `json:"row"`
}

func (w *JSONWriter) encode(kind string, row any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(jsonEnvelope{Type: kind, Row: row})
}

// WriteDevice outputs a device row.
func (w *JSONWriter) WriteDevice(row DeviceRow) error { return w.encode("device", row) }

// WriteFinding outputs a finding row.
func (w *JSONWriter) WriteFinding(row FindingRow) error { return w.encode("finding", row) }

// WriteParam outputs an observed value.
func (w *JSONWriter) WriteParam(row ParamRow) error { return w.encode("param", row) }
