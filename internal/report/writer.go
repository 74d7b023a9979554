package report

// Writer receives device progress and findings.
type Writer interface {
	WriteDevice(DeviceRow) error
	WriteFinding(FindingRow) error
}

// ParamWriter is implemented by writers that also record observed values.
type ParamWriter interface {
	WriteParam(ParamRow) error
}

// Optional: writers may accept findings in batches.
type batchFindingWriter interface {
	WriteFindings([]FindingRow) error
}

// Optional: writers may accept observed values in batches.
type batchParamWriter interface {
	WriteParams([]ParamRow) error
}

// WriteFindings sends rows to w, in one call when w supports batches.
func WriteFindings(w Writer, rows []FindingRow) error {
	if bw, ok := w.(batchFindingWriter); ok {
		return bw.WriteFindings(rows)
	}
	for _, r := range rows {
		if err := w.WriteFinding(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteParams sends rows to w if it records observed values.
func WriteParams(w Writer, rows []ParamRow) error {
	if bw, ok := w.(batchParamWriter); ok {
		return bw.WriteParams(rows)
	}
	pw, ok := w.(ParamWriter)
	if !ok {
		return nil
	}
	for _, r := range rows {
		if err := pw.WriteParam(r); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops everything.
type Discard struct{}

func (Discard) WriteDevice(DeviceRow) error   { return nil }
func (Discard) WriteFinding(FindingRow) error { return nil }
