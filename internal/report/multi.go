package report

import (
	"errors"
	"io"
)

// MultiWriter fans rows out to several writers. Every writer sees every row;
// errors are joined.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a MultiWriter.
func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Add appends a writer.
func (mw *MultiWriter) Add(w Writer) {
	mw.writers = append(mw.writers, w)
}

// Len reports how many writers are attached.
func (mw *MultiWriter) Len() int { return len(mw.writers) }

// WriteDevice sends a device row to all writers.
func (mw *MultiWriter) WriteDevice(row DeviceRow) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.WriteDevice(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteFinding sends a finding to all writers.
func (mw *MultiWriter) WriteFinding(row FindingRow) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.WriteFinding(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteFindings sends findings to all writers, in batches where supported.
func (mw *MultiWriter) WriteFindings(rows []FindingRow) error {
	var errs []error
	for _, w := range mw.writers {
		if err := WriteFindings(w, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteParams sends observed values to the writers that record them.
func (mw *MultiWriter) WriteParams(rows []ParamRow) error {
	var errs []error
	for _, w := range mw.writers {
		if err := WriteParams(w, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer that is an io.Closer.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
