// TextWriter prints human-readable progress and findings.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorBlue   = "\x1b[34m"
	colorCyan   = "\x1b[36m"
	colorGray   = "\x1b[90m"
)

// TextWriter prints one line per device outcome and per finding.
type TextWriter struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewTextWriter creates a TextWriter on os.Stdout, colored when stdout is a terminal.
func NewTextWriter() *TextWriter {
	return &TextWriter{out: os.Stdout, color: term.IsTerminal(int(os.Stdout.Fd()))}
}

// NewPlainTextWriter creates an uncolored TextWriter on out.
func NewPlainTextWriter(out io.Writer) *TextWriter {
	return &TextWriter{out: out}
}

func (w *TextWriter) paint(color, s string) string {
	if !w.color {
		return s
	}
	return color + s + colorReset
}

// WriteDevice prints acquisition outcomes and the comparison summary. Progress
// rows in the acquiring state are not printed.
func (w *TextWriter) WriteDevice(row DeviceRow) error {
	var line string
	switch row.State {
	case StateCollected:
		line = fmt.Sprintf("%s got all %d params in %s",
			w.paint(colorBlue, deviceLabel(row.DeviceID)), row.Expected, roundDuration(row.Elapsed))
	case StateTimeout:
		line = fmt.Sprintf("%s %s after %s, %d of %d params collected",
			w.paint(colorBlue, deviceLabel(row.DeviceID)), w.paint(colorYellow, "timed out"),
			roundDuration(row.Elapsed), row.Collected, row.Expected)
	case StateVerified:
		if row.Expected == 0 {
			return nil
		}
		if row.Findings == 0 {
			line = fmt.Sprintf("%s %s", w.paint(colorBlue, deviceLabel(row.DeviceID)),
				w.paint(colorGreen, fmt.Sprintf("all %s params match", humanize.Comma(int64(row.Expected)))))
		} else {
			line = fmt.Sprintf("%s %s", w.paint(colorBlue, deviceLabel(row.DeviceID)),
				w.paint(colorRed, fmt.Sprintf("%d of %s params differ", row.Findings, humanize.Comma(int64(row.Expected)))))
		}
	default:
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.out, line)
	return err
}

// WriteFinding prints one finding.
func (w *TextWriter) WriteFinding(f FindingRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.out, w.findingLine(f))
	return err
}

func (w *TextWriter) findingLine(f FindingRow) string {
	switch f.Kind {
	case FindingMismatch:
		return fmt.Sprintf("%s: expected %s, device %d set to %s",
			w.paint(colorCyan, f.Param), f.Expected, f.DeviceID, w.paint(colorRed, formatValue(f.Observed)))
	case FindingMissing:
		return fmt.Sprintf("%s %s: no value collected from device %d",
			w.paint(colorRed, "error"), f.Param, f.DeviceID)
	case FindingUnparsable:
		return fmt.Sprintf("%s %s: expected value %q is not a number (device %d)",
			w.paint(colorRed, "error"), f.Param, f.Expected, f.DeviceID)
	default:
		return fmt.Sprintf("%s %s: %s on device %d", w.paint(colorGray, "note"), f.Param, f.Kind, f.DeviceID)
	}
}

func deviceLabel(id uint8) string {
	return "device " + strconv.Itoa(int(id)) + ":"
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 7, 64)
}

func roundDuration(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
