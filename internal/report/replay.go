package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ReplayLog replays findings from r to writer. A speed >0 reproduces the
// recorded spacing, accelerated by speed. If speed <= 0, no delay is inserted.
// It returns the number of rows replayed.
func ReplayLog(r io.Reader, writer Writer, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var row FindingRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("decode finding %d: %w", n+1, err)
		}
		if !prev.IsZero() && speed > 0 {
			diff := row.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				time.Sleep(diff)
			}
		}
		if err := writer.WriteFinding(row); err != nil {
			return n, err
		}
		prev = row.Timestamp
		n++
	}
}

// ReplayLogFile opens a findings log and replays it.
func ReplayLogFile(path string, writer Writer, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}
