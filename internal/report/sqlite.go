package report

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteWriter keeps a history of runs in a local SQLite database.
type SQLiteWriter struct {
	mu sync.Mutex
	db *sql.DB

	closeOnce sync.Once
	closeErr  error
}

// OpenSQLite opens (creating if needed) the history database at path.
func OpenSQLite(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

const insertDeviceSQL = `
INSERT INTO devices (run_id, device_id, state, collected, expected, findings, elapsed_ms, ts)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// WriteDevice stores a device row.
func (s *SQLiteWriter) WriteDevice(row DeviceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(insertDeviceSQL, row.RunID, int(row.DeviceID), string(row.State),
		row.Collected, row.Expected, row.Findings, row.Elapsed.Milliseconds(), row.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("inserting device row: %w", err)
	}
	return nil
}

const insertFindingSQL = `
INSERT INTO findings (run_id, device_id, param, kind, expected, observed, ts)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// WriteFinding stores one finding.
func (s *SQLiteWriter) WriteFinding(row FindingRow) error {
	return s.WriteFindings([]FindingRow{row})
}

// WriteFindings stores findings in one transaction.
func (s *SQLiteWriter) WriteFindings(rows []FindingRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(insertFindingSQL, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.Exec(r.RunID, int(r.DeviceID), r.Param, string(r.Kind), r.Expected, r.Observed, r.Timestamp.UTC())
		return err
	})
}

const upsertValueSQL = `
INSERT INTO param_values (run_id, device_id, param, value, ts)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (run_id, device_id, param) DO UPDATE SET value = excluded.value, ts = excluded.ts`

// WriteParam stores an observed value.
func (s *SQLiteWriter) WriteParam(row ParamRow) error {
	return s.WriteParams([]ParamRow{row})
}

// WriteParams stores observed values in one transaction.
func (s *SQLiteWriter) WriteParams(rows []ParamRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(upsertValueSQL, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.Exec(r.RunID, int(r.DeviceID), r.Param, r.Value, r.Timestamp.UTC())
		return err
	})
}

func (s *SQLiteWriter) inTx(query string, n int, exec func(*sql.Stmt, int) error) (err error) {
	if n == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if cErr := stmt.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing statement: %w", cErr)
		}
	}()

	for i := 0; i < n; i++ {
		if err = exec(stmt, i); err != nil {
			return fmt.Errorf("inserting row %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// RunSummary describes one stored run.
type RunSummary struct {
	RunID    string
	Started  time.Time
	Devices  int
	Findings int
}

const selectRunsSQL = `
SELECT
    d.run_id,
    MIN(d.ts),
    COUNT(DISTINCT d.device_id),
    (SELECT COUNT(*) FROM findings f WHERE f.run_id = d.run_id)
FROM devices d
GROUP BY d.run_id
ORDER BY MIN(d.ts) DESC
LIMIT ?`

// Runs lists the most recent runs, newest first.
func (s *SQLiteWriter) Runs(limit int) (runs []RunSummary, err error) {
	rows, err := s.db.Query(selectRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()
	for rows.Next() {
		var r RunSummary
		var started string
		if err = rows.Scan(&r.RunID, &started, &r.Devices, &r.Findings); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Started = parseSQLiteTime(started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

const selectFindingsSQL = `
SELECT run_id, device_id, param, kind, expected, observed, ts
FROM findings
WHERE run_id = ?
ORDER BY device_id, param`

// Findings returns the findings stored for a run.
func (s *SQLiteWriter) Findings(runID string) (out []FindingRow, err error) {
	rows, err := s.db.Query(selectFindingsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()
	for rows.Next() {
		var f FindingRow
		var dev int
		var kind string
		if err = rows.Scan(&f.RunID, &dev, &f.Param, &kind, &f.Expected, &f.Observed, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		f.DeviceID = uint8(dev)
		f.Kind = FindingKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

// MIN() loses the column type, so the driver hands back text.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Close closes the database.
func (s *SQLiteWriter) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
