package report

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// Table names used by GreptimeWriter.
const (
	FindingsTable = "param_findings"
	DevicesTable  = "param_devices"
	ValuesTable   = "param_values"
)

const greptimeWriteTimeout = 10 * time.Second

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeWriter stores run results in GreptimeDB. Tables are created by the
// ingester on first write.
type GreptimeWriter struct {
	client greptimeClient
	logger *slog.Logger
}

// NewGreptimeWriter connects to a GreptimeDB gRPC endpoint ("host:port").
func NewGreptimeWriter(endpoint, database string, logger *slog.Logger) (*GreptimeWriter, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("greptime endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("greptime endpoint %q: bad port: %w", endpoint, err)
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GreptimeWriter{client: client, logger: logger.With(slog.String("component", "greptime"))}, nil
}

func (w *GreptimeWriter) write(tbl *table.Table, rows int) error {
	ctx, cancel := context.WithTimeout(context.Background(), greptimeWriteTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptime write: %w", err)
	}
	if w.logger != nil {
		w.logger.Debug("rows written", slog.Int("rows", rows))
	}
	return nil
}

// WriteDevice inserts a device row.
func (w *GreptimeWriter) WriteDevice(row DeviceRow) error {
	tbl, err := table.New(DevicesTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("device_id", types.INT64)
	tbl.AddFieldColumn("state", types.STRING)
	tbl.AddFieldColumn("collected", types.INT64)
	tbl.AddFieldColumn("expected", types.INT64)
	tbl.AddFieldColumn("findings", types.INT64)
	tbl.AddFieldColumn("elapsed_ms", types.INT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	if err := tbl.AddRow(row.RunID, int64(row.DeviceID), string(row.State),
		int64(row.Collected), int64(row.Expected), int64(row.Findings),
		row.Elapsed.Milliseconds(), row.Timestamp); err != nil {
		return err
	}
	return w.write(tbl, 1)
}

// WriteFinding inserts a finding.
func (w *GreptimeWriter) WriteFinding(row FindingRow) error {
	return w.WriteFindings([]FindingRow{row})
}

// WriteFindings inserts multiple findings in one request.
func (w *GreptimeWriter) WriteFindings(rows []FindingRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(FindingsTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("device_id", types.INT64)
	tbl.AddTagColumn("param", types.STRING)
	tbl.AddFieldColumn("kind", types.STRING)
	tbl.AddFieldColumn("expected", types.STRING)
	tbl.AddFieldColumn("observed", types.FLOAT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, int64(r.DeviceID), r.Param, string(r.Kind), r.Expected, r.Observed, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

// WriteParam inserts an observed value.
func (w *GreptimeWriter) WriteParam(row ParamRow) error {
	return w.WriteParams([]ParamRow{row})
}

// WriteParams inserts observed values in one request.
func (w *GreptimeWriter) WriteParams(rows []ParamRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(ValuesTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("device_id", types.INT64)
	tbl.AddTagColumn("param", types.STRING)
	tbl.AddFieldColumn("value", types.FLOAT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, int64(r.DeviceID), r.Param, r.Value, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}
