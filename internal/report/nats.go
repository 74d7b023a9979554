package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes every subject published by NATSWriter.
const DefaultSubjectPrefix = "paramcheck"

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSWriter publishes rows as JSON on NATS subjects
// <prefix>.device.<id>, <prefix>.finding.<id> and <prefix>.param.<id>.
type NATSWriter struct {
	pub    publisher
	conn   *nats.Conn
	prefix string
}

// NewNATSWriter connects to url and publishes under prefix.
func NewNATSWriter(url, prefix string) (*NATSWriter, error) {
	nc, err := nats.Connect(url,
		nats.Name("paramcheck"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSWriter{pub: nc, conn: nc, prefix: prefix}, nil
}

func (w *NATSWriter) publish(kind string, device uint8, row any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%s.%d", w.prefix, kind, device)
	if err := w.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// WriteDevice publishes a device row.
func (w *NATSWriter) WriteDevice(row DeviceRow) error {
	return w.publish("device", row.DeviceID, row)
}

// WriteFinding publishes a finding.
func (w *NATSWriter) WriteFinding(row FindingRow) error {
	return w.publish("finding", row.DeviceID, row)
}

// WriteParam publishes an observed value.
func (w *NATSWriter) WriteParam(row ParamRow) error {
	return w.publish("param", row.DeviceID, row)
}

// Close flushes pending messages and closes the connection.
func (w *NATSWriter) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Drain()
}
