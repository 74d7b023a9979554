package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"paramcheck/internal/param"
	"paramcheck/internal/telemetry"
)

const recvErrorPause = 10 * time.Millisecond

// Listener drains a transport into a Table.
type Listener struct {
	transport telemetry.Transport
	table     *Table
	logger    *slog.Logger
	now       func() time.Time
	received  func(device uint8, name string, value float64)
}

// NewListener creates a Listener writing into table.
func NewListener(tr telemetry.Transport, table *Table, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		transport: tr,
		table:     table,
		logger:    logger.With(slog.String("component", "listener")),
		now:       time.Now,
	}
}

// OnValue registers a callback invoked after each stored value.
func (l *Listener) OnValue(fn func(device uint8, name string, value float64)) {
	l.received = fn
}

// Run receives until ctx is cancelled or the transport is closed. Receive errors
// count as empty polls.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, err := l.transport.Recv(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, telemetry.ErrClosed):
				l.logger.Debug("transport closed")
				return nil
			case errors.Is(err, telemetry.ErrNoMessage):
			default:
				l.logger.Debug("receive failed", slog.Any("error", err))
				pause(ctx, recvErrorPause)
			}
			continue
		}
		l.handle(m)
	}
}

func (l *Listener) handle(m telemetry.Message) {
	if m.Type != telemetry.TypeParamValue {
		return
	}
	value := float64(param.FloatFromBits(m.Value))
	if !l.table.Store(m.SenderID, m.Name, value, l.now()) {
		return
	}
	l.logger.Debug("param received",
		slog.Int("device", int(m.SenderID)),
		slog.String("param", m.Name),
		slog.Float64("value", value))
	if l.received != nil {
		l.received(m.SenderID, m.Name, value)
	}
}
