package telemetry

import (
	"context"
	"errors"
)

var (
	// ErrNoMessage reports an empty poll: nothing arrived before the read deadline.
	ErrNoMessage = errors.New("telemetry: no message")
	// ErrClosed is returned by a transport after Close.
	ErrClosed = errors.New("telemetry: transport closed")
	// ErrNoPeer is returned by Send when no destination is known yet.
	ErrNoPeer = errors.New("telemetry: no peer address")
)

// Transport is a duplex message channel to one or more remote nodes.
type Transport interface {
	// Send delivers one message.
	Send(ctx context.Context, m Message) error
	// Recv returns the next message, ErrNoMessage for an empty poll, or ErrClosed.
	Recv(ctx context.Context) (Message, error)
	Close() error
}

// RequestParam sends a "get parameter by name" request.
func RequestParam(ctx context.Context, tr Transport, req ParamRequest) error {
	return tr.Send(ctx, req.Message())
}
