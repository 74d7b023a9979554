package telemetry

import (
	"context"
	"sync"
	"time"
)

const pipeBuffer = 256

// PipeEnd is one side of an in-memory transport pair.
type PipeEnd struct {
	in   <-chan Message
	out  chan<- Message
	poll time.Duration

	done      chan struct{}
	closeOnce *sync.Once
}

// Pipe returns two connected transports. Messages sent on one end are received
// on the other. Closing either end closes both.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan Message, pipeBuffer)
	ba := make(chan Message, pipeBuffer)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &PipeEnd{in: ba, out: ab, poll: 100 * time.Millisecond, done: done, closeOnce: once}
	b := &PipeEnd{in: ab, out: ba, poll: 100 * time.Millisecond, done: done, closeOnce: once}
	return a, b
}

// Send queues m for the other end. It blocks while the buffer is full.
func (p *PipeEnd) Send(ctx context.Context, m Message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- m:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv waits up to the poll interval for a message.
func (p *PipeEnd) Recv(ctx context.Context) (Message, error) {
	timer := time.NewTimer(p.poll)
	defer timer.Stop()
	select {
	case m := <-p.in:
		return m, nil
	case <-p.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-timer.C:
		return Message{}, ErrNoMessage
	}
}

// Close shuts down both ends.
func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
