package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

const defaultReadTimeout = 250 * time.Millisecond

// UDPConfig configures a UDP link endpoint.
type UDPConfig struct {
	// Listen is the local address to bind, e.g. "0.0.0.0:14550".
	Listen string
	// Remote is where messages are sent. When empty, replies go to the last peer heard from.
	Remote string
	// Broadcast enables sending to a broadcast address.
	Broadcast bool
	// ReadTimeout bounds a single Recv poll.
	ReadTimeout time.Duration
}

// UDPTransport carries one message per datagram over a single UDP socket.
type UDPTransport struct {
	conn        *net.UDPConn
	remote      *net.UDPAddr
	peer        atomic.Pointer[net.UDPAddr]
	readTimeout time.Duration
	closed      atomic.Bool
	buf         []byte
}

// ListenUDP binds the local socket described by cfg.
func ListenUDP(ctx context.Context, cfg UDPConfig) (*UDPTransport, error) {
	lc := net.ListenConfig{}
	if cfg.Broadcast {
		lc.Control = broadcastControl
	}
	pc, err := lc.ListenPacket(ctx, "udp4", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	t := &UDPTransport{
		conn:        pc.(*net.UDPConn),
		readTimeout: cfg.ReadTimeout,
		buf:         make([]byte, MaxDatagramSize),
	}
	if t.readTimeout <= 0 {
		t.readTimeout = defaultReadTimeout
	}
	if cfg.Remote != "" {
		addr, err := net.ResolveUDPAddr("udp4", cfg.Remote)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("resolve %s: %w", cfg.Remote, err)
		}
		t.remote = addr
	}
	return t, nil
}

// LocalAddr returns the bound address.
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// Send encodes m and writes it to the remote (or last peer) address.
func (t *UDPTransport) Send(ctx context.Context, m Message) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := t.remote
	if addr == nil {
		addr = t.peer.Load()
	}
	if addr == nil {
		return ErrNoPeer
	}
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := t.conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("send %s to %s: %w", m.Type, addr, err)
	}
	return nil
}

// Recv reads one datagram, waiting at most the configured read timeout.
// Recv is not safe for concurrent use.
func (t *UDPTransport) Recv(ctx context.Context) (Message, error) {
	if t.closed.Load() {
		return Message{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return Message{}, fmt.Errorf("set read deadline: %w", err)
	}
	n, addr, err := t.conn.ReadFromUDP(t.buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return Message{}, ErrNoMessage
		}
		if t.closed.Load() || errors.Is(err, net.ErrClosed) {
			return Message{}, ErrClosed
		}
		return Message{}, fmt.Errorf("read: %w", err)
	}
	m, err := Decode(t.buf[:n])
	if err != nil {
		return Message{}, fmt.Errorf("from %s: %w", addr, err)
	}
	t.peer.Store(addr)
	return m, nil
}

// Close releases the socket.
func (t *UDPTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.conn.Close()
}
