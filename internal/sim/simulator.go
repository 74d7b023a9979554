// Simulator answering parameter requests on behalf of a fleet of autopilots
package sim

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"paramcheck/internal/param"
	"paramcheck/internal/telemetry"
)

// sensorErrorScale is the relative perturbation applied to a float reply on a
// simulated sensor error.
const sensorErrorScale = 0.1

// Stats counts simulator traffic.
type Stats struct {
	Requests uint64 `json:"requests"`
	Replies  uint64 `json:"replies"`
	Dropped  uint64 `json:"dropped"`
	Ignored  uint64 `json:"ignored"`
}

// Simulator serves a fleet of autopilots over a transport.
type Simulator struct {
	transport  telemetry.Transport
	autopilots map[uint8]*Autopilot
	logger     *slog.Logger
	heartbeat  time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	requests atomic.Uint64
	replies  atomic.Uint64
	dropped  atomic.Uint64
	ignored  atomic.Uint64
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*Simulator) {
	return func(s *Simulator) { s.logger = l }
}

// WithSeed makes dropouts and sensor errors reproducible.
func WithSeed(seed int64) func(*Simulator) {
	return func(s *Simulator) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithHeartbeat announces every online autopilot at the given interval.
func WithHeartbeat(d time.Duration) func(*Simulator) {
	return func(s *Simulator) { s.heartbeat = d }
}

// New creates a Simulator for the given autopilots.
func New(tr telemetry.Transport, autopilots []*Autopilot, opts ...func(*Simulator)) *Simulator {
	s := &Simulator{
		transport:  tr,
		autopilots: make(map[uint8]*Autopilot, len(autopilots)),
		logger:     slog.Default(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, a := range autopilots {
		s.autopilots[a.ID] = a
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "simulator"))
	return s
}

// Stats returns a snapshot of the traffic counters.
func (s *Simulator) Stats() Stats {
	return Stats{
		Requests: s.requests.Load(),
		Replies:  s.replies.Load(),
		Dropped:  s.dropped.Load(),
		Ignored:  s.ignored.Load(),
	}
}

// Run answers requests until ctx is cancelled or the transport is closed.
// Delayed replies still in flight are abandoned on return.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("simulator started", slog.Int("autopilots", len(s.autopilots)))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if s.heartbeat > 0 {
		g.Go(func() error {
			s.announce(ctx)
			return nil
		})
	}
	g.Go(func() error {
		defer cancel() // stops the heartbeat
		defer func() {
			st := s.Stats()
			s.logger.Info("simulator stopped",
				slog.Uint64("requests", st.Requests),
				slog.Uint64("replies", st.Replies),
				slog.Uint64("dropped", st.Dropped))
		}()
		for {
			m, err := s.transport.Recv(ctx)
			if err != nil {
				switch {
				case ctx.Err() != nil, errors.Is(err, telemetry.ErrClosed):
					return nil
				case errors.Is(err, telemetry.ErrNoMessage):
				default:
					s.logger.Debug("receive failed", slog.Any("error", err))
				}
				continue
			}
			s.handle(ctx, g, m)
		}
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Simulator) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < p
}

func (s *Simulator) handle(ctx context.Context, g *errgroup.Group, m telemetry.Message) {
	if m.Type != telemetry.TypeParamRequest {
		s.ignored.Add(1)
		return
	}
	ap, ok := s.autopilots[m.TargetID]
	if !ok || !ap.accepts(m.TargetComponent, m.Provider) {
		s.ignored.Add(1)
		return
	}
	v, ok := ap.Get(m.Name)
	if !ok {
		s.ignored.Add(1)
		s.logger.Debug("unknown parameter", slog.Int("autopilot", int(ap.ID)), slog.String("param", m.Name))
		return
	}
	s.requests.Add(1)
	if s.chance(ap.DropoutRate) {
		s.dropped.Add(1)
		return
	}
	bits := v.Bits()
	if v.Kind == param.KindFloat && s.chance(ap.SensorErrorRate) {
		f := param.FloatFromBits(bits)
		bits = param.FloatBits(f + f*sensorErrorScale + sensorErrorScale)
	}
	reply := telemetry.ParamValue(ap.ID, ap.senderComponent(m.TargetComponent), m.Provider, m.Name, bits)
	if ap.Latency <= 0 {
		s.send(ctx, reply)
		return
	}
	g.Go(func() error {
		t := time.NewTimer(ap.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			s.send(ctx, reply)
		}
		return nil
	})
}

func (s *Simulator) send(ctx context.Context, m telemetry.Message) {
	if err := s.transport.Send(ctx, m); err != nil {
		s.logger.Debug("reply failed", slog.String("param", m.Name), slog.Any("error", err))
		return
	}
	s.replies.Add(1)
}

func (s *Simulator) announce(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, a := range s.autopilots {
				if a.Offline {
					continue
				}
				_ = s.transport.Send(ctx, telemetry.Message{
					Type:            telemetry.TypeHeartbeat,
					SenderID:        a.ID,
					SenderComponent: a.Component,
				})
			}
		}
	}
}
