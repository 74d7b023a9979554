// Package verify polls a fleet of autopilots for their parameters and compares
// the reported values against a blessed manifest.
package verify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"paramcheck/internal/manifest"
	"paramcheck/internal/param"
	"paramcheck/internal/report"
	"paramcheck/internal/telemetry"
)

// DeviceResult summarizes the acquisition phase for one device.
type DeviceResult struct {
	ID        uint8
	State     report.DeviceState
	Collected int
	Expected  int
	Elapsed   time.Duration
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Devices  []DeviceResult
	// Removed lists devices dropped after timing out.
	Removed  []uint8
	Findings []report.FindingRow
}

// Survivors returns the devices that were compared.
func (r *Result) Survivors() []uint8 {
	var out []uint8
	for _, d := range r.Devices {
		if d.State != report.StateTimeout {
			out = append(out, d.ID)
		}
	}
	return out
}

// FindingsFor returns the findings for one device.
func (r *Result) FindingsFor(device uint8) []report.FindingRow {
	var out []report.FindingRow
	for _, f := range r.Findings {
		if f.DeviceID == device {
			out = append(out, f)
		}
	}
	return out
}

// WithWriter sets the sink for progress and findings.
func WithWriter(w report.Writer) func(*Verifier) {
	return func(v *Verifier) {
		v.writer = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*Verifier) {
	return func(v *Verifier) {
		v.logger = l
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) func(*Verifier) {
	return func(v *Verifier) {
		v.runID = id
	}
}

// Verifier runs the acquisition and comparison phases against one transport.
type Verifier struct {
	opts      Options
	transport telemetry.Transport
	writer    report.Writer
	logger    *slog.Logger
	runID     string
	now       func() time.Time

	mu       sync.Mutex
	status   map[uint8]report.DeviceRow
	findings []report.FindingRow
}

// New creates a Verifier.
func New(tr telemetry.Transport, opts Options, options ...func(*Verifier)) *Verifier {
	v := &Verifier{
		opts:      opts,
		transport: tr,
		writer:    report.Discard{},
		logger:    slog.Default(),
		runID:     uuid.New().String(),
		now:       time.Now,
		status:    make(map[uint8]report.DeviceRow),
	}
	for _, option := range options {
		option(v)
	}
	v.logger = v.logger.With(slog.String("component", "verifier"), slog.String("run_id", v.runID))
	return v
}

// RunID identifies this run in every emitted row.
func (v *Verifier) RunID() string { return v.runID }

// Run starts the listener, collects parameters from every device, drops devices
// that time out and compares the rest against m. It returns once comparison is
// complete and the listener has stopped, or when ctx is cancelled.
func (v *Verifier) Run(ctx context.Context, m *manifest.Manifest) (*Result, error) {
	if err := v.opts.Validate(); err != nil {
		return nil, err
	}
	roster := v.opts.roster()
	table := NewTable(roster)
	listener := NewListener(v.transport, table, v.logger)
	names := m.Names()
	listener.OnValue(func(dev uint8, _ string, _ float64) {
		v.noteCollected(dev, table.Count(dev, names))
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var res *Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Run(gctx)
	})
	g.Go(func() error {
		defer cancel() // stops the listener
		var err error
		res, err = v.run(gctx, table, roster, m)
		return err
	})
	err := g.Wait()
	return res, err
}

func (v *Verifier) run(ctx context.Context, table *Table, roster []uint8, m *manifest.Manifest) (*Result, error) {
	names := m.Names()
	res := &Result{RunID: v.runID, Started: v.now()}

	for _, dev := range roster {
		v.setStatus(report.DeviceRow{DeviceID: dev, State: report.StateAcquiring, Expected: len(names)})
	}

	var failed []uint8
	for _, dev := range roster {
		dr, err := v.acquire(ctx, table, dev, names)
		if err != nil {
			return res, err
		}
		res.Devices = append(res.Devices, dr)
		if dr.State == report.StateTimeout {
			failed = append(failed, dev)
		}
	}

	for _, dev := range failed {
		table.Remove(dev)
		res.Removed = append(res.Removed, dev)
	}
	if len(failed) > 0 {
		v.logger.Warn("dropped unresponsive devices", slog.Any("devices", failed))
	}

	for _, dev := range roster {
		if !containsDevice(table.Devices(), dev) {
			continue
		}
		v.recordParams(table, dev, names)
		findings := v.compare(table, dev, m, names)
		res.Findings = append(res.Findings, findings...)
		v.writeDevice(report.DeviceRow{
			DeviceID:  dev,
			State:     report.StateVerified,
			Collected: table.Count(dev, names),
			Expected:  len(names),
			Findings:  len(findings),
		})
	}

	res.Finished = v.now()
	v.logger.Info("verification complete",
		slog.Int("devices", len(res.Survivors())),
		slog.Int("removed", len(res.Removed)),
		slog.Int("findings", len(res.Findings)))
	return res, nil
}

// acquire requests every missing parameter from dev, round after round, until
// all are present or the device stays silent longer than the timeout.
func (v *Verifier) acquire(ctx context.Context, table *Table, dev uint8, names []string) (DeviceResult, error) {
	start := v.now()
	table.Touch(dev, start)
	log := v.logger.With(slog.Int("device", int(dev)))
	log.Info("collecting parameters", slog.Int("expected", len(names)))

	result := func(state report.DeviceState) DeviceResult {
		dr := DeviceResult{
			ID:        dev,
			State:     state,
			Collected: table.Count(dev, names),
			Expected:  len(names),
			Elapsed:   v.now().Sub(start),
		}
		v.writeDevice(report.DeviceRow{
			DeviceID:  dev,
			State:     state,
			Collected: dr.Collected,
			Expected:  dr.Expected,
			Elapsed:   dr.Elapsed,
		})
		return dr
	}

	for round := 0; ; round++ {
		if round > 0 {
			if err := v.waitRound(ctx, table, dev, names); err != nil {
				return DeviceResult{}, err
			}
		}

		missing := table.Missing(dev, names)
		if len(missing) == 0 {
			log.Info("got all parameters", slog.Int("count", len(names)), slog.Int("rounds", round))
			return result(report.StateCollected), nil
		}
		if round > 0 && v.expired(table, dev) {
			log.Warn("timed out collecting parameters",
				slog.Int("collected", len(names)-len(missing)),
				slog.Int("expected", len(names)),
				slog.Duration("timeout", v.opts.Timeout))
			return result(report.StateTimeout), nil
		}

		v.writeDevice(report.DeviceRow{
			DeviceID:  dev,
			State:     report.StateAcquiring,
			Collected: len(names) - len(missing),
			Expected:  len(names),
			Elapsed:   v.now().Sub(start),
		})
		for _, name := range missing {
			req := telemetry.ParamRequest{
				Requester: v.opts.RequesterID,
				Target:    dev,
				Component: v.opts.TargetComponent,
				Provider:  v.opts.Provider,
				Name:      name,
			}
			if err := telemetry.RequestParam(ctx, v.transport, req); err != nil {
				if ctx.Err() != nil {
					return DeviceResult{}, ctx.Err()
				}
				log.Debug("request failed", slog.String("param", name), slog.Any("error", err))
			}
			if err := pause(ctx, v.opts.RequestDelay); err != nil {
				return DeviceResult{}, err
			}
		}
	}
}

func (v *Verifier) expired(table *Table, dev uint8) bool {
	return v.now().Sub(table.LastReceived(dev)) > v.opts.Timeout
}

// waitRound blocks for the round delay, cut short when the device completes and
// clamped to the remaining silence budget.
func (v *Verifier) waitRound(ctx context.Context, table *Table, dev uint8, names []string) error {
	d := v.opts.RoundDelay
	remaining := v.opts.Timeout - v.now().Sub(table.LastReceived(dev)) + time.Millisecond
	if remaining < d {
		d = remaining
	}
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		changed := table.Changed()
		if len(table.Missing(dev, names)) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-changed:
		}
	}
}

type lookup int

const (
	lookupFound lookup = iota
	lookupMissing
	lookupUnparsable
)

func lookupValue(table *Table, dev uint8, e manifest.Entry) (observed, expected float64, res lookup) {
	observed, ok := table.Get(dev, e.Name)
	if !ok {
		return 0, 0, lookupMissing
	}
	expected, err := e.Float()
	if err != nil {
		return observed, 0, lookupUnparsable
	}
	return observed, expected, lookupFound
}

// compare checks every expected parameter on dev in name order.
func (v *Verifier) compare(table *Table, dev uint8, m *manifest.Manifest, names []string) []report.FindingRow {
	var findings []report.FindingRow
	for _, name := range names {
		e, _ := m.Get(name)
		observed, expected, res := lookupValue(table, dev, e)
		f := report.FindingRow{
			RunID:     v.runID,
			DeviceID:  dev,
			Param:     name,
			Expected:  e.Raw,
			Observed:  observed,
			Timestamp: v.now().UTC(),
		}
		switch res {
		case lookupFound:
			if !param.Mismatched(observed, expected, v.opts.Tolerance) {
				continue
			}
			f.Kind = report.FindingMismatch
		case lookupMissing:
			f.Kind = report.FindingMissing
			v.logger.Error("no value collected", slog.Int("device", int(dev)), slog.String("param", name))
		case lookupUnparsable:
			f.Kind = report.FindingUnparsable
			v.logger.Error("expected value is not numeric",
				slog.Int("device", int(dev)), slog.String("param", name), slog.String("expected", e.Raw))
		}
		findings = append(findings, f)
	}

	v.mu.Lock()
	v.findings = append(v.findings, findings...)
	v.mu.Unlock()
	if len(findings) > 0 {
		if err := report.WriteFindings(v.writer, findings); err != nil {
			v.logger.Warn("writing findings failed", slog.Any("error", err))
		}
	}
	return findings
}

func (v *Verifier) recordParams(table *Table, dev uint8, names []string) {
	values := table.Snapshot(dev)
	ts := v.now().UTC()
	rows := make([]report.ParamRow, 0, len(values))
	for _, n := range names {
		val, ok := values[n]
		if !ok {
			continue
		}
		rows = append(rows, report.ParamRow{RunID: v.runID, DeviceID: dev, Param: n, Value: val, Timestamp: ts})
	}
	if err := report.WriteParams(v.writer, rows); err != nil {
		v.logger.Warn("writing params failed", slog.Any("error", err))
	}
}

func (v *Verifier) writeDevice(row report.DeviceRow) {
	row.RunID = v.runID
	row.Timestamp = v.now().UTC()
	v.setStatus(row)
	if err := v.writer.WriteDevice(row); err != nil {
		v.logger.Warn("writing device row failed", slog.Any("error", err))
	}
}

func (v *Verifier) setStatus(row report.DeviceRow) {
	row.RunID = v.runID
	v.mu.Lock()
	v.status[row.DeviceID] = row
	v.mu.Unlock()
}

// noteCollected updates the live count of a device still being acquired.
func (v *Verifier) noteCollected(dev uint8, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if row, ok := v.status[dev]; ok && row.State == report.StateAcquiring && n > row.Collected {
		row.Collected = n
		v.status[dev] = row
	}
}

// Status returns the latest state of every device in roster order.
func (v *Verifier) Status() []report.DeviceRow {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]report.DeviceRow, 0, len(v.status))
	for _, dev := range v.opts.roster() {
		if row, ok := v.status[dev]; ok {
			out = append(out, row)
		}
	}
	return out
}

// Findings returns the findings reported so far.
func (v *Verifier) Findings() []report.FindingRow {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]report.FindingRow, len(v.findings))
	copy(out, v.findings)
	return out
}

func containsDevice(devices []uint8, dev uint8) bool {
	for _, d := range devices {
		if d == dev {
			return true
		}
	}
	return false
}

// pause sleeps for d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
