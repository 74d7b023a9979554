package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paramcheck/internal/manifest"
	"paramcheck/internal/param"
	"paramcheck/internal/report"
	"paramcheck/internal/telemetry"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// answer replies to parameter requests from values keyed by device. Devices
// absent from values stay silent.
func answer(ctx context.Context, tr telemetry.Transport, values map[uint8]map[string]float32) {
	for {
		m, err := tr.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, telemetry.ErrClosed) {
				return
			}
			continue
		}
		if m.Type != telemetry.TypeParamRequest {
			continue
		}
		dev, ok := values[m.TargetID]
		if !ok {
			continue
		}
		v, ok := dev[m.Name]
		if !ok {
			continue
		}
		_ = tr.Send(ctx, telemetry.ParamValue(m.TargetID, m.TargetComponent, m.Provider, m.Name, param.FloatBits(v)))
	}
}

func testOptions(devices ...uint8) Options {
	opts := DefaultOptions(devices...)
	opts.RequestDelay = 0
	opts.RoundDelay = 20 * time.Millisecond
	opts.Timeout = 150 * time.Millisecond
	return opts
}

func mustManifest(t *testing.T, text string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(strings.NewReader(text))
	require.NoError(t, err)
	return m
}

type recorder struct {
	mu       sync.Mutex
	devices  []report.DeviceRow
	findings []report.FindingRow
	params   []report.ParamRow
}

func (r *recorder) WriteDevice(row report.DeviceRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append(r.devices, row)
	return nil
}

func (r *recorder) WriteFinding(row report.FindingRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, row)
	return nil
}

func (r *recorder) WriteParam(row report.ParamRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = append(r.params, row)
	return nil
}

func runFleet(t *testing.T, opts Options, m *manifest.Manifest, values map[uint8]map[string]float32, options ...func(*Verifier)) (*Result, error) {
	t.Helper()
	local, remote := telemetry.Pipe()
	defer local.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go answer(ctx, remote, values)

	options = append([]func(*Verifier){WithLogger(quiet)}, options...)
	return New(local, opts, options...).Run(ctx, m)
}

func TestRunFlagsOnlyMismatches(t *testing.T) {
	m := mustManifest(t, "ALT_HOLD 5.0\nSPEED_MAX 12.5\n")
	res, err := runFleet(t, testOptions(4), m, map[uint8]map[string]float32{
		4: {"ALT_HOLD": 5.004, "SPEED_MAX": 20},
	})
	require.NoError(t, err)

	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, uint8(4), f.DeviceID)
	assert.Equal(t, "SPEED_MAX", f.Param)
	assert.Equal(t, report.FindingMismatch, f.Kind)
	assert.Equal(t, "12.5", f.Expected)
	assert.Equal(t, 20.0, f.Observed)
	assert.Empty(t, res.Removed)
	assert.Equal(t, []uint8{4}, res.Survivors())
}

func TestRunToleranceBoundary(t *testing.T) {
	opts := testOptions(2)
	opts.Tolerance = 0.25
	m := mustManifest(t, "AT_EDGE 0.5\nINSIDE 0.5\nNEGATED -5\n")
	res, err := runFleet(t, opts, m, map[uint8]map[string]float32{
		2: {"AT_EDGE": 0.25, "INSIDE": 0.375, "NEGATED": 5},
	})
	require.NoError(t, err)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "AT_EDGE", res.Findings[0].Param)
}

func TestRunEmptyManifest(t *testing.T) {
	rec := &recorder{}
	res, err := runFleet(t, testOptions(2, 4), manifest.New(), map[uint8]map[string]float32{},
		WithWriter(rec))
	require.NoError(t, err)

	assert.Empty(t, res.Findings)
	assert.Empty(t, res.Removed)
	for _, d := range res.Devices {
		assert.Equal(t, report.StateCollected, d.State)
	}
	assert.Empty(t, rec.findings)
}

func TestRunDropsSilentDevice(t *testing.T) {
	opts := testOptions(2, 4)
	m := mustManifest(t, "GAIN 1\nRATE 2\n")
	res, err := runFleet(t, opts, m, map[uint8]map[string]float32{
		4: {"GAIN": 1, "RATE": 3},
	})
	require.NoError(t, err)

	assert.Equal(t, []uint8{2}, res.Removed)
	assert.Equal(t, []uint8{4}, res.Survivors())
	require.Len(t, res.Findings, 1)
	assert.Equal(t, uint8(4), res.Findings[0].DeviceID)
	assert.Equal(t, "RATE", res.Findings[0].Param)

	require.Len(t, res.Devices, 2)
	silent := res.Devices[0]
	assert.Equal(t, report.StateTimeout, silent.State)
	assert.GreaterOrEqual(t, silent.Elapsed, opts.Timeout)
	assert.Less(t, silent.Elapsed, opts.Timeout+opts.RoundDelay+500*time.Millisecond)
}

func TestRunPartialDeviceTimesOut(t *testing.T) {
	m := mustManifest(t, "GAIN 1\nRATE 2\n")
	res, err := runFleet(t, testOptions(2), m, map[uint8]map[string]float32{
		2: {"GAIN": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, []uint8{2}, res.Removed)
	require.Len(t, res.Devices, 1)
	assert.Equal(t, 1, res.Devices[0].Collected)
	assert.Empty(t, res.Findings)
}

func TestRunUnparsableExpectation(t *testing.T) {
	m := mustManifest(t, "GAIN abc\nRATE 2\n")
	res, err := runFleet(t, testOptions(2), m, map[uint8]map[string]float32{
		2: {"GAIN": 1, "RATE": 2},
	})
	require.NoError(t, err)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, report.FindingUnparsable, res.Findings[0].Kind)
	assert.Equal(t, "GAIN", res.Findings[0].Param)
}

func TestRunOutOfOrderReplies(t *testing.T) {
	local, remote := telemetry.Pipe()
	defer local.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	values := map[string]float32{"A": 1, "B": 2, "C": 3}
	go func() {
		var pending []string
		for {
			m, err := remote.Recv(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, telemetry.ErrClosed) {
					return
				}
				continue
			}
			pending = append(pending, m.Name)
			if len(pending) < len(values) {
				continue
			}
			for i := len(pending) - 1; i >= 0; i-- {
				n := pending[i]
				_ = remote.Send(ctx, telemetry.ParamValue(2, 1, "A/P", n, param.FloatBits(values[n])))
			}
			pending = nil
		}
	}()

	rec := &recorder{}
	v := New(local, testOptions(2), WithLogger(quiet), WithWriter(rec), WithRunID("run-1"))
	res, err := v.Run(ctx, mustManifest(t, "C 3\nA 1\nB 2\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.Equal(t, "run-1", res.RunID)

	require.Len(t, rec.params, 3)
	assert.Equal(t, "A", rec.params[0].Param)
	assert.Equal(t, "C", rec.params[2].Param)
	for _, p := range rec.params {
		assert.Equal(t, "run-1", p.RunID)
	}
}

func TestRunCancelled(t *testing.T) {
	local, _ := telemetry.Pipe()
	defer local.Close()
	opts := testOptions(2)
	opts.Timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := New(local, opts, WithLogger(quiet)).Run(ctx, mustManifest(t, "GAIN 1\n"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunInvalidOptions(t *testing.T) {
	local, _ := telemetry.Pipe()
	defer local.Close()
	_, err := New(local, Options{}, WithLogger(quiet)).Run(context.Background(), manifest.New())
	assert.Error(t, err)
}

func TestStatusAfterRun(t *testing.T) {
	local, remote := telemetry.Pipe()
	defer local.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go answer(ctx, remote, map[uint8]map[string]float32{4: {"GAIN": 2}})

	v := New(local, testOptions(2, 4), WithLogger(quiet))
	_, err := v.Run(ctx, mustManifest(t, "GAIN 1\n"))
	require.NoError(t, err)

	status := v.Status()
	require.Len(t, status, 2)
	assert.Equal(t, report.StateTimeout, status[0].State)
	assert.Equal(t, report.StateVerified, status[1].State)
	assert.Equal(t, 1, status[1].Findings)
	assert.Len(t, v.Findings(), 1)
}

func TestStatusTracksCollectedDuringRun(t *testing.T) {
	local, remote := telemetry.Pipe()
	defer local.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go answer(ctx, remote, map[uint8]map[string]float32{2: {"GAIN": 1}})

	opts := testOptions(2)
	opts.Timeout = time.Minute
	opts.RoundDelay = time.Minute
	v := New(local, opts, WithLogger(quiet))
	done := make(chan error, 1)
	go func() {
		_, err := v.Run(ctx, mustManifest(t, "GAIN 1\nRATE 2\n"))
		done <- err
	}()

	require.Eventually(t, func() bool {
		status := v.Status()
		return len(status) == 1 && status[0].State == report.StateAcquiring && status[0].Collected == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestListenerIgnoresStrangers(t *testing.T) {
	local, remote := telemetry.Pipe()
	defer local.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tbl := NewTable([]uint8{2})
	l := NewListener(local, tbl, quiet)
	var mu sync.Mutex
	var seen []string
	l.OnValue(func(_ uint8, name string, _ float64) {
		mu.Lock()
		seen = append(seen, name)
		mu.Unlock()
	})
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.NoError(t, remote.Send(ctx, telemetry.Message{Type: telemetry.TypeHeartbeat, SenderID: 2}))
	require.NoError(t, remote.Send(ctx, telemetry.ParamValue(7, 1, "A/P", "GAIN", param.FloatBits(1))))
	require.NoError(t, remote.Send(ctx, telemetry.ParamValue(2, 1, "A/P", "GAIN", 0x40A00000)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)
	v, _ := tbl.Get(2, "GAIN")
	assert.Equal(t, 5.0, v)
	assert.True(t, tbl.LastReceived(7).IsZero())

	remote.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("listener did not stop after close")
	}
}
