package verify

import (
	"sort"
	"sync"
	"time"
)

// Table holds the parameter values collected per device for one run, along with
// the time each device last delivered a value. It is written by the Listener and
// read by the Verifier.
type Table struct {
	mu       sync.RWMutex
	roster   map[uint8]struct{}
	values   map[uint8]map[string]float64
	lastRecv map[uint8]time.Time
	changed  chan struct{}
}

// NewTable creates a table for the given roster.
func NewTable(devices []uint8) *Table {
	t := &Table{
		roster:   make(map[uint8]struct{}, len(devices)),
		values:   make(map[uint8]map[string]float64, len(devices)),
		lastRecv: make(map[uint8]time.Time, len(devices)),
		changed:  make(chan struct{}),
	}
	for _, d := range devices {
		t.roster[d] = struct{}{}
		t.values[d] = make(map[string]float64)
	}
	return t
}

// Store records a value for a rostered device and advances its last-received time.
// It returns false when the device is not on the roster.
func (t *Table) Store(device uint8, name string, value float64, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.roster[device]; !ok {
		return false
	}
	t.values[device][name] = value
	t.lastRecv[device] = at
	close(t.changed)
	t.changed = make(chan struct{})
	return true
}

// Changed returns a channel closed by the next Store.
func (t *Table) Changed() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changed
}

// Touch resets the last-received time of a device.
func (t *Table) Touch(device uint8, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRecv[device] = at
}

// LastReceived returns when the device last delivered a value (or was touched).
func (t *Table) LastReceived(device uint8) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastRecv[device]
}

// Get returns the observed value of name on device.
func (t *Table) Get(device uint8, name string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[device][name]
	return v, ok
}

// Missing returns the names not yet collected for device, preserving order.
func (t *Table) Missing(device uint8, names []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	have := t.values[device]
	var out []string
	for _, n := range names {
		if _, ok := have[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Count returns how many of names have been collected for device.
func (t *Table) Count(device uint8, names []string) int {
	return len(names) - len(t.Missing(device, names))
}

// Snapshot copies the values collected for device.
func (t *Table) Snapshot(device uint8) map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.values[device]))
	for k, v := range t.values[device] {
		out[k] = v
	}
	return out
}

// Remove drops a device from the roster along with everything collected for it.
func (t *Table) Remove(device uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.roster, device)
	delete(t.values, device)
	delete(t.lastRecv, device)
}

// Devices returns the roster in ascending order.
func (t *Table) Devices() []uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uint8, 0, len(t.roster))
	for d := range t.roster {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
