package sim

import (
	"sort"
	"sync"
	"time"

	"paramcheck/internal/param"
)

// Autopilot is one simulated flight controller holding a parameter table.
type Autopilot struct {
	ID uint8
	// Component restricts which target component is answered. Zero answers any.
	Component uint8
	// Provider must match the provider tag of a request. Empty answers any.
	Provider string
	// Offline autopilots never answer.
	Offline bool
	// DropoutRate is the probability a reply is lost.
	DropoutRate float64
	// SensorErrorRate is the probability a float reply is perturbed.
	SensorErrorRate float64
	// Latency delays every reply.
	Latency time.Duration

	mu     sync.RWMutex
	params map[string]param.Value
}

// NewAutopilot creates an online autopilot with an empty parameter table.
func NewAutopilot(id uint8) *Autopilot {
	return &Autopilot{ID: id, params: make(map[string]param.Value)}
}

// Set stores a parameter.
func (a *Autopilot) Set(name string, v param.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.params[name] = v
}

// Get looks a parameter up.
func (a *Autopilot) Get(name string) (param.Value, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.params[name]
	return v, ok
}

// Delete removes a parameter so requests for it go unanswered.
func (a *Autopilot) Delete(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.params, name)
}

// Names returns the parameter names in sorted order.
func (a *Autopilot) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.params))
	for n := range a.params {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (a *Autopilot) accepts(component uint8, provider string) bool {
	if a.Offline {
		return false
	}
	if a.Component != 0 && component != a.Component {
		return false
	}
	return a.Provider == "" || a.Provider == provider
}

// senderComponent is the component id the autopilot answers as. An autopilot
// without a fixed component answers as whichever component was asked for.
func (a *Autopilot) senderComponent(requested uint8) uint8 {
	if a.Component != 0 {
		return a.Component
	}
	return requested
}
