package scenario

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"paramcheck/internal/param"
	"paramcheck/internal/sim"
)

// Scenario describes a simulated autopilot fleet.
type Scenario struct {
	Name        string      `yaml:"name,omitempty"`
	Description string      `yaml:"description,omitempty"`
	Autopilots  []Autopilot `yaml:"autopilots"`
}

// Autopilot declares one simulated flight controller and how it deviates from
// the manifest baseline.
type Autopilot struct {
	ID              uint8               `yaml:"id"`
	Component       uint8               `yaml:"component,omitempty"`
	Provider        string              `yaml:"provider,omitempty"`
	Offline         bool                `yaml:"offline,omitempty"`
	DropoutRate     float64             `yaml:"dropout_rate,omitempty"`
	SensorErrorRate float64             `yaml:"sensor_error_rate,omitempty"`
	Latency         time.Duration       `yaml:"latency,omitempty"`
	Overrides       map[string]Override `yaml:"overrides,omitempty"`
	// Omit lists baseline parameters the autopilot does not have.
	Omit []string `yaml:"omit,omitempty"`
}

// Override sets a parameter to a value of an explicit kind (float by default).
type Override struct {
	Value string `yaml:"value"`
	Type  string `yaml:"type,omitempty"`
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// ForDevices returns a scenario in which every listed device answers with the
// baseline values.
func ForDevices(ids ...uint8) *Scenario {
	s := &Scenario{Name: "baseline"}
	for _, id := range ids {
		s.Autopilots = append(s.Autopilots, Autopilot{ID: id})
	}
	return s
}

// Validate checks ids, rates and override values.
func (s *Scenario) Validate() error {
	var errs []error
	seen := make(map[uint8]bool)
	for i, a := range s.Autopilots {
		if a.ID == 0 {
			errs = append(errs, fmt.Errorf("autopilot %d: id 0 is reserved", i))
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("autopilot %d: duplicate id %d", i, a.ID))
		}
		seen[a.ID] = true
		if a.DropoutRate < 0 || a.DropoutRate > 1 {
			errs = append(errs, fmt.Errorf("autopilot %d: dropout_rate %g outside [0,1]", a.ID, a.DropoutRate))
		}
		if a.SensorErrorRate < 0 || a.SensorErrorRate > 1 {
			errs = append(errs, fmt.Errorf("autopilot %d: sensor_error_rate %g outside [0,1]", a.ID, a.SensorErrorRate))
		}
		for name, o := range a.Overrides {
			if _, err := o.Param(); err != nil {
				errs = append(errs, fmt.Errorf("autopilot %d: override %s: %w", a.ID, name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Param encodes the override by its declared kind.
func (o Override) Param() (param.Value, error) {
	kind, err := param.ParseKind(o.Type)
	if err != nil {
		return param.Value{}, err
	}
	switch kind {
	case param.KindInt:
		i, err := strconv.ParseInt(o.Value, 10, 32)
		if err != nil {
			return param.Value{}, fmt.Errorf("integer value %q: %w", o.Value, err)
		}
		return param.Int(int32(i)), nil
	case param.KindBool:
		b, err := strconv.ParseBool(o.Value)
		if err != nil {
			return param.Value{}, fmt.Errorf("bool value %q: %w", o.Value, err)
		}
		return param.Bool(b), nil
	default:
		f, err := strconv.ParseFloat(o.Value, 32)
		if err != nil {
			return param.Value{}, fmt.Errorf("float value %q: %w", o.Value, err)
		}
		return param.Float(float32(f)), nil
	}
}

// BuildFleet creates the simulated autopilots, each loaded with the baseline
// parameters plus its overrides, minus its omissions.
func BuildFleet(s *Scenario, baseline map[string]float64) ([]*sim.Autopilot, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	fleet := make([]*sim.Autopilot, 0, len(s.Autopilots))
	for _, a := range s.Autopilots {
		ap := sim.NewAutopilot(a.ID)
		ap.Component = a.Component
		ap.Provider = a.Provider
		ap.Offline = a.Offline
		ap.DropoutRate = a.DropoutRate
		ap.SensorErrorRate = a.SensorErrorRate
		ap.Latency = a.Latency
		for name, v := range baseline {
			ap.Set(name, param.Float(float32(v)))
		}
		for name, o := range a.Overrides {
			v, _ := o.Param()
			ap.Set(name, v)
		}
		for _, name := range a.Omit {
			ap.Delete(name)
		}
		fleet = append(fleet, ap)
	}
	return fleet, nil
}

// IDs returns the autopilot ids in declaration order.
func (s *Scenario) IDs() []uint8 {
	out := make([]uint8, 0, len(s.Autopilots))
	for _, a := range s.Autopilots {
		out = append(out, a.ID)
	}
	return out
}
