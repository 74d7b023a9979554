package verify

import (
	"errors"
	"fmt"
	"time"

	"paramcheck/internal/param"
)

// Defaults for a verification run.
const (
	DefaultRequestDelay    = 10 * time.Millisecond
	DefaultRoundDelay      = 2 * time.Second
	DefaultTimeout         = 6 * time.Second
	DefaultRequesterID     = 255
	DefaultTargetComponent = 1
	DefaultProvider        = "A/P"
)

// Options controls polling and comparison.
type Options struct {
	Devices         []uint8
	RequesterID     uint8
	TargetComponent uint8
	Provider        string
	// RequestDelay separates individual requests to one device.
	RequestDelay time.Duration
	// RoundDelay separates request rounds.
	RoundDelay time.Duration
	// Timeout is the sliding per-device silence budget.
	Timeout   time.Duration
	Tolerance float64
}

// DefaultOptions returns the stock settings for the given roster.
func DefaultOptions(devices ...uint8) Options {
	return Options{
		Devices:         devices,
		RequesterID:     DefaultRequesterID,
		TargetComponent: DefaultTargetComponent,
		Provider:        DefaultProvider,
		RequestDelay:    DefaultRequestDelay,
		RoundDelay:      DefaultRoundDelay,
		Timeout:         DefaultTimeout,
		Tolerance:       param.DefaultTolerance,
	}
}

// Validate checks the options for values the run loop cannot work with.
func (o Options) Validate() error {
	var errs []error
	if len(o.Devices) == 0 {
		errs = append(errs, errors.New("no devices configured"))
	}
	if o.RequestDelay < 0 {
		errs = append(errs, fmt.Errorf("request delay %s is negative", o.RequestDelay))
	}
	if o.RoundDelay <= 0 {
		errs = append(errs, fmt.Errorf("round delay %s must be positive", o.RoundDelay))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout %s must be positive", o.Timeout))
	}
	if o.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("tolerance %g must be positive", o.Tolerance))
	}
	return errors.Join(errs...)
}

// roster returns the configured devices without duplicates, in configured order.
func (o Options) roster() []uint8 {
	seen := make(map[uint8]bool, len(o.Devices))
	out := make([]uint8, 0, len(o.Devices))
	for _, d := range o.Devices {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
