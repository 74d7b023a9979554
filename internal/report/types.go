// Result rows produced by a verification run
package report

import "time"

// DeviceState tracks a device through a run.
type DeviceState string

const (
	StateAcquiring DeviceState = "acquiring"
	StateCollected DeviceState = "collected"
	StateTimeout   DeviceState = "timeout"
	StateVerified  DeviceState = "verified"
)

// FindingKind classifies a comparison result worth reporting.
type FindingKind string

const (
	FindingMismatch   FindingKind = "mismatch"
	FindingMissing    FindingKind = "missing"
	FindingUnparsable FindingKind = "unparsable"
)

// DeviceRow reports progress or the outcome for one device.
type DeviceRow struct {
	RunID     string        `json:"run_id"`
	DeviceID  uint8         `json:"device_id"`
	State     DeviceState   `json:"state"`
	Collected int           `json:"collected"`
	Expected  int           `json:"expected"`
	Findings  int           `json:"findings,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Timestamp time.Time     `json:"ts"`
}

// FindingRow is one reported discrepancy. Observed is only meaningful for mismatches.
type FindingRow struct {
	RunID     string      `json:"run_id"`
	DeviceID  uint8       `json:"device_id"`
	Param     string      `json:"param"`
	Kind      FindingKind `json:"kind"`
	Expected  string      `json:"expected"`
	Observed  float64     `json:"observed"`
	Timestamp time.Time   `json:"ts"`
}

// ParamRow is a value observed on a device.
type ParamRow struct {
	RunID     string    `json:"run_id"`
	DeviceID  uint8     `json:"device_id"`
	Param     string    `json:"param"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
}
