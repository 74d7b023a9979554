package param

import "math"

// DefaultTolerance is the magnitude difference at which values are reported.
const DefaultTolerance = 0.01

// Mismatched reports whether observed and expected differ in magnitude by at least tol.
//
// Magnitudes are compared, not signed values: a value and its negation are equal here.
// Field tooling relies on this behavior, so it is kept as is.
func Mismatched(observed, expected, tol float64) bool {
	return math.Abs(math.Abs(observed)-math.Abs(expected)) >= tol
}
