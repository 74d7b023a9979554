// Parameter value encoding for the telemetry link
package param

import (
	"fmt"
	"math"
)

// Kind selects how the 32-bit payload of a parameter value is interpreted.
type Kind uint8

const (
	KindFloat Kind = iota + 1
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a scenario type name to a Kind. An empty name means float.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "float", "real":
		return KindFloat, nil
	case "int", "integer":
		return KindInt, nil
	case "bool", "boolean":
		return KindBool, nil
	}
	return 0, fmt.Errorf("unknown parameter type %q", s)
}

// Value is a parameter value tagged with its kind. The zero Value is invalid.
type Value struct {
	Kind Kind
	bits uint32
}

// Float builds a single-precision float value.
func Float(f float32) Value { return Value{Kind: KindFloat, bits: FloatBits(f)} }

// Int builds a signed 32-bit integer value.
func Int(i int32) Value { return Value{Kind: KindInt, bits: uint32(i)} }

// Bool builds a boolean value stored as 0 or 1.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBool, bits: 1}
	}
	return Value{Kind: KindBool}
}

// FromBits wraps a raw payload received for a parameter of kind k.
func FromBits(k Kind, bits uint32) Value { return Value{Kind: k, bits: bits} }

// Bits returns the raw 32-bit payload sent on the wire.
func (v Value) Bits() uint32 { return v.bits }

// Float64 returns the numeric value according to the value's kind.
func (v Value) Float64() float64 {
	switch v.Kind {
	case KindFloat:
		return float64(FloatFromBits(v.bits))
	case KindInt:
		return float64(int32(v.bits))
	case KindBool:
		if v.bits != 0 {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindFloat:
		return fmt.Sprintf("%g", FloatFromBits(v.bits))
	case KindInt:
		return fmt.Sprintf("%d", int32(v.bits))
	case KindBool:
		return fmt.Sprintf("%t", v.bits != 0)
	default:
		return fmt.Sprintf("0x%08x", v.bits)
	}
}

// FloatBits returns the IEEE-754 bit pattern of f.
func FloatBits(f float32) uint32 { return math.Float32bits(f) }

// FloatFromBits reinterprets a 32-bit pattern as an IEEE-754 single-precision float.
// This is a bit cast, not a numeric conversion.
func FloatFromBits(bits uint32) float32 { return math.Float32frombits(bits) }
