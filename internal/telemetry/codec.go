package telemetry

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MaxDatagramSize bounds a single encoded message.
const MaxDatagramSize = 1024

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("telemetry: cbor encoder mode: %v", err))
	}

	// Unknown keys are tolerated so newer peers can add fields.
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
		MaxMapPairs: 64,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("telemetry: cbor decoder mode: %v", err))
	}
}

// Encode serializes a message into one datagram.
func Encode(m Message) ([]byte, error) {
	data, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	if len(data) > MaxDatagramSize {
		return nil, fmt.Errorf("encode %s: %d bytes exceeds datagram limit", m.Type, len(data))
	}
	return data, nil
}

// Decode parses one datagram.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := decMode.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}
