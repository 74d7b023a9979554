// Messages exchanged with autopilots over the telemetry link
package telemetry

import "fmt"

// MessageType discriminates link messages.
type MessageType uint8

const (
	TypeUnknown MessageType = iota
	// TypeParamRequest asks an autopilot for one parameter by name.
	TypeParamRequest
	// TypeParamValue carries one parameter value from an autopilot.
	TypeParamValue
	// TypeHeartbeat announces a node on the link.
	TypeHeartbeat
)

func (t MessageType) String() string {
	switch t {
	case TypeParamRequest:
		return "PARAM_REQUEST"
	case TypeParamValue:
		return "PARAM_VALUE"
	case TypeHeartbeat:
		return "HEARTBEAT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Message is a single link datagram.
//
// CBOR encoding:
//
//	{
//	  1: type,              // uint8
//	  2: senderId,          // uint8
//	  3: senderComponent,   // uint8
//	  4: targetId,          // uint8
//	  5: targetComponent,   // uint8
//	  6: provider,          // text
//	  7: name,              // text
//	  8: value              // uint32, raw parameter payload
//	}
type Message struct {
	Type            MessageType `cbor:"1,keyasint"`
	SenderID        uint8       `cbor:"2,keyasint"`
	SenderComponent uint8       `cbor:"3,keyasint,omitempty"`
	TargetID        uint8       `cbor:"4,keyasint,omitempty"`
	TargetComponent uint8       `cbor:"5,keyasint,omitempty"`
	Provider        string      `cbor:"6,keyasint,omitempty"`
	Name            string      `cbor:"7,keyasint,omitempty"`
	Value           uint32      `cbor:"8,keyasint,omitempty"`
}

// ParamRequest addresses a "get parameter by name" request.
type ParamRequest struct {
	Requester uint8
	Target    uint8
	Component uint8
	Provider  string
	Name      string
}

// Message converts the request into its link form.
func (r ParamRequest) Message() Message {
	return Message{
		Type:            TypeParamRequest,
		SenderID:        r.Requester,
		TargetID:        r.Target,
		TargetComponent: r.Component,
		Provider:        r.Provider,
		Name:            r.Name,
	}
}

// ParamValue builds the reply an autopilot sends for one parameter.
func ParamValue(sender, component uint8, provider, name string, bits uint32) Message {
	return Message{
		Type:            TypeParamValue,
		SenderID:        sender,
		SenderComponent: component,
		Provider:        provider,
		Name:            name,
		Value:           bits,
	}
}
