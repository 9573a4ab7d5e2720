// ABOUTME: Endpoint descriptors for how an agent's voice media is routed
// ABOUTME: Parses client-supplied endpoint type and address with validation

package agent

import (
	"errors"
	"fmt"
)

// ErrInvalidEndpoint indicates the client-supplied endpoint data is
// missing or malformed for a type that requires it.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// EndpointType enumerates the supported media endpoint kinds.
type EndpointType int

const (
	EndpointSIPRegistration EndpointType = iota
	EndpointSIP
	EndpointIAX2
	EndpointH323
	EndpointPSTN
)

func (t EndpointType) String() string {
	switch t {
	case EndpointSIPRegistration:
		return "sip_registration"
	case EndpointSIP:
		return "sip"
	case EndpointIAX2:
		return "iax2"
	case EndpointH323:
		return "h323"
	case EndpointPSTN:
		return "pstn"
	default:
		return "unknown"
	}
}

// Endpoint describes how the agent carries voice media.
type Endpoint struct {
	Type    EndpointType
	Address string
}

// ParseEndpoint builds an Endpoint from posted login fields. A SIP
// registration with no address falls back to registering by username;
// every other type requires a non-empty address.
func ParseEndpoint(kind, data, username string) (Endpoint, error) {
	switch kind {
	case "sip_registration":
		addr := data
		if addr == "" {
			addr = username
		}
		return Endpoint{Type: EndpointSIPRegistration, Address: addr}, nil
	case "sip":
		if data == "" {
			return Endpoint{}, fmt.Errorf("%w: sip requires an address", ErrInvalidEndpoint)
		}
		return Endpoint{Type: EndpointSIP, Address: data}, nil
	case "iax2":
		if data == "" {
			return Endpoint{}, fmt.Errorf("%w: iax2 requires an address", ErrInvalidEndpoint)
		}
		return Endpoint{Type: EndpointIAX2, Address: data}, nil
	case "h323":
		if data == "" {
			return Endpoint{}, fmt.Errorf("%w: h323 requires an address", ErrInvalidEndpoint)
		}
		return Endpoint{Type: EndpointH323, Address: data}, nil
	case "pstn":
		if data == "" {
			return Endpoint{}, fmt.Errorf("%w: pstn requires a number", ErrInvalidEndpoint)
		}
		return Endpoint{Type: EndpointPSTN, Address: data}, nil
	default:
		return Endpoint{}, fmt.Errorf("%w: unknown endpoint type %q", ErrInvalidEndpoint, kind)
	}
}
