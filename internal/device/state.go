package device

import (
	"fmt"
	"strings"
)

// State is the attachment state of the shared device as seen from this host.
//
// The zero value is StateUnavailable.
type State uint8

const (
	// StateUnavailable means the device is missing from the listing or has no address.
	StateUnavailable State = iota

	// StateConnected means the device is attached to (in use by) this host.
	StateConnected

	// StateDisconnected means the device is listed but not attached to this host.
	StateDisconnected
)

// Persisted tokens. These are stored in the database and published on MQTT,
// so they must never change.
const (
	tokenUnavailable  = "UNAVAILABLE"
	tokenConnected    = "CONNECTED"
	tokenDisconnected = "DISCONNECTED"
)

// States lists every state in declaration order.
var States = []State{StateUnavailable, StateConnected, StateDisconnected}

// String returns the persisted token ("UNAVAILABLE", "CONNECTED", "DISCONNECTED").
func (s State) String() string {
	switch s {
	case StateUnavailable:
		return tokenUnavailable
	case StateConnected:
		return tokenConnected
	case StateDisconnected:
		return tokenDisconnected
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the three declared states.
func (s State) Valid() bool {
	return s <= StateDisconnected
}

// Lower returns the lowercase token, as used in "Wooting 60HE+ connected".
func (s State) Lower() string {
	return strings.ToLower(s.String())
}

// Label returns the short capitalised status label ("Connected").
func (s State) Label() string {
	lower := s.Lower()
	if lower == "" {
		return ""
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// Opposite returns the toggle target: Connected and Disconnected swap,
// Unavailable has no opposite and maps to itself.
func (s State) Opposite() State {
	switch s {
	case StateConnected:
		return StateDisconnected
	case StateDisconnected:
		return StateConnected
	default:
		return s
	}
}

// ParseState converts a persisted token back into a State.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseState(token string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case tokenUnavailable:
		return StateUnavailable, nil
	case tokenConnected:
		return StateConnected, nil
	case tokenDisconnected:
		return StateDisconnected, nil
	default:
		return StateUnavailable, fmt.Errorf("%w: %q", ErrInvalidState, token)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
