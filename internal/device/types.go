package device

import (
	"encoding/json"
	"fmt"
)

// Device is one observation of the shared peripheral.
//
// It is a tagged variant: an Unavailable device carries no address, a
// Connected or Disconnected device always carries a non-empty one. The
// fields are unexported so the invariant holds by construction.
type Device struct {
	state   State
	address string
}

// Unavailable returns a device observation with no address.
func Unavailable() Device {
	return Device{state: StateUnavailable}
}

// Connected returns a device attached to this host at address.
// An empty address yields Unavailable.
func Connected(address string) Device {
	return available(StateConnected, address)
}

// Disconnected returns a listed device not attached to this host.
// An empty address yields Unavailable.
func Disconnected(address string) Device {
	return available(StateDisconnected, address)
}

func available(state State, address string) Device {
	if address == "" {
		return Unavailable()
	}
	return Device{state: state, address: address}
}

// State returns the observed attachment state.
func (d Device) State() State {
	return d.state
}

// Address returns the server-side address and whether one is present.
func (d Device) Address() (string, bool) {
	return d.address, d.state != StateUnavailable
}

// Available reports whether the device was found with an address.
func (d Device) Available() bool {
	return d.state != StateUnavailable
}

// String implements fmt.Stringer.
func (d Device) String() string {
	if !d.Available() {
		return d.state.String()
	}
	return fmt.Sprintf("%s(%s)", d.state, d.address)
}

// deviceJSON is the wire form of Device.
type deviceJSON struct {
	State   State  `json:"state"`
	Address string `json:"address,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(deviceJSON{State: d.state, Address: d.address})
}

// UnmarshalJSON implements json.Unmarshaler. The constructors are applied,
// so an available state without an address decodes as Unavailable.
func (d *Device) UnmarshalJSON(data []byte) error {
	var raw deviceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.State {
	case StateConnected:
		*d = Connected(raw.Address)
	case StateDisconnected:
		*d = Disconnected(raw.Address)
	default:
		*d = Unavailable()
	}
	return nil
}
