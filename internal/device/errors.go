package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrInvalidState) {
//	    // stored value was not a known token
//	}
var (
	// ErrInvalidState is returned when a state token is not recognised.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrDeviceIDRequired is returned when a history write has no device id.
	ErrDeviceIDRequired = errors.New("device: device id is required")
)
