package device

import (
	"context"
	"time"
)

// State history source values.
const (
	// StateHistorySourceInteractive marks a change observed during a user-initiated cycle.
	StateHistorySourceInteractive = "interactive"

	// StateHistorySourceBackground marks a change observed during a refresh.
	StateHistorySourceBackground = "background"
)

// StateHistoryEntry represents a single observed state transition.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the configured identifier of the device.
	DeviceID string `json:"device_id"`

	// Previous is the state stored before this change (nil on first observation).
	Previous *State `json:"previous_state,omitempty"`

	// State is the newly observed state.
	State State `json:"state"`

	// Address is the device address at the time, empty when unavailable.
	Address string `json:"address,omitempty"`

	// Source identifies the cycle mode that observed the change.
	Source string `json:"source"`

	// CreatedAt is the timestamp of the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves state transitions.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange appends a transition.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Configured device identifier
	//   - previous: Prior stored state, nil if none
	//   - dev: The new observation
	//   - source: Origin of the change (interactive, background)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, deviceID string, previous *State, dev Device, source string) error

	// GetHistory returns recent transitions, newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Configured device identifier
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}
