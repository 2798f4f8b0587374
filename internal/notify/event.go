package notify

import (
	"context"
	"time"

	"github.com/nerrad567/vhtoggle/internal/device"
)

// Kind classifies an Event.
type Kind string

const (
	KindProgress     Kind = "progress"
	KindFailure      Kind = "failure"
	KindStateChanged Kind = "state_changed"
)

// StateChange describes a newly observed state.
type StateChange struct {
	// State is the observed state.
	State device.State

	// Address is the device address, empty when unavailable.
	Address string

	// Message is the HUD text, "<name> <lowercase state>".
	Message string

	// Label is the status label, "Connected" | "Disconnected" | "Unavailable".
	Label string

	// Source is the cycle mode that observed it.
	Source string
}

// NewStateChange builds the messages for a device observation.
func NewStateChange(deviceName string, dev device.Device, source string) StateChange {
	addr, _ := dev.Address()
	return StateChange{
		State:   dev.State(),
		Address: addr,
		Message: deviceName + " " + dev.State().Lower(),
		Label:   dev.State().Label(),
		Source:  source,
	}
}

// Event is what sinks receive.
type Event struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	DeviceID   string        `json:"device_id"`
	DeviceName string        `json:"device_name"`
	Message    string        `json:"message"`
	State      *device.State `json:"state,omitempty"`
	Address    string        `json:"address,omitempty"`
	Label      string        `json:"label,omitempty"`
	Source     string        `json:"source,omitempty"`
	Time       time.Time     `json:"time"`
}

// Notifier is the user-facing notification collaborator.
//
// Notifications are fire-and-forget: implementations bound the time spent
// on each destination and never report errors.
type Notifier interface {
	Progress(ctx context.Context, message string)
	Failure(ctx context.Context, message string)
	StateChanged(ctx context.Context, change StateChange)
}

// Sink delivers events to one destination.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Notify delivers one event. It should return once ctx is done;
	// the Dispatcher sets a per-sink deadline.
	Notify(ctx context.Context, event Event) error
}
