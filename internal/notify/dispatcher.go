package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/vhtoggle/internal/infrastructure/logging"
)

// DefaultSinkTimeout bounds a single sink delivery.
const DefaultSinkTimeout = 5 * time.Second

// Dispatcher implements Notifier by fanning events out to sinks.
// Sinks run in order, each under its own timeout.
type Dispatcher struct {
	deviceID    string
	deviceName  string
	sinks       []Sink
	logger      *logging.Logger
	now         func() time.Time
	sinkTimeout time.Duration
}

// NewDispatcher creates a dispatcher for one device.
//
// Parameters:
//   - deviceID: Configured device slug, stamped on every event
//   - deviceName: Display name, stamped on every event
//   - logger: Used to report failing sinks
//   - sinks: Destinations, called in order
func NewDispatcher(deviceID, deviceName string, logger *logging.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		deviceID:    deviceID,
		deviceName:  deviceName,
		sinks:       sinks,
		logger:      logger,
		now:         time.Now,
		sinkTimeout: DefaultSinkTimeout,
	}
}

// SetSinkTimeout changes the per-sink delivery bound. Non-positive values
// restore DefaultSinkTimeout.
func (d *Dispatcher) SetSinkTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	d.sinkTimeout = timeout
}

// AddSink appends a sink. Not safe to call concurrently with notifications.
func (d *Dispatcher) AddSink(sink Sink) {
	d.sinks = append(d.sinks, sink)
}

// Progress implements Notifier.
func (d *Dispatcher) Progress(ctx context.Context, message string) {
	d.dispatch(ctx, d.event(KindProgress, message))
}

// Failure implements Notifier.
func (d *Dispatcher) Failure(ctx context.Context, message string) {
	d.dispatch(ctx, d.event(KindFailure, message))
}

// StateChanged implements Notifier.
func (d *Dispatcher) StateChanged(ctx context.Context, change StateChange) {
	ev := d.event(KindStateChanged, change.Message)
	state := change.State
	ev.State = &state
	ev.Address = change.Address
	ev.Label = change.Label
	ev.Source = change.Source
	d.dispatch(ctx, ev)
}

func (d *Dispatcher) event(kind Kind, message string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		DeviceID:   d.deviceID,
		DeviceName: d.deviceName,
		Message:    message,
		Time:       d.now().UTC(),
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	for _, sink := range d.sinks {
		if err := d.deliver(ctx, sink, ev); err != nil {
			d.logger.Warn("notification sink failed",
				"sink", sink.Name(),
				"kind", ev.Kind,
				"error", err,
			)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, ev Event) error {
	sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
	defer cancel()
	return sink.Notify(sinkCtx, ev)
}
