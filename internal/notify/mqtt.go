package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/vhtoggle/internal/device"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/mqtt"
)

// Publisher is the subset of *mqtt.Client used by MQTTSink.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTSink publishes events and the retained device state.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTSink creates an MQTT sink.
func NewMQTTSink(pub Publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

// Name implements Sink.
func (*MQTTSink) Name() string { return "mqtt" }

// statePayload is the retained body of vhtoggle/device/{id}/state.
type statePayload struct {
	State     device.State `json:"state"`
	Address   string       `json:"address,omitempty"`
	Label     string       `json:"label"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Notify implements Sink. Every event goes to vhtoggle/event/{kind};
// state changes also update the retained state topic. Each publish waits at
// most the client's publish timeout; ctx is checked before each one.
func (s *MQTTSink) Notify(ctx context.Context, ev Event) error {
	if ev.Kind == KindStateChanged && ev.State != nil {
		payload := statePayload{
			State:     *ev.State,
			Address:   ev.Address,
			Label:     ev.Label,
			UpdatedAt: ev.Time,
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.pub.PublishJSON(s.topics.DeviceState(ev.DeviceID), payload, true); err != nil {
			return fmt.Errorf("publishing state: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.pub.PublishJSON(s.topics.Event(string(ev.Kind)), ev, false); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}
