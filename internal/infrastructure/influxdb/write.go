package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceState is the measurement state changes are written to.
const MeasurementDeviceState = "device_state"

// StateChange is one observed transition.
type StateChange struct {
	DeviceID string
	State    string // persisted token, e.g. "CONNECTED"
	Address  string // empty when unavailable
	Source   string // interactive or background
	Time     time.Time
}

// WriteStateChange queues a device_state point. Non-blocking.
func (c *Client) WriteStateChange(change StateChange) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(stateChangePoint(change))
}

// stateChangePoint builds the point for a transition.
//
// connected is 1 or 0 so dashboards can graph attachment over time.
func stateChangePoint(change StateChange) *write.Point {
	ts := change.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{"device_id": change.DeviceID}
	if change.Source != "" {
		tags["source"] = change.Source
	}

	connected := 0
	if change.State == "CONNECTED" {
		connected = 1
	}

	fields := map[string]any{
		"state":     change.State,
		"connected": connected,
	}
	if change.Address != "" {
		fields["address"] = change.Address
	}

	return write.NewPoint(MeasurementDeviceState, tags, fields, ts)
}
