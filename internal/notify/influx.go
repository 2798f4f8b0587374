package notify

import (
	"context"

	"github.com/nerrad567/vhtoggle/internal/infrastructure/influxdb"
)

// StateWriter is the subset of *influxdb.Client used by InfluxSink.
type StateWriter interface {
	WriteStateChange(change influxdb.StateChange)
}

// InfluxSink records state changes as time-series points.
// Progress and failure events are ignored.
type InfluxSink struct {
	writer StateWriter
}

// NewInfluxSink creates an InfluxDB sink.
func NewInfluxSink(writer StateWriter) *InfluxSink {
	return &InfluxSink{writer: writer}
}

// Name implements Sink.
func (*InfluxSink) Name() string { return "influxdb" }

// Notify implements Sink. Writes are asynchronous; errors surface through
// the client's error callback.
func (s *InfluxSink) Notify(_ context.Context, ev Event) error {
	if ev.Kind != KindStateChanged || ev.State == nil {
		return nil
	}

	s.writer.WriteStateChange(influxdb.StateChange{
		DeviceID: ev.DeviceID,
		State:    ev.State.String(),
		Address:  ev.Address,
		Source:   ev.Source,
		Time:     ev.Time,
	})
	return nil
}
