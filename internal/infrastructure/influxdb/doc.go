// Package influxdb records device state transitions as time-series points.
//
// Each observed change becomes one point in the device_state measurement:
//
//	device_state,device_id=wooting-60he,source=interactive state="CONNECTED",connected=1i,address="Wooting 60HE+ keyboard"
//
// Writes are non-blocking and batched by the underlying client; failures are
// delivered to the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteStateChange(influxdb.StateChange{DeviceID: "wooting-60he", State: "CONNECTED"})
package influxdb
