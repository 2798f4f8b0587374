// Package notify tells the user (and anything else listening) what the
// toggle is doing.
//
// The controller talks to a Notifier with three calls:
//
//   - Progress: a transient toast ("Connecting Wooting 60HE+...")
//   - Failure: a failure toast ("Failed to get device list via VirtualHere Client")
//   - StateChanged: a HUD message ("Wooting 60HE+ connected") plus the
//     status label ("Connected")
//
// Dispatcher implements Notifier by turning each call into an Event and
// handing it to every configured Sink: the log, the desktop notification
// daemon, MQTT, InfluxDB and the WebSocket hub. Sinks never see each
// other's failures; a failing sink is logged and skipped.
package notify
