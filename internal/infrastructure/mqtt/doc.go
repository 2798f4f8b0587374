// Package mqtt provides the MQTT connection used to publish device state and
// receive toggle commands.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained state publishing and event publishing
//   - The command subscription, restored after reconnect
//   - Last Will and Testament (LWT) so subscribers see vhtoggle go offline
//
// # Topics
//
//	vhtoggle/device/{id}/state    retained, current state JSON
//	vhtoggle/event/{kind}         progress, failure, state_changed
//	vhtoggle/command/{id}         "toggle" or "refresh" (subscribed)
//	vhtoggle/system/status        retained online/offline, also the LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Command("wooting-60he"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(payload)
//	    })
package mqtt
