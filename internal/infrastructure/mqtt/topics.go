package mqtt

import "fmt"

// TopicPrefix is the root of every vhtoggle topic.
const TopicPrefix = "vhtoggle"

// Topics provides builders for vhtoggle MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceState("wooting-60he") // "vhtoggle/device/wooting-60he/state"
type Topics struct{}

// DeviceState returns the retained state topic for a device.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceID)
}

// Event returns the topic for a notification of the given kind.
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, kind)
}

// Command returns the topic toggle/refresh commands arrive on.
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// SystemStatus returns the retained online/offline topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllEvents returns a wildcard matching every event topic.
func (Topics) AllEvents() string {
	return TopicPrefix + "/event/+"
}
