package mqtt

import "fmt"

// TopicPrefix is the root of every topic this service publishes.
const TopicPrefix = "graylogic/climate"

// Topics builds the service's MQTT topics.
//
//	mqtt.Topics{}.DeviceState("ac-living")
//	// graylogic/climate/state/ac-living
type Topics struct{}

// Status is the retained online/offline topic, also used for the LWT.
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// DeviceState is the retained snapshot topic for one unit.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// CommandEvent carries command failures for one unit. Not retained.
func (Topics) CommandEvent(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// Outdoor is the retained outdoor conditions topic.
func (Topics) Outdoor() string {
	return TopicPrefix + "/outdoor"
}

// AllDeviceStates matches every unit's state topic.
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/state/+"
}
