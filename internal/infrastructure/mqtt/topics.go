package mqtt

import "fmt"

// Topic prefixes for the SensorHub topic hierarchy.
const (
	TopicPrefix       = "sensorhub"
	TopicPrefixCore   = TopicPrefix + "/core"
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for SensorHub MQTT topics.
//
//	topic := mqtt.Topics{}.Telemetry("device_1")
//	// Returns: "sensorhub/telemetry/device_1"
type Topics struct{}

// Telemetry returns the topic a device's readings are published on.
//
// Example: sensorhub/telemetry/device_1
func (Topics) Telemetry(deviceID string) string {
	return fmt.Sprintf("%s/telemetry/%s", TopicPrefix, deviceID)
}

// DeviceStatus returns the retained online/offline topic for a device.
//
// Example: sensorhub/core/device/device_1/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/status", TopicPrefixCore, deviceID)
}

// CommandRescan returns the topic that requests an immediate discovery cycle.
func (Topics) CommandRescan() string {
	return TopicPrefix + "/command/rescan"
}

// SystemStatus returns the service status topic (also the LWT topic).
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllTelemetry matches every device's telemetry topic.
//
// Pattern: sensorhub/telemetry/+
func (Topics) AllTelemetry() string {
	return TopicPrefix + "/telemetry/+"
}

// AllDeviceStatus matches every device status topic.
//
// Pattern: sensorhub/core/device/+/status
func (Topics) AllDeviceStatus() string {
	return TopicPrefixCore + "/device/+/status"
}
