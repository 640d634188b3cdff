package discovery

import (
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/mqtt"
)

// DeviceEvents is notified as readers start and stop.
type DeviceEvents interface {
	DeviceOnline(deviceID, port string)
	DeviceOffline(deviceID, port string, err error)
}

// MultiEvents forwards to each listener in order. Nil entries are skipped.
type MultiEvents []DeviceEvents

// DeviceOnline implements DeviceEvents.
func (m MultiEvents) DeviceOnline(deviceID, port string) {
	for _, e := range m {
		if e != nil {
			e.DeviceOnline(deviceID, port)
		}
	}
}

// DeviceOffline implements DeviceEvents.
func (m MultiEvents) DeviceOffline(deviceID, port string, err error) {
	for _, e := range m {
		if e != nil {
			e.DeviceOffline(deviceID, port, err)
		}
	}
}

// Device status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusMessage is the retained MQTT payload describing a device's reader.
type StatusMessage struct {
	DeviceID  string `json:"device_id"`
	Port      string `json:"port"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// JSONPublisher publishes a value as JSON. *mqtt.Client implements it.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTStatus publishes retained online/offline messages per device.
type MQTTStatus struct {
	pub    JSONPublisher
	logger Logger
	now    func() time.Time
}

// NewMQTTStatus creates a status publisher.
func NewMQTTStatus(pub JSONPublisher, logger Logger) *MQTTStatus {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTStatus{pub: pub, logger: logger, now: time.Now}
}

// DeviceOnline implements DeviceEvents.
func (s *MQTTStatus) DeviceOnline(deviceID, port string) {
	s.publish(StatusMessage{DeviceID: deviceID, Port: port, Status: StatusOnline})
}

// DeviceOffline implements DeviceEvents.
func (s *MQTTStatus) DeviceOffline(deviceID, port string, err error) {
	msg := StatusMessage{DeviceID: deviceID, Port: port, Status: StatusOffline}
	if err != nil {
		msg.Reason = err.Error()
	}
	s.publish(msg)
}

func (s *MQTTStatus) publish(msg StatusMessage) {
	msg.Timestamp = s.now().UTC().Format(time.RFC3339)
	if err := s.pub.PublishJSON(mqtt.Topics{}.DeviceStatus(msg.DeviceID), msg, true); err != nil {
		s.logger.Debug("device status publish failed", "device_id", msg.DeviceID, "error", err)
	}
}
