package ingest

import (
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorhub/internal/telemetry"
)

// JSONPublisher publishes a value as JSON. *mqtt.Client implements it.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// TelemetryMessage is the MQTT payload for one reading.
type TelemetryMessage struct {
	DeviceID  string  `json:"device_id"`
	Timestamp float64 `json:"timestamp"`
	HR        float64 `json:"hr"`
	SpO2      float64 `json:"spo2"`
	Temp      float64 `json:"temp"`
}

// MQTTSink publishes each reading on the device's telemetry topic.
type MQTTSink struct {
	pub    JSONPublisher
	logger Logger
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub JSONPublisher, logger Logger) *MQTTSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTSink{pub: pub, logger: logger}
}

// RecordReading implements telemetry.Sink. Publish failures are logged and
// the reading is not retried.
func (s *MQTTSink) RecordReading(deviceID string, r telemetry.Reading) {
	msg := TelemetryMessage{
		DeviceID:  deviceID,
		Timestamp: r.Timestamp(),
		HR:        r.HR,
		SpO2:      r.SpO2,
		Temp:      r.Temp,
	}
	if err := s.pub.PublishJSON(mqtt.Topics{}.Telemetry(deviceID), msg, false); err != nil {
		s.logger.Debug("telemetry publish failed", "device_id", deviceID, "error", err)
	}
}

// VitalsWriter writes one point to the time-series mirror. *influxdb.Client implements it.
type VitalsWriter interface {
	WriteVitals(deviceID string, at time.Time, fields map[string]float64)
}

// InfluxSink mirrors each reading into InfluxDB.
type InfluxSink struct {
	w VitalsWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w VitalsWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// RecordReading implements telemetry.Sink.
func (s *InfluxSink) RecordReading(deviceID string, r telemetry.Reading) {
	s.w.WriteVitals(deviceID, r.Time, r.Fields())
}
