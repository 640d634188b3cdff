package telemetry

import (
	"encoding/json"
	"math"
	"time"
)

// Handshake sentinels sent by device firmware.
const (
	SentinelReady = "ARDUINO_READY"
	SentinelError = "ARDUINO_ERROR"
)

// IsSentinel reports whether line is one of the handshake sentinels.
func IsSentinel(line string) bool {
	return line == SentinelReady || line == SentinelError
}

// Reading is one sample from a device. Readings are values; once appended
// to a history they are never modified.
type Reading struct {
	Time time.Time
	HR   float64
	SpO2 float64
	Temp float64
}

// wireReading is the persisted and served JSON shape of a Reading.
type wireReading struct {
	Timestamp float64 `json:"timestamp"`
	HR        float64 `json:"hr"`
	SpO2      float64 `json:"spo2"`
	Temp      float64 `json:"temp"`
}

// Timestamp returns the capture time as fractional seconds since the Unix epoch.
func (r Reading) Timestamp() float64 {
	return float64(r.Time.Unix()) + float64(r.Time.Nanosecond())/float64(time.Second)
}

// Fields returns the numeric fields keyed by their wire names.
func (r Reading) Fields() map[string]float64 {
	return map[string]float64{"hr": r.HR, "spo2": r.SpO2, "temp": r.Temp}
}

// MarshalJSON encodes the reading as {timestamp, hr, spo2, temp} with the
// timestamp in float epoch seconds.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireReading{
		Timestamp: r.Timestamp(),
		HR:        r.HR,
		SpO2:      r.SpO2,
		Temp:      r.Temp,
	})
}

// UnmarshalJSON decodes the {timestamp, hr, spo2, temp} shape.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var w wireReading
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Reading{
		Time: fromEpochSeconds(w.Timestamp),
		HR:   w.HR,
		SpO2: w.SpO2,
		Temp: w.Temp,
	}
	return nil
}

func fromEpochSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second))))
}
