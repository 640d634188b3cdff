package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementVitals is the measurement readings are written to.
const MeasurementVitals = "vitals"

// WriteVitals queues one reading as a point on the vitals measurement,
// tagged with deviceID and stamped with the capture time. It never blocks;
// the point is dropped silently once the client is closed.
//
// Example:
//
//	client.WriteVitals("device_1", r.Time, map[string]float64{"hr": 72, "spo2": 98, "temp": 36.6})
func (c *Client) WriteVitals(deviceID string, at time.Time, fields map[string]float64) {
	if !c.IsConnected() {
		return
	}

	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementVitals,
		map[string]string{"device_id": deviceID},
		values,
		at,
	))
}
