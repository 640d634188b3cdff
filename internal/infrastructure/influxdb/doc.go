// Package influxdb mirrors recorded readings into InfluxDB v2.
//
// The JSON/SQLite history store remains the source of truth for the query
// API; InfluxDB is an optional secondary copy for dashboards. Each reading
// becomes one point:
//
//	measurement: vitals
//	tags:        device_id
//	fields:      hr, spo2, temp
//	time:        the reading's capture time
//
// Writes are non-blocking and batched (influxdb.batch_size,
// influxdb.flush_interval). Asynchronous write failures are delivered to the
// callback set with SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteVitals("device_1", capturedAt, map[string]float64{"hr": 72, "spo2": 98, "temp": 36.6})
package influxdb
