// Package ingest runs one Reader per confirmed device. A Reader owns its
// serial port for its whole life, turns each data line into a
// telemetry.Reading, appends it to the shared Store and fans it out to
// sinks (MQTT, InfluxDB, the WebSocket hub).
package ingest
