// Package api implements the HTTP query service and WebSocket stream for SensorHub.
//
// This package provides:
//   - The original read-only endpoints: GET / lists device ids and
//     GET /{id} returns a device's full history
//   - Versioned REST endpoints under /api/v1 for health, device listing
//     and filtered reading queries
//   - A WebSocket hub that streams reading.recorded, device.online and
//     device.offline events to subscribed clients
//   - Prometheus exposition when metrics are enabled
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server only reads shared state. Readings arrive through the ingest
// readers, which append to the telemetry.Store and call the Hub as a sink;
// the discovery scanner reports reader lifecycle to the Hub as device events.
//
// # Graceful Degradation
//
// Every collaborator except the reading store is optional. Without the
// identity registry or the active-port set the device listing omits serial
// and port details.
package api
