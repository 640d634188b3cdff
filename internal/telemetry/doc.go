// Package telemetry holds the reading model, the serial line parser and the
// per-device reading history store.
//
// # Line Format
//
// Devices emit one line per sample:
//
//	hr=72;spo2=98;temp=36.6
//
// Recognised keys are hr, spo2 and temp; a missing key reads as 0 and
// unknown keys are ignored. Two sentinel lines are part of the handshake
// and never reach the parser: ARDUINO_READY and ARDUINO_ERROR.
//
// # Store
//
// Store keeps every device's history in memory, in arrival order, and
// persists a device's history through a HistoryStore on every Append before
// returning. Histories are never compacted or evicted.
//
// HistoryStore implementations:
//
//   - FileHistoryStore: <data_dir>/<device_id>.json, a JSON array rewritten
//     whole (temp file + rename) on every append.
//   - SQLiteHistoryStore: rows in the readings table; each Persist inserts
//     the not-yet-stored tail, so a failed write is repaired by the next one.
//
// Both produce the same full history after a restart.
package telemetry
