// Package identity binds hardware serial numbers to stable logical device ids.
//
// A serial number is the only property of a USB serial device that survives
// unplugging, re-enumeration and OS port renumbering (/dev/ttyACM0 today may
// be /dev/ttyACM3 tomorrow). The Registry maps each serial number it sees to
// an id of the form device_<n>:
//
//   - ids are assigned once, in order of first sight, and never reused
//   - the mapping is bijective: one serial, one id, and vice versa
//   - the mapping only grows; nothing is ever unbound
//
// A new binding is persisted before it becomes visible, so a crash can never
// leave a reading stored under an id the registry file does not know.
//
// # Storage
//
// Two Store implementations are provided:
//
//   - FileStore writes the whole map as one JSON object ({"<serial>": "device_1"})
//     using write-temp-then-rename.
//   - SQLiteStore keeps the bindings in the device_identities table.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. A single mutex guards
// the map and is held across the Store call.
package identity
