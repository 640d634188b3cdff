// Package discovery finds SensorHub devices on the serial bus and keeps one
// reader running per confirmed device.
//
// Each scan cycle enumerates ports, probes every port that is neither owned
// by a reader nor already being probed, and for each confirmed device
// resolves its persistent id and starts a reader. Port names are volatile;
// the hardware serial number is the identity, so a device that reappears
// under a different name keeps its id and its history.
//
// A port stays claimed after its reader exits unless
// DiscoveryConfig.RearmOnReaderExit is set, in which case it becomes
// eligible for probing again on the next cycle.
package discovery
