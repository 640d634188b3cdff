// Package metrics exposes SensorHub's Prometheus metrics.
//
// All collectors live on a private registry owned by a Metrics value, so
// tests can create as many as they like without clashing on the global
// default registry. Handler serves the registry in exposition format.
//
// A nil *Metrics is valid and records nothing.
package metrics
