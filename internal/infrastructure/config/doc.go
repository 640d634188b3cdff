// Package config handles loading and validating SensorHub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Durations (serial timeouts, settle delay, discovery interval) are written
// as Go duration strings in YAML, e.g. "5s" or "1500ms".
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Discovery.Interval)
package config
