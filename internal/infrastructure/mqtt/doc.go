// Package mqtt provides the MQTT client SensorHub uses to fan telemetry out
// to other services.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and Last Will and Testament
//   - Publishing readings and device status with QoS guarantees
//   - Subscriptions (restored after reconnect), used for the rescan command
//
// # Topics
//
//	sensorhub/telemetry/{device_id}            reading payloads
//	sensorhub/core/device/{device_id}/status   retained online/offline status
//	sensorhub/command/rescan                   any payload triggers an early scan
//	sensorhub/system/status                    retained service status (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.CommandRescan(), 1,
//	    func(topic string, payload []byte) error {
//	        scanner.Nudge()
//	        return nil
//	    })
//
// The MQTT bus is optional: when mqtt.enabled is false nothing in this package
// is constructed and readings are only stored locally.
package mqtt
