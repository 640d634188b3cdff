package telemetry

// Sink receives every reading after it has been appended to the Store.
// Implementations must not block for long; they run on the reader's goroutine.
type Sink interface {
	RecordReading(deviceID string, r Reading)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(deviceID string, r Reading)

// RecordReading calls f.
func (f SinkFunc) RecordReading(deviceID string, r Reading) {
	f(deviceID, r)
}

// MultiSink fans a reading out to each sink in order. Nil entries are skipped.
type MultiSink []Sink

// RecordReading forwards to every sink.
func (m MultiSink) RecordReading(deviceID string, r Reading) {
	for _, s := range m {
		if s != nil {
			s.RecordReading(deviceID, r)
		}
	}
}
