package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
	"github.com/nerrad567/sensorhub/internal/serialport"
	"github.com/nerrad567/sensorhub/internal/telemetry"
)

// Logger defines the logging interface used by the Reader.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Appender is the part of telemetry.Store a Reader writes to.
type Appender interface {
	Append(ctx context.Context, id string, r telemetry.Reading) error
}

// Reader streams readings from one port into the store.
type Reader struct {
	deviceID    string
	port        string
	opener      serialport.Opener
	readTimeout time.Duration
	store       Appender
	sink        telemetry.Sink
	metrics     *metrics.Metrics
	logger      Logger
	now         func() time.Time
}

// NewReader creates a reader that will record lines from port under deviceID.
func NewReader(deviceID, port string, opener serialport.Opener, readTimeout time.Duration, store Appender) *Reader {
	return &Reader{
		deviceID:    deviceID,
		port:        port,
		opener:      opener,
		readTimeout: readTimeout,
		store:       store,
		logger:      noopLogger{},
		now:         time.Now,
	}
}

// SetLogger sets the logger for the reader.
func (r *Reader) SetLogger(logger Logger) {
	r.logger = logger
}

// SetSink sets where readings go after they are stored.
func (r *Reader) SetSink(sink telemetry.Sink) {
	r.sink = sink
}

// SetMetrics sets the metrics collector. Nil disables counting.
func (r *Reader) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// SetClock replaces the capture-time source.
func (r *Reader) SetClock(now func() time.Time) {
	r.now = now
}

// DeviceID returns the logical id the reader records under.
func (r *Reader) DeviceID() string { return r.deviceID }

// Port returns the port the reader owns.
func (r *Reader) Port() string { return r.port }

// Run opens the port and records readings until ctx is cancelled (returns
// nil) or the port fails (returns the I/O error).
func (r *Reader) Run(ctx context.Context) error {
	conn, err := r.opener.Open(r.port, r.readTimeout)
	if err != nil {
		return fmt.Errorf("opening %s: %w", r.port, err)
	}
	defer conn.Close() //nolint:errcheck // Nothing useful to do on close failure

	stop := context.AfterFunc(ctx, func() { conn.Close() }) //nolint:errcheck
	defer stop()

	r.metrics.ReaderStarted()
	defer r.metrics.ReaderStopped()

	r.logger.Info("reader started", "device_id", r.deviceID, "port", r.port)

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := conn.ReadLine()
		switch {
		case err == nil:
		case errors.Is(err, serialport.ErrReadTimeout):
			continue
		case errors.Is(err, serialport.ErrLineTooLong):
			r.logger.Warn("dropping oversized line", "device_id", r.deviceID, "port", r.port)
			r.metrics.LineDropped(metrics.DropTooLong)
			continue
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("reading %s: %w", r.port, err)
		}

		if err := r.handleLine(ctx, line); err != nil {
			return err
		}
	}
}

// handleLine records one line. Only errors that make further reading
// pointless are returned.
func (r *Reader) handleLine(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if telemetry.IsSentinel(line) {
		r.logger.Debug("ignoring sentinel", "device_id", r.deviceID, "line", line)
		return nil
	}

	reading, err := telemetry.ParseLine(line, r.now())
	if err != nil {
		r.logger.Warn("dropping malformed line", "device_id", r.deviceID, "line", line, "error", err)
		r.metrics.LineDropped(metrics.DropMalformed)
		return nil
	}

	if err := r.store.Append(ctx, r.deviceID, reading); err != nil {
		if !errors.Is(err, telemetry.ErrPersistFailed) {
			return fmt.Errorf("recording reading: %w", err)
		}
		r.logger.Warn("history not persisted, will retry on next reading",
			"device_id", r.deviceID, "error", err)
		r.metrics.PersistFailed("history")
	}

	r.metrics.ReadingRecorded(r.deviceID)
	if r.sink != nil {
		r.sink.RecordReading(r.deviceID, reading)
	}
	return nil
}
