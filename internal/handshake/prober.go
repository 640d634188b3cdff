package handshake

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
	"github.com/nerrad567/sensorhub/internal/serialport"
	"github.com/nerrad567/sensorhub/internal/telemetry"
)

// Outcome is the result of probing one port.
type Outcome int

const (
	// Unresponsive means no usable answer: open failure, timeout, or an
	// unrecognised line.
	Unresponsive Outcome = iota

	// Confirmed means the device sent the ready sentinel.
	Confirmed

	// Rejected means the device reported a sensor failure.
	Rejected
)

// String returns the outcome's metrics label.
func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return metrics.OutcomeConfirmed
	case Rejected:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeUnresponsive
	}
}

// Logger defines the logging interface used by the Prober.
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

// Prober runs the handshake against a port. It is safe for concurrent use
// on different ports.
type Prober struct {
	opener      serialport.Opener
	readTimeout time.Duration
	settleDelay time.Duration
	metrics     *metrics.Metrics
	logger      Logger
}

// NewProber creates a prober using the handshake timings from cfg.
func NewProber(opener serialport.Opener, cfg config.SerialConfig) *Prober {
	return &Prober{
		opener:      opener,
		readTimeout: cfg.ProbeReadTimeout,
		settleDelay: cfg.SettleDelay,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the prober.
func (p *Prober) SetLogger(logger Logger) {
	p.logger = logger
}

// SetMetrics sets the collector that counts probe outcomes. Nil disables counting.
func (p *Prober) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// Probe opens port, waits for the device to settle, reads one line and
// classifies it. The port is closed before Probe returns.
func (p *Prober) Probe(ctx context.Context, port string) Outcome {
	outcome, line, err := p.probe(ctx, port)
	p.metrics.ProbeFinished(outcome.String())

	switch {
	case outcome == Confirmed:
		p.logger.Info("device confirmed", "port", port)
	case outcome == Rejected:
		p.logger.Warn("device reported sensor error", "port", port)
	case err != nil:
		p.logger.Debug("probe failed", "port", port, "error", err)
	default:
		p.logger.Debug("unrecognised handshake", "port", port, "line", line)
	}
	return outcome
}

func (p *Prober) probe(ctx context.Context, port string) (Outcome, string, error) {
	conn, err := p.opener.Open(port, p.readTimeout)
	if err != nil {
		return Unresponsive, "", err
	}
	defer conn.Close() //nolint:errcheck // Probe outcome does not depend on close

	// Cancellation closes the port, which unblocks a pending read.
	stop := context.AfterFunc(ctx, func() { conn.Close() }) //nolint:errcheck
	defer stop()

	if p.settleDelay > 0 {
		timer := time.NewTimer(p.settleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Unresponsive, "", ctx.Err()
		case <-timer.C:
		}
	}

	line, err := conn.ReadLine()
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, serialport.ErrClosed) {
			err = ctx.Err()
		}
		return Unresponsive, "", err
	}

	switch line {
	case telemetry.SentinelReady:
		return Confirmed, line, nil
	case telemetry.SentinelError:
		return Rejected, line, nil
	default:
		return Unresponsive, line, nil
	}
}
