package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/sensorhub/internal/handshake"
	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/infrastructure/metrics"
	"github.com/nerrad567/sensorhub/internal/serialport"
)

// Logger defines the logging interface used by the Scanner.
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

// Prober classifies a port. *handshake.Prober implements it.
type Prober interface {
	Probe(ctx context.Context, port string) handshake.Outcome
}

// Resolver maps a hardware serial number to a logical device id.
// *identity.Registry implements it.
type Resolver interface {
	Resolve(ctx context.Context, serialNumber string) (string, error)
}

// Runner is a started device reader. *ingest.Reader implements it.
type Runner interface {
	Run(ctx context.Context) error
}

// ReaderFactory builds the reader for a confirmed device.
type ReaderFactory func(deviceID, port string) Runner

// Deps holds the collaborators of a Scanner.
type Deps struct {
	Enumerator serialport.Enumerator
	Prober     Prober
	Registry   Resolver
	NewReader  ReaderFactory

	// Active is the shared active-port set. A fresh set is created if nil.
	Active *ActivePorts

	// Events is notified when readers start and stop. Optional.
	Events DeviceEvents

	Metrics *metrics.Metrics
	Logger  Logger
}

// Scanner runs discovery cycles and owns the reader goroutines it starts.
type Scanner struct {
	cfg          config.DiscoveryConfig
	probeTimeout time.Duration

	enum      serialport.Enumerator
	prober    Prober
	registry  Resolver
	newReader ReaderFactory
	active    *ActivePorts
	events    DeviceEvents
	metrics   *metrics.Metrics
	logger    Logger

	nudge chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{}
	noSerial map[string]struct{}
	readers  sync.WaitGroup
}

// NewScanner creates a scanner. probeTimeout bounds each probe and should
// cover the settle delay plus the handshake read timeout.
func NewScanner(cfg config.DiscoveryConfig, probeTimeout time.Duration, deps Deps) (*Scanner, error) {
	if deps.Enumerator == nil {
		return nil, fmt.Errorf("enumerator is required")
	}
	if deps.Prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.NewReader == nil {
		return nil, fmt.Errorf("reader factory is required")
	}
	if cfg.MaxConcurrentProbes < 1 {
		cfg.MaxConcurrentProbes = 1
	}

	s := &Scanner{
		cfg:          cfg,
		probeTimeout: probeTimeout,
		enum:         deps.Enumerator,
		prober:       deps.Prober,
		registry:     deps.Registry,
		newReader:    deps.NewReader,
		active:       deps.Active,
		events:       deps.Events,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		nudge:        make(chan struct{}, 1),
		inflight:     make(map[string]struct{}),
		noSerial:     make(map[string]struct{}),
	}
	if s.active == nil {
		s.active = NewActivePorts()
	}
	if s.events == nil {
		s.events = MultiEvents(nil)
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s, nil
}

// Active returns the scanner's active-port set.
func (s *Scanner) Active() *ActivePorts {
	return s.active
}

// Run scans immediately, then on every interval tick and every Nudge, until
// ctx is cancelled. Readers started by Run stop with ctx; use Wait to join them.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("discovery started",
		"interval", s.cfg.Interval,
		"max_concurrent_probes", s.cfg.MaxConcurrentProbes,
	)

	for {
		if err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("scan cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("discovery stopped")
			return nil
		case <-ticker.C:
		case <-s.nudge:
			s.logger.Debug("scan requested")
		}
	}
}

// Nudge requests an early scan. It never blocks; nudges received while one
// is already pending are merged.
func (s *Scanner) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Wait blocks until every reader started by this scanner has returned.
func (s *Scanner) Wait() {
	s.readers.Wait()
}

// Scan runs one discovery cycle and returns once every probe in it has
// finished. Readers it starts keep running under ctx.
func (s *Scanner) Scan(ctx context.Context) error {
	ports, err := s.enum.List()
	if err != nil {
		return fmt.Errorf("listing ports: %w", err)
	}

	candidates := s.claimCandidates(ports)

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentProbes)
	for _, p := range candidates {
		g.Go(func() error {
			defer s.releaseInflight(p.Name)
			s.probeAndStart(ctx, p)
			return nil
		})
	}
	_ = g.Wait() // Probes never return errors

	s.metrics.ScanCompleted()
	return nil
}

// claimCandidates filters ports down to those worth probing and marks them
// in flight.
func (s *Scanner) claimCandidates(ports []serialport.PortInfo) []serialport.PortInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(ports))
	var out []serialport.PortInfo
	for _, p := range ports {
		present[p.Name] = struct{}{}

		if p.SerialNumber == "" {
			if _, logged := s.noSerial[p.Name]; !logged {
				s.noSerial[p.Name] = struct{}{}
				s.logger.Info("ignoring port without serial number", "port", p.Name)
			}
			continue
		}
		if s.active.Contains(p.Name) {
			continue
		}
		if _, busy := s.inflight[p.Name]; busy {
			continue
		}
		s.inflight[p.Name] = struct{}{}
		out = append(out, p)
	}

	// Forget ports that went away so a replug is reported again.
	for name := range s.noSerial {
		if _, ok := present[name]; !ok {
			delete(s.noSerial, name)
		}
	}
	return out
}

func (s *Scanner) releaseInflight(port string) {
	s.mu.Lock()
	delete(s.inflight, port)
	s.mu.Unlock()
}

func (s *Scanner) probeAndStart(ctx context.Context, p serialport.PortInfo) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	outcome := s.prober.Probe(probeCtx, p.Name)
	cancel()

	if outcome != handshake.Confirmed || ctx.Err() != nil {
		return
	}

	id, err := s.registry.Resolve(ctx, p.SerialNumber)
	if err != nil {
		s.logger.Warn("cannot assign device id, will retry next cycle",
			"port", p.Name, "serial", p.SerialNumber, "error", err)
		s.metrics.PersistFailed("registry")
		return
	}

	s.startReader(ctx, id, p.Name)
}

func (s *Scanner) startReader(ctx context.Context, id, port string) {
	if !s.active.Claim(port, id) {
		return
	}

	reader := s.newReader(id, port)
	s.readers.Add(1)
	go func() {
		defer s.readers.Done()

		s.logger.Info("device online", "device_id", id, "port", port)
		s.events.DeviceOnline(id, port)

		err := reader.Run(ctx)
		switch {
		case err == nil || errors.Is(err, context.Canceled):
			s.logger.Info("reader stopped", "device_id", id, "port", port)
		default:
			s.logger.Warn("reader exited", "device_id", id, "port", port, "error", err)
		}
		s.events.DeviceOffline(id, port, err)

		if s.cfg.RearmOnReaderExit {
			s.active.Release(port)
		} else {
			s.active.MarkStopped(port)
			if ctx.Err() == nil {
				s.logger.Warn("port stays claimed until restart", "device_id", id, "port", port)
			}
		}
	}()
}
