package discovery

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sensorhub/internal/handshake"
	"github.com/nerrad567/sensorhub/internal/identity"
	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/ingest"
	"github.com/nerrad567/sensorhub/internal/serialport"
	"github.com/nerrad567/sensorhub/internal/serialport/serialporttest"
	"github.com/nerrad567/sensorhub/internal/telemetry"
)

var errUnplugged = errors.New("port has been closed")

type memHistory struct{}

func (memHistory) LoadAll(context.Context) (map[string][]telemetry.Reading, error) {
	return map[string][]telemetry.Reading{}, nil
}

func (memHistory) Persist(context.Context, string, []telemetry.Reading) error { return nil }

type recordedEvent struct {
	kind     string
	deviceID string
	port     string
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) DeviceOnline(deviceID, port string) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{StatusOnline, deviceID, port})
	r.mu.Unlock()
}

func (r *recordingEvents) DeviceOffline(deviceID, port string, _ error) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{StatusOffline, deviceID, port})
	r.mu.Unlock()
}

func (r *recordingEvents) list() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

type harness struct {
	opener   *serialporttest.Opener
	enum     *serialporttest.Enumerator
	registry *identity.Registry
	store    *telemetry.Store
	events   *recordingEvents
	scanner  *Scanner
}

func newHarness(t *testing.T, cfg config.DiscoveryConfig) *harness {
	t.Helper()

	h := &harness{
		opener:   serialporttest.NewOpener(),
		enum:     serialporttest.NewEnumerator(),
		registry: identity.NewRegistry(identity.NewFileStore(filepath.Join(t.TempDir(), "device_map.json"))),
		store:    telemetry.NewStore(memHistory{}),
		events:   &recordingEvents{},
	}

	serialCfg := config.SerialConfig{BaudRate: 115200, ReadTimeout: time.Second, ProbeReadTimeout: time.Second}
	s, err := NewScanner(cfg, time.Second, Deps{
		Enumerator: h.enum,
		Prober:     handshake.NewProber(h.opener, serialCfg),
		Registry:   h.registry,
		NewReader: func(deviceID, port string) Runner {
			return ingest.NewReader(deviceID, port, h.opener, serialCfg.ReadTimeout, h.store)
		},
		Events: h.events,
	})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	h.scanner = s
	return h
}

// plug queues a handshake reply and then a reader session for port.
func (h *harness) plug(port, handshakeLine string, lines ...string) *serialporttest.Conn {
	h.opener.Add(port, serialporttest.NewConn(handshakeLine))
	conn := serialporttest.NewConn(lines...).ThenFail(errUnplugged)
	h.opener.Add(port, conn)
	return conn
}

func sequentialConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{Interval: time.Hour, MaxConcurrentProbes: 1}
}

func TestScan_StartsReadersForConfirmedDevices(t *testing.T) {
	h := newHarness(t, sequentialConfig())
	h.plug("/dev/ttyACM0", "ARDUINO_READY", "hr=70")
	h.plug("/dev/ttyACM1", "ARDUINO_ERROR")
	h.plug("/dev/ttyACM2", "ARDUINO_READY", "hr=90;spo2=95")
	h.enum.Set(
		serialport.PortInfo{Name: "/dev/ttyACM0", SerialNumber: "SN-A"},
		serialport.PortInfo{Name: "/dev/ttyACM1", SerialNumber: "SN-B"},
		serialport.PortInfo{Name: "/dev/ttyACM2", SerialNumber: "SN-C"},
		serialport.PortInfo{Name: "/dev/ttyS0"},
	)

	if err := h.scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	h.scanner.Wait()

	if id, _ := h.registry.Lookup("SN-A"); id != "device_1" {
		t.Errorf("SN-A id = %q, want device_1", id)
	}
	if id, _ := h.registry.Lookup("SN-C"); id != "device_2" {
		t.Errorf("SN-C id = %q, want device_2", id)
	}
	if _, ok := h.registry.Lookup("SN-B"); ok {
		t.Error("rejected device was registered")
	}
	if h.opener.OpenCount("/dev/ttyS0") != 0 {
		t.Error("port without serial number was probed")
	}

	if got := h.store.Snapshot("device_1"); len(got) != 1 || got[0].HR != 70 {
		t.Errorf("device_1 history = %+v", got)
	}
	if got := h.store.Snapshot("device_2"); len(got) != 1 || got[0].SpO2 != 95 {
		t.Errorf("device_2 history = %+v", got)
	}

	if !h.scanner.Active().Contains("/dev/ttyACM0") || h.scanner.Active().Contains("/dev/ttyACM1") {
		t.Errorf("active ports = %+v", h.scanner.Active().List())
	}
}

func TestScan_ReenumeratedDeviceKeepsIdentity(t *testing.T) {
	h := newHarness(t, sequentialConfig())

	h.plug("/dev/ttyACM0", "ARDUINO_READY", "hr=60")
	h.enum.Set(serialport.PortInfo{Name: "/dev/ttyACM0", SerialNumber: "SN-A"})
	if err := h.scanner.Scan(context.Background()); err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}
	h.scanner.Wait()

	// Unplugged and replugged under a new name.
	h.plug("/dev/ttyACM1", "ARDUINO_READY", "hr=61")
	h.enum.Set(serialport.PortInfo{Name: "/dev/ttyACM1", SerialNumber: "SN-A"})
	if err := h.scanner.Scan(context.Background()); err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}
	h.scanner.Wait()

	if h.registry.Count() != 1 {
		t.Errorf("registry Count() = %d, want 1", h.registry.Count())
	}
	got := h.store.Snapshot("device_1")
	if len(got) != 2 || got[0].HR != 60 || got[1].HR != 61 {
		t.Errorf("device_1 history = %+v, want hr 60 then 61", got)
	}
}

func TestScan_ExitedReaderKeepsPortClaimed(t *testing.T) {
	h := newHarness(t, sequentialConfig())
	h.plug("/dev/ttyACM0", "ARDUINO_READY")
	h.enum.Set(serialport.PortInfo{Name: "/dev/ttyACM0", SerialNumber: "SN-A"})

	if err := h.scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	h.scanner.Wait()

	st, ok := h.scanner.Active().ByDevice("device_1")
	if !ok || st.Running {
		t.Fatalf("ByDevice() = %+v, %v; want claimed and stopped", st, ok)
	}

	if err := h.scanner.Scan(context.Background()); err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}
	if n := h.opener.OpenCount("/dev/ttyACM0"); n != 2 {
		t.Errorf("OpenCount() = %d, want 2 (probe + reader only)", n)
	}
}

func TestScan_RearmOnReaderExit(t *testing.T) {
	cfg := sequentialConfig()
	cfg.RearmOnReaderExit = true
	h := newHarness(t, cfg)
	h.plug("/dev/ttyACM0", "ARDUINO_READY", "hr=1")
	h.plug("/dev/ttyACM0", "ARDUINO_READY", "hr=2")
	h.enum.Set(serialport.PortInfo{Name: "/dev/ttyACM0", SerialNumber: "SN-A"})

	for i := 0; i < 2; i++ {
		if err := h.scanner.Scan(context.Background()); err != nil {
			t.Fatalf("Scan() %d error = %v", i, err)
		}
		h.scanner.Wait()
	}

	if h.scanner.Active().Contains("/dev/ttyACM0") {
		t.Error("port still claimed after reader exit with rearm enabled")
	}
	if n := h.store.Len("device_1"); n != 2 {
		t.Errorf("device_1 has %d readings, want 2", n)
	}
}

func TestScan_RunningReaderNotReprobed(t *testing.T) {
	h := newHarness(t, sequentialConfig())
	h.opener.Add("/dev/ttyACM0", serialporttest.NewConn("ARDUINO_READY"))
	reader := serialporttest.NewConn("hr=72")
	h.opener.Add("/dev/ttyACM0", reader)
	h.enum.Set(serialport.PortInfo{Name: "/dev/ttyACM0", SerialNumber: "SN-A"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := h.scanner.Scan(ctx); err != nil {
			t.Fatalf("Scan() %d error = %v", i, err)
		}
	}
	if n := h.opener.OpenCount("/dev/ttyACM0"); n != 2 {
		t.Errorf("OpenCount() = %d, want 2", n)
	}

	cancel()
	h.scanner.Wait()
	if !reader.Closed() {
		t.Error("reader port not closed after cancel")
	}

	events := h.events.list()
	if len(events) != 2 || events[0].kind != StatusOnline || events[1].kind != StatusOffline {
		t.Errorf("events = %+v, want online then offline", events)
	}
}

type failingResolver struct{ calls int }

func (f *failingResolver) Resolve(context.Context, string) (string, error) {
	f.calls++
	return "", identity.ErrPersistFailed
}

func TestScan_RegistryFailureSkipsPort(t *testing.T) {
	opener := serialporttest.NewOpener()
	opener.Add("/dev/ttyACM0", serialporttest.NewConn("ARDUINO_READY"))
	opener.Add("/dev/ttyACM0", serialporttest.NewConn("ARDUINO_READY"))
	enum := serialporttest.NewEnumerator(serialport.PortInfo{Name: "/dev/ttyACM0", SerialNumber: "SN-A"})
	resolver := &failingResolver{}
	started := 0

	s, err := NewScanner(sequentialConfig(), time.Second, Deps{
		Enumerator: enum,
		Prober:     handshake.NewProber(opener, config.SerialConfig{ProbeReadTimeout: time.Second}),
		Registry:   resolver,
		NewReader: func(string, string) Runner {
			started++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Scan(context.Background()); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
	}
	if resolver.calls != 2 {
		t.Errorf("Resolve calls = %d, want 2 (port retried next cycle)", resolver.calls)
	}
	if started != 0 || s.Active().Len() != 0 {
		t.Errorf("started = %d, active = %d; want none", started, s.Active().Len())
	}
}

func TestScan_EnumeratorError(t *testing.T) {
	h := newHarness(t, sequentialConfig())
	h.enum.SetError(errors.New("no /sys"))

	if err := h.scanner.Scan(context.Background()); err == nil {
		t.Fatal("Scan() error = nil, want enumeration failure")
	}
}

type countingEnumerator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingEnumerator) List() ([]serialport.PortInfo, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil, nil
}

func (c *countingEnumerator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRun_ScansImmediatelyAndOnNudge(t *testing.T) {
	enum := &countingEnumerator{}
	s, err := NewScanner(sequentialConfig(), time.Second, Deps{
		Enumerator: enum,
		Prober:     handshake.NewProber(serialporttest.NewOpener(), config.SerialConfig{}),
		Registry:   &failingResolver{},
		NewReader:  func(string, string) Runner { return nil },
	})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { return enum.count() >= 1 })
	s.Nudge()
	waitFor(t, func() bool { return enum.count() >= 2 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestNudge_NeverBlocks(t *testing.T) {
	s, err := NewScanner(sequentialConfig(), time.Second, Deps{
		Enumerator: &countingEnumerator{},
		Prober:     handshake.NewProber(serialporttest.NewOpener(), config.SerialConfig{}),
		Registry:   &failingResolver{},
		NewReader:  func(string, string) Runner { return nil },
	})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		s.Nudge()
	}
}

func TestNewScanner_RequiresDeps(t *testing.T) {
	if _, err := NewScanner(sequentialConfig(), time.Second, Deps{}); err == nil {
		t.Error("NewScanner() with no deps error = nil")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

// stallingProber blocks on stalled ports until the probe context ends and
// confirms every other port immediately.
type stallingProber struct {
	stalled string

	mu       sync.Mutex
	released time.Time
	ctxErr   error
}

func (p *stallingProber) Probe(ctx context.Context, port string) handshake.Outcome {
	if port != p.stalled {
		return handshake.Confirmed
	}
	<-ctx.Done()
	p.mu.Lock()
	p.released = time.Now()
	p.ctxErr = ctx.Err()
	p.mu.Unlock()
	return handshake.Unresponsive
}

type startRecorder struct {
	mu      sync.Mutex
	started map[string]time.Time
}

func (r *startRecorder) factory(deviceID, port string) Runner {
	return runnerFunc(func(ctx context.Context) error {
		r.mu.Lock()
		r.started[port] = time.Now()
		r.mu.Unlock()
		<-ctx.Done()
		return nil
	})
}

func (r *startRecorder) at(port string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.started[port]
	return t, ok
}

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestScan_StalledProbeDoesNotBlockOthers(t *testing.T) {
	const probeTimeout = 300 * time.Millisecond

	enum := serialporttest.NewEnumerator(
		serialport.PortInfo{Name: "/dev/ttyACM0", SerialNumber: "SN-STUCK"},
		serialport.PortInfo{Name: "/dev/ttyACM1", SerialNumber: "SN-OK"},
	)
	prober := &stallingProber{stalled: "/dev/ttyACM0"}
	readers := &startRecorder{started: make(map[string]time.Time)}
	registry := identity.NewRegistry(identity.NewFileStore(filepath.Join(t.TempDir(), "device_map.json")))

	s, err := NewScanner(config.DiscoveryConfig{Interval: time.Hour, MaxConcurrentProbes: 2}, probeTimeout, Deps{
		Enumerator: enum,
		Prober:     prober,
		Registry:   registry,
		NewReader:  readers.factory,
	})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	if err := s.Scan(ctx); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	elapsed := time.Since(start)
	cancel()
	s.Wait()

	if elapsed < probeTimeout || elapsed > probeTimeout+time.Second {
		t.Errorf("Scan() took %v, want about %v", elapsed, probeTimeout)
	}

	prober.mu.Lock()
	released, ctxErr := prober.released, prober.ctxErr
	prober.mu.Unlock()
	if !errors.Is(ctxErr, context.DeadlineExceeded) {
		t.Errorf("stalled probe ended with %v, want deadline exceeded", ctxErr)
	}

	okStart, ok := readers.at("/dev/ttyACM1")
	if !ok {
		t.Fatal("reader for the responsive port never started")
	}
	if !okStart.Before(released) {
		t.Errorf("responsive reader started at %v, after the stalled probe ended at %v", okStart, released)
	}
	if _, ok := readers.at("/dev/ttyACM0"); ok {
		t.Error("reader started for the stalled port")
	}
	if id, _ := registry.Lookup("SN-OK"); id != "device_1" {
		t.Errorf("SN-OK id = %q, want device_1", id)
	}
}
