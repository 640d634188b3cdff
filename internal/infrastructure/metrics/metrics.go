package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorhub"

// Probe outcome label values.
const (
	OutcomeConfirmed    = "confirmed"
	OutcomeRejected     = "rejected"
	OutcomeUnresponsive = "unresponsive"
)

// Line drop reason label values.
const (
	DropMalformed = "malformed"
	DropTooLong   = "too_long"
)

// Metrics holds every SensorHub collector and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	probes            *prometheus.CounterVec
	readingsRecorded  *prometheus.CounterVec
	linesDropped      *prometheus.CounterVec
	persistFailures   *prometheus.CounterVec
	activeReaders     prometheus.Gauge
	registeredDevices prometheus.Gauge
	scanCycles        prometheus.Counter
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Handshake probes by outcome.",
		}, []string{"outcome"}),
		readingsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_recorded_total",
			Help:      "Readings appended to the store, per device.",
		}, []string{"device_id"}),
		linesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_dropped_total",
			Help:      "Serial lines discarded before reaching the store, by reason.",
		}, []string{"reason"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed writes to durable storage, by store.",
		}, []string{"store"}),
		activeReaders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_readers",
			Help:      "Device reader goroutines currently running.",
		}),
		registeredDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_devices",
			Help:      "Hardware serial numbers with an assigned device id.",
		}),
		scanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_cycles_total",
			Help:      "Completed discovery cycles.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.probes,
		m.readingsRecorded,
		m.linesDropped,
		m.persistFailures,
		m.activeReaders,
		m.registeredDevices,
		m.scanCycles,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ProbeFinished counts one handshake probe.
func (m *Metrics) ProbeFinished(outcome string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcome).Inc()
}

// ReadingRecorded counts one reading appended for deviceID.
func (m *Metrics) ReadingRecorded(deviceID string) {
	if m == nil {
		return
	}
	m.readingsRecorded.WithLabelValues(deviceID).Inc()
}

// LineDropped counts one discarded serial line.
func (m *Metrics) LineDropped(reason string) {
	if m == nil {
		return
	}
	m.linesDropped.WithLabelValues(reason).Inc()
}

// PersistFailed counts one failed durable write to store ("registry" or "history").
func (m *Metrics) PersistFailed(store string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(store).Inc()
}

// ReaderStarted increments the active reader gauge.
func (m *Metrics) ReaderStarted() {
	if m == nil {
		return
	}
	m.activeReaders.Inc()
}

// ReaderStopped decrements the active reader gauge.
func (m *Metrics) ReaderStopped() {
	if m == nil {
		return
	}
	m.activeReaders.Dec()
}

// SetRegisteredDevices sets the registered device gauge.
func (m *Metrics) SetRegisteredDevices(n int) {
	if m == nil {
		return
	}
	m.registeredDevices.Set(float64(n))
}

// ScanCompleted counts one discovery cycle.
func (m *Metrics) ScanCompleted() {
	if m == nil {
		return
	}
	m.scanCycles.Inc()
}
