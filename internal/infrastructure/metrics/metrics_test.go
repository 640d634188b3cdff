package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ProbeFinished(OutcomeConfirmed)
	m.ProbeFinished(OutcomeRejected)
	m.ProbeFinished(OutcomeRejected)
	m.ReadingRecorded("device_1")
	m.LineDropped(DropMalformed)
	m.PersistFailed("history")
	m.ScanCompleted()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"confirmed probes", testutil.ToFloat64(m.probes.WithLabelValues(OutcomeConfirmed)), 1},
		{"rejected probes", testutil.ToFloat64(m.probes.WithLabelValues(OutcomeRejected)), 2},
		{"readings", testutil.ToFloat64(m.readingsRecorded.WithLabelValues("device_1")), 1},
		{"dropped", testutil.ToFloat64(m.linesDropped.WithLabelValues(DropMalformed)), 1},
		{"persist failures", testutil.ToFloat64(m.persistFailures.WithLabelValues("history")), 1},
		{"scan cycles", testutil.ToFloat64(m.scanCycles), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()

	m.ReaderStarted()
	m.ReaderStarted()
	m.ReaderStopped()
	m.SetRegisteredDevices(3)

	if got := testutil.ToFloat64(m.activeReaders); got != 1 {
		t.Errorf("active readers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.registeredDevices); got != 3 {
		t.Errorf("registered devices = %v, want 3", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ProbeFinished(OutcomeConfirmed)
	m.ReadingRecorded("device_1")
	m.LineDropped(DropMalformed)
	m.PersistFailed("registry")
	m.ReaderStarted()
	m.ReaderStopped()
	m.SetRegisteredDevices(1)
	m.ScanCompleted()
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ReadingRecorded("device_7")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body) //nolint:errcheck // Recorder body
	for _, want := range []string{
		`sensorhub_readings_recorded_total{device_id="device_7"} 1`,
		"sensorhub_active_readers 0",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
