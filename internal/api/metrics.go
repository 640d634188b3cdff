package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the GET /api/v1/system response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *BackendStatus `json:"mqtt,omitempty"`
	InfluxDB      *BackendStatus `json:"influxdb,omitempty"`
	Devices       DeviceMetrics  `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BackendStatus reports an optional backend's connection state.
type BackendStatus struct {
	Connected bool `json:"connected"`
}

// DeviceMetrics contains device counts.
type DeviceMetrics struct {
	Registered  int `json:"registered"`
	WithHistory int `json:"with_history"`
	ActivePorts int `json:"active_ports"`
}

// handleSystemMetrics returns a JSON snapshot of runtime and device statistics.
func (s *Server) handleSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Devices: DeviceMetrics{
			WithHistory: len(s.store.IDs()),
		},
	}

	if s.mqtt != nil {
		m.MQTT = &BackendStatus{Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		m.InfluxDB = &BackendStatus{Connected: s.influx.IsConnected()}
	}
	if s.registry != nil {
		m.Devices.Registered = len(s.registry.Entries())
	}
	if s.ports != nil {
		m.Devices.ActivePorts = s.ports.Len()
	}

	writeJSON(w, http.StatusOK, m)
}
