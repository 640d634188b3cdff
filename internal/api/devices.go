package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sensorhub/internal/telemetry"
)

// DeviceSummary describes one known device in GET /api/v1/devices.
type DeviceSummary struct {
	ID           string             `json:"id"`
	SerialNumber string             `json:"serial_number,omitempty"`
	Port         string             `json:"port,omitempty"`
	Online       bool               `json:"online"`
	ReadingCount int                `json:"reading_count"`
	LastReading  *telemetry.Reading `json:"last_reading,omitempty"`
}

// handleListIDs returns the ids of every device with a history.
func (s *Server) handleListIDs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.IDs())
}

// handleHistory returns a device's full history. Unknown ids yield [].
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot(chi.URLParam(r, "id")))
}

// handleListDevices joins registry bindings, active ports and stored
// histories into one listing.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	serials := make(map[string]string)
	if s.registry != nil {
		for serial, id := range s.registry.Entries() {
			serials[id] = serial
		}
	}

	ids := make(map[string]struct{}, len(serials))
	for id := range serials {
		ids[id] = struct{}{}
	}
	for _, id := range s.store.IDs() {
		ids[id] = struct{}{}
	}

	devices := make([]DeviceSummary, 0, len(ids))
	for id := range ids {
		d := DeviceSummary{
			ID:           id,
			SerialNumber: serials[id],
			ReadingCount: s.store.Len(id),
		}
		if s.ports != nil {
			if st, ok := s.ports.ByDevice(id); ok {
				d.Port = st.Port
				d.Online = st.Running
			}
		}
		if latest, ok := s.store.Latest(id); ok {
			d.LastReading = &latest
		}
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleDeviceReadings returns a device's readings, optionally restricted to
// those captured at or after ?since= (epoch seconds) and then to the last
// ?limit= entries.
func (s *Server) handleDeviceReadings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var since float64
	hasSince := false
	if v := r.URL.Query().Get("since"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeBadRequest(w, "since must be epoch seconds")
			return
		}
		since, hasSince = f, true
	}

	readings := s.store.Snapshot(id)
	if len(readings) == 0 && !s.isRegistered(id) {
		writeNotFound(w, "device not found")
		return
	}

	if hasSince {
		readings = filterSince(readings, since)
	}
	if limit > 0 && len(readings) > limit {
		readings = readings[len(readings)-limit:]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"readings":  readings,
		"count":     len(readings),
	})
}

func (s *Server) isRegistered(id string) bool {
	if s.registry == nil {
		return false
	}
	for _, bound := range s.registry.Entries() {
		if bound == id {
			return true
		}
	}
	return false
}

// filterSince keeps readings captured at or after since. Histories are in
// arrival order, not strictly time order, so every entry is checked.
func filterSince(readings []telemetry.Reading, since float64) []telemetry.Reading {
	out := make([]telemetry.Reading, 0, len(readings))
	for _, r := range readings {
		if r.Timestamp() >= since {
			out = append(out, r)
		}
	}
	return out
}
