package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorhub/internal/telemetry"
)

// Event channels clients can subscribe to.
const (
	ChannelReadingRecorded = "reading.recorded"
	ChannelDeviceOnline    = "device.online"
	ChannelDeviceOffline   = "device.offline"
)

// ReadingEvent is the payload of a reading.recorded event.
type ReadingEvent struct {
	DeviceID string            `json:"device_id"`
	Reading  telemetry.Reading `json:"reading"`
}

// DeviceEvent is the payload of device.online and device.offline events.
type DeviceEvent struct {
	DeviceID string `json:"device_id"`
	Port     string `json:"port"`
	Reason   string `json:"reason,omitempty"`
}

// Hub fans device events out to WebSocket clients.
//
// It implements telemetry.Sink through RecordReading and discovery.DeviceEvents
// through DeviceOnline/DeviceOffline, so the ingest path never knows whether
// anyone is listening.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its outbound queue. Safe to call
// more than once and concurrently with closeAll.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	client.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RecordReading publishes a stored reading on reading.recorded.
func (h *Hub) RecordReading(deviceID string, r telemetry.Reading) {
	h.publish(ChannelReadingRecorded, deviceID, ReadingEvent{DeviceID: deviceID, Reading: r})
}

// DeviceOnline publishes a reader start on device.online.
func (h *Hub) DeviceOnline(deviceID, port string) {
	h.publish(ChannelDeviceOnline, deviceID, DeviceEvent{DeviceID: deviceID, Port: port})
}

// DeviceOffline publishes a reader exit on device.offline.
func (h *Hub) DeviceOffline(deviceID, port string, err error) {
	ev := DeviceEvent{DeviceID: deviceID, Port: port}
	if err != nil {
		ev.Reason = err.Error()
	}
	h.publish(ChannelDeviceOffline, deviceID, ev)
}

func (h *Hub) publish(channel, deviceID string, payload any) {
	recipients := h.subscribers(channel, deviceID)
	if len(recipients) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	dropped := 0
	for _, c := range recipients {
		if !c.enqueue(data) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Debug("websocket event dropped for slow clients",
			"channel", channel, "device_id", deviceID, "dropped", dropped)
	}
}

// subscribers copies out the matching clients so the hub lock is never held
// together with a client lock.
func (h *Hub) subscribers(channel, deviceID string) []*WSClient {
	h.mu.RLock()
	all := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	out := all[:0]
	for _, c := range all {
		if c.wants(channel, deviceID) {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}
