package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Entities      EntityMetrics  `json:"entities"`
	Entries       EntryMetrics   `json:"entries"`
	Flows         FlowMetrics    `json:"flows"`
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

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// EntityMetrics contains entity registry statistics.
type EntityMetrics struct {
	Total       int            `json:"total"`
	Available   int            `json:"available"`
	Unavailable int            `json:"unavailable"`
	ByDomain    map[string]int `json:"by_domain"`
}

// EntryMetrics contains config-entry statistics.
type EntryMetrics struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// FlowMetrics contains pairing flow statistics.
type FlowMetrics struct {
	ActiveSessions int `json:"active_sessions"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	// Collect runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	const mb = 1024 * 1024
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / mb,
			MemoryTotalMB: float64(memStats.TotalAlloc) / mb,
			NumGC:         memStats.NumGC,
		},
		Flows: FlowMetrics{
			ActiveSessions: s.flows.SessionCount(),
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}

	// Entity breakdown
	entities := s.entities.List()
	metrics.Entities.Total = len(entities)
	metrics.Entities.ByDomain = make(map[string]int)
	for _, e := range entities {
		metrics.Entities.ByDomain[e.Domain]++
		if e.Available {
			metrics.Entities.Available++
		} else {
			metrics.Entities.Unavailable++
		}
	}

	// Entry breakdown
	metrics.Entries.ByState = make(map[string]int)
	if snapshots, err := s.entries.Snapshots(r.Context()); err == nil {
		metrics.Entries.Total = len(snapshots)
		for _, snap := range snapshots {
			metrics.Entries.ByState[string(snap.State)]++
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
