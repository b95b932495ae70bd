package handlers

import (
	"net/http"
	"runtime"
	"time"

	"ytstream/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Provider string `json:"provider"`

	// Readiness detail
	ProviderAvailable bool `json:"providerAvailable"`
	FFmpegAvailable   bool `json:"ffmpegAvailable"`

	// Runtime state
	ActiveStreams int `json:"activeStreams"`
	CacheEntries  int `json:"cacheEntries"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

func (h *Handlers) ready() bool {
	return h.providerReady.Load() && h.ffmpegReady.Load()
}

// HealthCheck returns the health status of the service. It answers 200 as
// long as the process is serving; Status reports degraded dependencies.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:            statusHealthy,
		Ready:             h.ready(),
		Version:           startup.Version,
		Uptime:            time.Since(h.started).Round(time.Second).String(),
		Provider:          h.provider.Name(),
		ProviderAvailable: h.providerReady.Load(),
		FFmpegAvailable:   h.ffmpegReady.Load(),
		ActiveStreams:     h.engine.Active(),
		CacheEntries:      h.cache.Len(),
		GoVersion:         runtime.Version(),
		NumCPU:            runtime.NumCPU(),
		NumGoroutine:      runtime.NumGoroutine(),
	}
	if !response.Ready {
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when both the metadata provider and
// ffmpeg are available.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		writeJSONStatus(w, "ready")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	writeJSON(w, map[string]interface{}{
		"status":   "not_ready",
		"provider": h.providerReady.Load(),
		"ffmpeg":   h.ffmpegReady.Load(),
	})
}
