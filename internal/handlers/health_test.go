package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ytstream/internal/startup"
)

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name         string
		providerOK   bool
		ffmpegOK     bool
		wantStatus   string
		wantReady    bool
		wantHTTPCode int
	}{
		{"all dependencies available", true, true, statusHealthy, true, http.StatusOK},
		{"ffmpeg missing", true, false, statusDegraded, false, http.StatusOK},
		{"provider missing", false, true, statusDegraded, false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(&mockProvider{}, &mockEngine{active: 2})
			h.SetReadiness(tt.providerOK, tt.ffmpegOK)

			w := serve(h.HealthCheck, "/healthz")
			if w.Code != tt.wantHTTPCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantHTTPCode)
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Ready != tt.wantReady {
				t.Errorf("status/ready = %s/%v, want %s/%v", resp.Status, resp.Ready, tt.wantStatus, tt.wantReady)
			}
			if resp.ProviderAvailable != tt.providerOK || resp.FFmpegAvailable != tt.ffmpegOK {
				t.Errorf("availability = %v/%v", resp.ProviderAvailable, resp.FFmpegAvailable)
			}
			if resp.ActiveStreams != 2 || resp.Provider != "mock" || resp.Version != startup.Version {
				t.Errorf("unexpected response %+v", resp)
			}
			if resp.NumCPU < 1 || resp.GoVersion == "" {
				t.Errorf("missing runtime info: %+v", resp)
			}
		})
	}
}

func TestHealthCheckReportsCacheEntries(t *testing.T) {
	h := newTestHandlers(&mockProvider{video: testVideo()}, &mockEngine{})
	serve(h.Info, infoTarget(testURL))

	var resp HealthResponse
	if err := json.NewDecoder(serve(h.HealthCheck, "/healthz").Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CacheEntries != 1 {
		t.Errorf("CacheEntries = %d, want 1", resp.CacheEntries)
	}
}

func TestLivenessCheck(t *testing.T) {
	h := newTestHandlers(&mockProvider{}, &mockEngine{})

	w := serve(h.LivenessCheck, "/livez")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp["status"] != "alive" {
		t.Errorf("body = %v, err %v", resp, err)
	}

	head := httptest.NewRecorder()
	h.LivenessCheck(head, httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))
	if head.Code != http.StatusOK || head.Body.Len() != 0 {
		t.Errorf("HEAD returned %d with %d body bytes", head.Code, head.Body.Len())
	}
}

func TestReadinessCheck(t *testing.T) {
	h := newTestHandlers(&mockProvider{}, &mockEngine{})

	w := serve(h.ReadinessCheck, "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status before checks = %d, want 503", w.Code)
	}
	var notReady struct {
		Status   string `json:"status"`
		Provider bool   `json:"provider"`
		FFmpeg   bool   `json:"ffmpeg"`
	}
	if err := json.NewDecoder(w.Body).Decode(&notReady); err != nil || notReady.Status != "not_ready" {
		t.Errorf("body = %+v, err %v", notReady, err)
	}

	h.SetReadiness(true, true)
	w = serve(h.ReadinessCheck, "/readyz")
	if w.Code != http.StatusOK {
		t.Errorf("status after checks = %d, want 200", w.Code)
	}
}
