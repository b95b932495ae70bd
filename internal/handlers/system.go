package handlers

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ytstream/internal/logging"
	"ytstream/internal/startup"
)

// VersionResponse is the /version body.
type VersionResponse struct {
	startup.BuildInfo
	Provider string `json:"provider"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VersionResponse{
		BuildInfo: startup.GetBuildInfo(),
		Provider:  h.provider.Name(),
	})
}

type promLogger struct{}

func (promLogger) Println(v ...interface{}) {
	logging.Error("metrics handler: %s", fmt.Sprint(v...))
}

// MetricsHandler returns the Prometheus metrics handler for the metrics
// server. Scrape errors are logged and the rest of the registry is served.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:          promLogger{},
			ErrorHandling:     promhttp.ContinueOnError,
			EnableOpenMetrics: true,
		}))
}
