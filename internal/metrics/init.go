package metrics

// Label values used by the delivery engine.
var (
	streamModes    = []string{"direct", "merge"}
	streamOutcomes = []string{"closed", "failed", "cancelled"}
)

// InitializeMetrics pre-populates the expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup with the name of the active provider.
func InitializeMetrics(providerName string) {
	for _, mode := range streamModes {
		for _, outcome := range streamOutcomes {
			StreamSessionsTotal.WithLabelValues(mode, outcome)
		}
		StreamSessionDuration.WithLabelValues(mode)
		StreamBytesTotal.WithLabelValues(mode)
	}

	FFmpegExitsTotal.WithLabelValues("0")

	if providerName != "" {
		for _, status := range []string{"success", "error"} {
			ProviderFetchesTotal.WithLabelValues(providerName, status)
		}
		ProviderFetchDuration.WithLabelValues(providerName)
	}
}
