package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"ytstream/internal/delivery"
	"ytstream/internal/handlers"
	"ytstream/internal/logging"
	"ytstream/internal/memory"
	"ytstream/internal/metacache"
	"ytstream/internal/metrics"
	"ytstream/internal/middleware"
	"ytstream/internal/provider"
	"ytstream/internal/startup"
)

const (
	checkTimeout     = 15 * time.Second
	shutdownTimeout  = 30 * time.Second
	collectorPeriod  = 15 * time.Second
	upstreamHeaderTO = 30 * time.Second
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.ConfigureFromEnv()

	p := newProvider(config)
	engine := delivery.New(delivery.Config{
		FFmpegPath: config.FFmpegPath,
		HTTPClient: newUpstreamClient(),
		Observer:   metrics.NewDeliveryObserver(),
	})

	checkCtx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	providerErr := p.Check(checkCtx)
	startup.LogProviderInit(p.Name(), providerErr)
	if providerErr != nil {
		cancel()
		startup.LogFatal("Metadata provider %s is unusable: %v", p.Name(), providerErr)
	}
	ffmpegVersion, ffmpegErr := engine.CheckBinary(checkCtx)
	startup.LogDeliveryInit(engine.FFmpegPath(), ffmpegVersion, ffmpegErr)
	cancel()

	metrics.InitializeMetrics(p.Name())
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion, p.Name())

	cache := metacache.New(
		metacache.WithTTL(config.CacheTTL),
		metacache.WithObserver(metrics.NewCacheObserver()),
	)
	startup.LogCacheInit(cache.TTL())

	h := handlers.New(cache, metrics.InstrumentProvider(p), engine)
	h.SetReadiness(providerErr == nil, ffmpegErr == nil)

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	handler, err := buildHandler(router, config)
	if err != nil {
		startup.LogFatal("Middleware setup failed: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // streams run as long as the client reads
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(metrics.StatsFunc(func() metrics.Stats {
			return metrics.Stats{CacheEntries: cache.Len(), ActiveSessions: engine.Active()}
		}), collectorPeriod)
		collector.Start()

		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, collector, engine, done)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func newProvider(config *startup.Config) provider.Provider {
	if config.Provider == startup.ProviderKkdai {
		return provider.NewKkdai(&http.Client{Timeout: config.ProviderTimeout})
	}
	return provider.NewYtDlp(config.YtDlpPath, config.ProviderTimeout)
}

// newUpstreamClient returns the client for Direct deliveries. Only the wait
// for response headers is bounded; bodies stream for as long as needed.
func newUpstreamClient() *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = upstreamHeaderTO
	return &http.Client{Transport: t}
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Probes and build info
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.APIHealth).Methods(http.MethodGet)
	api.HandleFunc("/info", h.Info).Methods(http.MethodGet)
	api.HandleFunc("/download", h.Download).Methods(http.MethodGet)
	api.HandleFunc("/stream", h.Stream).Methods(http.MethodGet)

	if config.StaticEnabled {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(config.StaticDir))).
			Methods(http.MethodGet, http.MethodHead)
	}

	return r
}

// buildHandler wraps the router in the outer middleware chain. The request
// ID is assigned first so that every later layer can log it.
func buildHandler(router http.Handler, config *startup.Config) (http.Handler, error) {
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(router)

	if len(config.CORSOrigins) > 0 {
		cors, err := middleware.CORS(middleware.CORSConfig{AllowedOrigins: config.CORSOrigins})
		if err != nil {
			return nil, err
		}
		handler = cors(handler)
	}

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	return middleware.RequestID(handler), nil
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", h.MetricsHandler())
	m.HandleFunc("/healthz", h.LivenessCheck)

	return &http.Server{
		Addr:         ":" + port,
		Handler:      m,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, engine *delivery.Engine, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	shutdown(srv, metricsSrv, collector, engine, shutdownTimeout)
	startup.LogShutdownComplete()
}

// shutdown stops accepting requests and lets running streams finish within
// grace. Streams still running after that are killed.
func shutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, engine *delivery.Engine, grace time.Duration) {
	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown incomplete: %v (%d streams active)", err, engine.Active())
		engine.Cleanup()
		if err := srv.Close(); err != nil {
			logging.Warn("Server close error: %v", err)
		}
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Aborting remaining streams")
	engine.Cleanup()
	startup.LogShutdownStepComplete("Delivery engine cleaned up")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		mctx, mcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer mcancel()
		if err := metricsSrv.Shutdown(mctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}
}
