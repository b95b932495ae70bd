// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is loaded from environment variables via [LoadConfig]. An
// optional .env file in the working directory is read first; variables that
// are already set take precedence over it.
//
//   - PORT: HTTP server port (default: 3000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - PROVIDER: Metadata backend, ytdlp or kkdai (default: ytdlp)
//   - PROVIDER_TIMEOUT: Bound on a single metadata lookup (default: 60s)
//   - YTDLP_PATH: yt-dlp binary (default: yt-dlp)
//   - FFMPEG_PATH: ffmpeg binary used for merges (default: ffmpeg)
//   - CACHE_TTL: Metadata cache entry lifetime (default: 10m)
//   - STATIC_DIR: Directory of front-end assets served at / (default: disabled)
//   - CORS_ORIGINS: Comma separated allowed origins, * for any (default: none)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Invalid values are logged and replaced by their defaults.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X ytstream/internal/startup.Version=1.2.0 -X ytstream/internal/startup.Commit=$(git rev-parse --short HEAD)"
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	startup.LogProviderInit(p.Name(), p.Check(ctx))
//	version, err := engine.CheckBinary(ctx)
//	startup.LogDeliveryInit(engine.FFmpegPath(), version, err)
//
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
package startup
