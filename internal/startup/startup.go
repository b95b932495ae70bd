package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"ytstream/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Metadata provider backends selectable with PROVIDER.
const (
	ProviderYtDlp = "ytdlp"
	ProviderKkdai = "kkdai"
)

// Defaults for the duration settings.
const (
	DefaultProviderTimeout = 60 * time.Second
	DefaultCacheTTL        = 10 * time.Minute
)

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	FFmpegPath      string
	YtDlpPath       string
	Provider        string
	ProviderTimeout time.Duration
	CacheTTL        time.Duration
	StaticDir       string
	CORSOrigins     []string
	LogStaticFiles  bool
	LogHealthChecks bool

	// StaticEnabled is set when StaticDir points at a readable directory.
	StaticEnabled bool
}

// LoadConfig loads configuration from an optional .env file and the
// environment. Invalid values fall back to defaults with a warning.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := configFromEnv()

	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  PROVIDER:            %s", cfg.Provider)
	logging.Info("  PROVIDER_TIMEOUT:    %v", cfg.ProviderTimeout)
	logging.Info("  YTDLP_PATH:          %s", cfg.YtDlpPath)
	logging.Info("  FFMPEG_PATH:         %s", cfg.FFmpegPath)
	logging.Info("  CACHE_TTL:           %v", cfg.CacheTTL)
	logging.Info("  STATIC_DIR:          %s", valueOrDash(cfg.StaticDir))
	logging.Info("  CORS_ORIGINS:        %s", valueOrDash(strings.Join(cfg.CORSOrigins, ",")))
	logging.Info("  LOG_STATIC_FILES:    %v", cfg.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if cfg.StaticDir != "" {
		abs, err := filepath.Abs(cfg.StaticDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve static directory path: %w", err)
		}
		cfg.StaticDir = abs
		if err := checkDirectory(abs); err != nil {
			logging.Warn("  Static directory issue: %v", err)
			logging.Warn("  Static file serving will be disabled")
		} else {
			cfg.StaticEnabled = true
		}
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Static files: %s", enabledString(cfg.StaticEnabled))
	logging.Info("    CORS:         %s", enabledString(len(cfg.CORSOrigins) > 0))
	logging.Info("    Metrics:      %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	switch {
	case err == nil:
		logging.Info("  Loaded environment from %s", path)
		return nil
	case errors.Is(err, fs.ErrNotExist):
		logging.Debug("  No %s file found", path)
		return nil
	default:
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
}

func configFromEnv() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		YtDlpPath:       getEnv("YTDLP_PATH", "yt-dlp"),
		Provider:        strings.ToLower(getEnv("PROVIDER", ProviderYtDlp)),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", DefaultProviderTimeout),
		CacheTTL:        getEnvDuration("CACHE_TTL", DefaultCacheTTL),
		StaticDir:       getEnv("STATIC_DIR", ""),
		CORSOrigins:     getEnvList("CORS_ORIGINS"),
		LogStaticFiles:  getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	if cfg.Provider != ProviderYtDlp && cfg.Provider != ProviderKkdai {
		logging.Warn("Invalid PROVIDER %q, using default: %s", cfg.Provider, ProviderYtDlp)
		cfg.Provider = ProviderYtDlp
	}
	return cfg
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// LogProviderInit logs the metadata provider check. A failed check is
// fatal for the caller.
func LogProviderInit(name string, err error) {
	section("METADATA PROVIDER")
	logging.Info("  Backend: %s", name)

	if err != nil {
		logging.Error("  Provider check failed: %v", err)
		return
	}
	logging.Info("  [OK] Provider is available")
}

// LogDeliveryInit logs the ffmpeg check. Without ffmpeg only Direct
// deliveries work, so a failure is a warning.
func LogDeliveryInit(ffmpegPath, version string, err error) {
	section("DELIVERY ENGINE")

	if err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Formats that need merging will fail")
		return
	}
	logging.Debug("  FFmpeg path: %s", ffmpegPath)
	logging.Debug("  FFmpeg version: %s", version)
	logging.Info("  [OK] FFmpeg is available")
}

// LogCacheInit logs metadata cache settings.
func LogCacheInit(ttl time.Duration) {
	section("METADATA CACHE")
	logging.Info("  TTL: %v", ttl)
}

// GetRoutes lists every registered route, one entry per method. Routes
// without a method matcher are reported as "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			// PathPrefix catch-alls such as the static file server
			if path, err = route.GetPathRegexp(); err != nil {
				return nil
			}
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes prints the access log settings and, at debug level, the
// route table grouped by prefix.
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := lo.GroupBy(routes, func(r RouteInfo) string { return getRouteGroup(r.Path) })
		names := lo.Keys(groups)
		slices.Sort(names)
		for _, g := range names {
			logging.Debug("  [%s]", lo.Ternary(g == "", "root", g))
			for _, r := range groups[g] {
				logging.Debug("    %-6s %s", r.Method, r.Path)
			}
		}
		logging.Debug("")
	}

	logging.Info("  Access log (W3C extended format)")
	logging.Info("    Static files:  %s", onOff(logStaticFiles, "LOG_STATIC_FILES"))
	logging.Info("    Health checks: %s", onOff(logHealthChecks, "LOG_HEALTH_CHECKS"))
}

func onOff(on bool, envVar string) string {
	if on {
		return "ON"
	}
	return "OFF (set " + envVar + "=true to enable)"
}

// getRouteGroup returns the first path segment, or "api/<name>" for routes
// under /api.
func getRouteGroup(path string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "api" && rest != "" {
		name, _, _ := strings.Cut(rest, "/")
		return "api/" + name
	}
	return first
}

// ServerConfig is what LogServerStarted reports.
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted prints the listening addresses and the public endpoints.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:  %v", config.StartupDuration)
	logging.Info("  Listening:     http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Try:")
	logging.Info("    curl 'http://localhost:%s/api/info?url=https://youtu.be/<id>'", config.Port)
	logging.Info("    curl -OJ 'http://localhost:%s/api/download?url=https://youtu.be/<id>'", config.Port)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(rule)
}

// LogShutdownInitiated marks the start of graceful shutdown.
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received " + signal + ")")
}

func LogShutdownStep(step string)         { logging.Debug("  %s...", step) }
func LogShutdownStepComplete(step string) { logging.Info("  [OK] %s", step) }
func LogShutdownComplete()                { logging.Info("  [OK] Shutdown complete") }

// LogFatal logs and exits with status 1.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

const rule = "------------------------------------------------------------"

// section prints a titled block header.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

func printBanner() {
	fmt.Println(`
` + rule + `
        __       __
 __ __ / /_ ___ / /_ ____ ___  ___ _ __ _
/ // // __/(_-</ __// __// -_)/ _ '//  ' \
\_, / \__//___/\__//_/   \__/ \_,_//_/_/_/
/___/
` + rule)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	procs := runtime.GOMAXPROCS(0)
	logging.Info("  Go version:  %s", runtime.Version())
	logging.Info("  OS/Arch:     %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs:        %d (GOMAXPROCS %d)", runtime.NumCPU(), procs)

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir: %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:    %s", hostname)
		}
	}
}

func checkDirectory(path string) error {
	logging.Debug("  Checking static directory: %s", path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
