package middleware

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// responseWriter records the status and body size for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingConfig selects which requests reach the access log.
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged.
	SkipPaths []string
	// SkipExtensions are static asset suffixes, skipped unless LogStaticFiles.
	SkipExtensions  []string
	LogStaticFiles  bool
	LogHealthChecks bool
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{},
		SkipExtensions:  []string{".css", ".js", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webmanifest", ".woff", ".woff2"},
		LogStaticFiles:  false,
		LogHealthChecks: true,
	}
}

// accessEntry is one finished request.
type accessEntry struct {
	r    *http.Request
	rw   *responseWriter
	at   time.Time
	took time.Duration
}

// w3cField is one column of the W3C Extended Log Format line.
type w3cField struct {
	name  string
	value func(e *accessEntry) string
}

// accessFields defines both the #Fields directive and each log line.
var accessFields = []w3cField{
	{"date", func(e *accessEntry) string { return e.at.Format("2006-01-02") }},
	{"time", func(e *accessEntry) string { return e.at.Format("15:04:05") }},
	{"c-ip", func(e *accessEntry) string { return sanitizeLogField(getClientIP(e.r)) }},
	{"cs-method", func(e *accessEntry) string { return sanitizeLogField(e.r.Method) }},
	{"cs-uri-stem", func(e *accessEntry) string { return sanitizeLogField(e.r.URL.Path) }},
	{"cs-uri-query", func(e *accessEntry) string { return orDash(sanitizeLogField(e.r.URL.RawQuery)) }},
	{"sc-status", func(e *accessEntry) string { return strconv.Itoa(e.rw.statusCode) }},
	{"sc-bytes", func(e *accessEntry) string { return strconv.FormatInt(e.rw.bytesWritten, 10) }},
	{"time-taken", func(e *accessEntry) string { return strconv.FormatInt(e.took.Milliseconds(), 10) }},
	{"cs(Content-Encoding)", func(e *accessEntry) string { return orDash(e.rw.Header().Get("Content-Encoding")) }},
	{"cs(User-Agent)", func(e *accessEntry) string {
		return orDash(escapeW3CField(sanitizeLogField(e.r.Header.Get("User-Agent"))))
	}},
	{"cs(Referer)", func(e *accessEntry) string {
		return orDash(escapeW3CField(sanitizeLogField(e.r.Header.Get("Referer"))))
	}},
	{"x-request-id", func(e *accessEntry) string {
		return orDash(sanitizeLogField(RequestIDFromContext(e.r.Context())))
	}},
}

var w3cFields = strings.Join(lo.Map(accessFields, func(f w3cField, _ int) string { return f.name }), " ")

// W3CLogger writes access log lines in W3C Extended Log Format.
type W3CLogger struct {
	config      LoggingConfig
	serviceName string
}

func NewW3CLogger(config LoggingConfig, serviceName string) *W3CLogger {
	return &W3CLogger{
		config:      config,
		serviceName: serviceName,
	}
}

// Directives returns the W3C header lines that describe the log format.
func (l *W3CLogger) Directives() []string {
	return []string{
		"#Software: " + l.serviceName,
		"#Version: 1.0",
		"#Fields: " + w3cFields,
	}
}

func (l *W3CLogger) line(e *accessEntry) string {
	values := make([]string, len(accessFields))
	for i, f := range accessFields {
		values[i] = f.value(e)
	}
	return strings.Join(values, " ")
}

var healthCheckPaths = map[string]bool{
	"/api/health": true,
	"/healthz":    true,
	"/livez":      true,
	"/readyz":     true,
}

func (l *W3CLogger) skip(path string) bool {
	if lo.SomeBy(l.config.SkipPaths, func(p string) bool { return strings.HasPrefix(path, p) }) {
		return true
	}
	if !l.config.LogHealthChecks && healthCheckPaths[path] {
		return true
	}
	if !l.config.LogStaticFiles {
		lower := strings.ToLower(path)
		return lo.SomeBy(l.config.SkipExtensions, func(ext string) bool { return strings.HasSuffix(lower, ext) })
	}
	return false
}

// sanitizeLogField strips characters usable for log injection. Line breaks
// become spaces; NUL, ESC and other control characters except tab are
// dropped.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// Logger returns the access log middleware. Requests are logged when the
// handler returns or panics, so aborted streams still appear.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	logger := NewW3CLogger(config, "ytstream")
	for _, d := range logger.Directives() {
		log.Println(d)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			defer func() {
				//nolint:gosec // every request-controlled field passes through sanitizeLogField
				log.Println(logger.line(&accessEntry{
					r:    r,
					rw:   wrapped,
					at:   time.Now().UTC(),
					took: time.Since(start),
				}))
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// escapeW3CField quotes values containing whitespace or quotes, doubling any
// embedded quotes.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
