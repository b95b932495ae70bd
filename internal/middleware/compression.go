package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"

	"ytstream/internal/logging"
)

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	// MinSize is the smallest body, in bytes, that gets compressed.
	MinSize int
	// Level is the gzip level, gzip.BestSpeed to gzip.BestCompression.
	Level int
	// CompressibleTypes lists media types (without parameters) to compress.
	CompressibleTypes []string
	// SkipPaths bypass compression entirely. The media endpoints are always
	// skipped.
	SkipPaths []string
}

// DefaultCompressionConfig compresses JSON and text from the API and the
// bundled web page.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"text/html",
			"text/css",
			"text/plain",
			"text/javascript",
			"application/json",
			"application/javascript",
			"application/manifest+json",
			"image/svg+xml",
		},
		SkipPaths: []string{"/metrics"},
	}
}

// gzip writers are pooled per level.
var gzipPools sync.Map // int -> *sync.Pool

func gzipPool(level int) *sync.Pool {
	if p, ok := gzipPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := gzipPools.LoadOrStore(level, &sync.Pool{
		New: func() interface{} {
			w, err := gzip.NewWriterLevel(io.Discard, level)
			if err != nil {
				w = gzip.NewWriter(io.Discard)
			}
			return w
		},
	})
	return p.(*sync.Pool)
}

type encodeMode int

const (
	modeUndecided encodeMode = iota
	modeIdentity
	modeGzip
)

// gzipResponseWriter holds the body back until MinSize bytes or a flush,
// then commits to either gzip or identity for the rest of the response.
type gzipResponseWriter struct {
	http.ResponseWriter
	config  CompressionConfig
	status  int
	pending bytes.Buffer
	mode    encodeMode
	gz      *gzip.Writer
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		status:         http.StatusOK,
	}
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.mode == modeUndecided {
		g.status = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	switch g.mode {
	case modeGzip:
		return g.gz.Write(data)
	case modeIdentity:
		return g.ResponseWriter.Write(data)
	}

	g.pending.Write(data)
	if g.pending.Len() > g.config.MinSize {
		g.commit()
	}
	return len(data), nil
}

func (g *gzipResponseWriter) compressible() bool {
	mediaType, _, err := mime.ParseMediaType(g.Header().Get("Content-Type"))
	if err != nil {
		return false
	}
	return lo.Contains(g.config.CompressibleTypes, mediaType)
}

// commit picks the encoding and writes the status line and held bytes.
func (g *gzipResponseWriter) commit() {
	if g.mode != modeUndecided {
		return
	}

	h := g.Header()
	if g.pending.Len() >= g.config.MinSize && h.Get("Content-Encoding") == "" && g.compressible() {
		g.mode = modeGzip
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")

		g.gz = gzipPool(g.config.Level).Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
		g.ResponseWriter.WriteHeader(g.status)
		if _, err := g.pending.WriteTo(g.gz); err != nil {
			logging.Debug("gzip write failed: %v", err)
		}
		return
	}

	g.mode = modeIdentity
	g.ResponseWriter.WriteHeader(g.status)
	if g.pending.Len() > 0 {
		if _, err := g.pending.WriteTo(g.ResponseWriter); err != nil {
			logging.Debug("response write failed: %v", err)
		}
	}
}

// Close commits any held bytes and returns the gzip writer to its pool.
func (g *gzipResponseWriter) Close() error {
	g.commit()
	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	gzipPool(g.config.Level).Put(g.gz)
	g.gz = nil
	return err
}

func (g *gzipResponseWriter) Flush() {
	g.commit()
	if g.gz != nil {
		if err := g.gz.Flush(); err != nil {
			logging.Debug("gzip flush failed: %v", err)
		}
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

// acceptsGzip reports whether the Accept-Encoding header allows gzip with a
// non-zero quality.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != "gzip" && coding != "*" {
			continue
		}
		q := 1.0
		if k, v, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(k) == "q" {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				q = parsed
			}
		}
		if q > 0 {
			return true
		}
	}
	return false
}

// Compression gzips eligible responses. The media endpoints, SkipPaths and
// Range requests always pass through untouched.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	bypass := func(r *http.Request) bool {
		return !acceptsGzip(r.Header.Get("Accept-Encoding")) ||
			isStreamingPath(r.URL.Path) ||
			lo.Contains(config.SkipPaths, r.URL.Path) ||
			r.Header.Get("Range") != ""
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass(r) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer func() {
				if err := gzw.Close(); err != nil {
					logging.Debug("gzip close failed: %v", err)
				}
			}()
			next.ServeHTTP(gzw, r)
		})
	}
}
