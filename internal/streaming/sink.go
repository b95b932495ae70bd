package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"ytstream/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write did not complete before the
	// configured write deadline. This typically means the client stopped
	// reading.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream
	// completed, either through request context cancellation or a failed
	// write to the connection.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the sink was closed or its context
	// ended for a reason other than the client going away.
	ErrStreamCanceled = errors.New("stream canceled")
)

// SinkConfig configures a Sink.
type SinkConfig struct {
	// WriteTimeout bounds each write to the client (0 = no deadline).
	WriteTimeout time.Duration
	// ChunkSize splits large writes; each chunk is flushed (0 = as received).
	ChunkSize int
	// ProgressInterval is the number of bytes between OnProgress calls.
	ProgressInterval int64
	// OnProgress is called as ProgressInterval boundaries are crossed.
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultSinkConfig returns the configuration used by the stream endpoints.
// No write deadline is set: long downloads to slow clients are legitimate
// and disconnects are detected through the request context.
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		WriteTimeout:     0,
		ChunkSize:        64 * 1024,
		ProgressInterval: 4 * 1024 * 1024,
	}
}

// Sink writes a media stream to an HTTP response, flushing as it goes and
// remembering whether any byte has reached the client.
type Sink struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	ctx          context.Context
	config       SinkConfig
	startTime    time.Time
	bytesWritten int64
	nextProgress int64
	started      bool
	closed       bool
	mu           sync.Mutex
}

// NewSink wraps w. ctx is normally the request context.
func NewSink(ctx context.Context, w http.ResponseWriter, config SinkConfig) *Sink {
	s := &Sink{
		w:            w,
		rc:           http.NewResponseController(w),
		ctx:          ctx,
		config:       config,
		startTime:    time.Now(),
		nextProgress: config.ProgressInterval,
	}
	return s
}

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStreamCanceled
	}

	total := 0
	for len(p) > 0 {
		if err := s.contextError(); err != nil {
			return total, err
		}

		chunk := len(p)
		if s.config.ChunkSize > 0 && chunk > s.config.ChunkSize {
			chunk = s.config.ChunkSize
		}

		n, err := s.writeChunk(p[:chunk])
		total += n
		if err != nil {
			return total, err
		}
		p = p[chunk:]
	}
	return total, nil
}

// writeChunk writes and flushes one chunk. Caller holds mu.
func (s *Sink) writeChunk(p []byte) (int, error) {
	if s.config.WriteTimeout > 0 {
		if err := s.rc.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.Debug("Failed to set write deadline: %v", err)
		}
	}

	n, err := s.w.Write(p)
	if n > 0 {
		s.started = true
		s.bytesWritten += int64(n)
	}
	if err != nil {
		return n, s.writeError(err)
	}

	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, s.writeError(err)
	}

	s.reportProgress()
	return n, nil
}

func (s *Sink) reportProgress() {
	if s.config.OnProgress == nil || s.config.ProgressInterval <= 0 {
		return
	}
	if s.bytesWritten < s.nextProgress {
		return
	}
	for s.nextProgress <= s.bytesWritten {
		s.nextProgress += s.config.ProgressInterval
	}
	s.config.OnProgress(s.bytesWritten, time.Since(s.startTime))
}

func (s *Sink) writeError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrWriteTimeout
	}
	if ctxErr := s.contextError(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrClientGone, err)
}

// contextError maps the sink context state to a sentinel, or nil.
func (s *Sink) contextError() error {
	switch err := s.ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return ErrClientGone
	default:
		return ErrStreamCanceled
	}
}

// Started reports whether any byte of the body has been written. After
// that the status code and headers can no longer change.
func (s *Sink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Fail reports an error to the client as a plain text response. It does
// nothing and returns false once the body has started or the sink is closed.
func (s *Sink) Fail(status int, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.closed {
		return false
	}

	h := s.w.Header()
	h.Del("Content-Disposition")
	h.Del("Content-Length")
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(status)
	if _, err := io.WriteString(s.w, msg); err != nil {
		logging.Debug("Failed to write error response: %v", err)
	}
	s.started = true
	return true
}

// Close marks the sink closed; later writes fail with ErrStreamCanceled.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Stats returns the number of body bytes written and the elapsed time.
func (s *Sink) Stats() (bytesWritten int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesWritten, time.Since(s.startTime)
}

// Copy streams src into s. The returned error is the first read or write
// error other than io.EOF; write errors are one of the sentinels above.
func Copy(s *Sink, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	return io.CopyBuffer(s, src, buf)
}

// IsClientGone reports whether err means the client went away rather than
// a server-side failure.
func IsClientGone(err error) bool {
	return errors.Is(err, ErrClientGone) || errors.Is(err, context.Canceled)
}
