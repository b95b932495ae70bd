package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"ytstream/internal/formats"
	"ytstream/internal/logging"
	"ytstream/internal/procgroup"
	"ytstream/internal/streaming"
)

const (
	defaultWaitDelay   = 5 * time.Second
	defaultStderrLimit = 4096
)

// Observer receives session diagnostics. The metrics package provides the
// Prometheus implementation. Observers never influence delivery.
type Observer interface {
	SessionStarted(mode string)
	SessionFinished(mode, outcome string, bytes int64, duration time.Duration)
	FFmpegExited(code int)
}

// Config configures an Engine.
type Config struct {
	// FFmpegPath is the ffmpeg binary, "ffmpeg" if empty.
	FFmpegPath string
	// HTTPClient fetches Direct upstreams. It must not set a total timeout
	// since downloads are long-lived.
	HTTPClient *http.Client
	// WaitDelay bounds how long Wait drains ffmpeg pipes after the process
	// is killed.
	WaitDelay time.Duration
	// StderrLimit is how many trailing bytes of ffmpeg stderr are kept.
	StderrLimit int
	Observer    Observer
}

// Engine runs delivery sessions and tracks the live ones.
type Engine struct {
	ffmpegPath  string
	client      *http.Client
	waitDelay   time.Duration
	stderrLimit int
	observer    Observer
	sessions    *xsync.MapOf[string, *session]
}

// New creates an Engine.
func New(cfg Config) *Engine {
	e := &Engine{
		ffmpegPath:  cfg.FFmpegPath,
		client:      cfg.HTTPClient,
		waitDelay:   cfg.WaitDelay,
		stderrLimit: cfg.StderrLimit,
		observer:    cfg.Observer,
		sessions:    xsync.NewMapOf[string, *session](),
	}
	if e.ffmpegPath == "" {
		e.ffmpegPath = "ffmpeg"
	}
	if e.client == nil {
		e.client = &http.Client{}
	}
	if e.waitDelay <= 0 {
		e.waitDelay = defaultWaitDelay
	}
	if e.stderrLimit <= 0 {
		e.stderrLimit = defaultStderrLimit
	}
	return e
}

// FFmpegPath returns the configured ffmpeg binary.
func (e *Engine) FFmpegPath() string {
	return e.ffmpegPath
}

// Active returns the number of sessions that have not been torn down.
func (e *Engine) Active() int {
	return e.sessions.Size()
}

// CheckBinary runs "ffmpeg -version" and returns the first line of output.
func (e *Engine) CheckBinary(ctx context.Context) (string, error) {
	path, err := exec.LookPath(e.ffmpegPath)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found at %q: %w", e.ffmpegPath, err)
	}

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version failed: %w", err)
	}

	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Deliver streams sel into sink until completion, failure or cancellation of
// ctx. Failures before the body starts are reported on sink; failures after
// are returned wrapping ErrAborted. Cancellation returns an error matching
// context.Canceled.
func (e *Engine) Deliver(ctx context.Context, sel formats.Selection, sink *streaming.Sink) error {
	s := e.newSession(sel)
	e.sessions.Store(s.id, s)
	if e.observer != nil {
		e.observer.SessionStarted(s.mode)
	}

	var err error
	switch sel.Kind {
	case formats.Direct:
		s.setState(StateDirect)
		err = e.pipeDirect(ctx, s, sink)
	case formats.Merge:
		s.setState(StateMerging)
		err = e.merge(ctx, s, sink)
	default:
		err = fmt.Errorf("unsupported selection kind %v", sel.Kind)
	}

	state := StateClosed
	switch {
	case err == nil:
	case ctx.Err() != nil || streaming.IsClientGone(err):
		state = StateCancelled
		err = fmt.Errorf("delivery canceled: %w", errors.Join(context.Canceled, err))
	default:
		state = StateFailed
	}

	written := e.teardown(s, sink, state)

	if state == StateFailed {
		logging.Error("Stream %s failed after %d bytes: %v", s.id, written, err)
		if !sink.Fail(http.StatusInternalServerError, "Download error") {
			return errors.Join(ErrAborted, err)
		}
	}
	return err
}

func (e *Engine) newSession(sel formats.Selection) *session {
	return &session{
		id:    uuid.NewString(),
		sel:   sel,
		mode:  sel.Kind.String(),
		start: time.Now(),
		state: StateInit,
	}
}

// teardown releases the session's resources once and returns the number of
// body bytes delivered.
func (e *Engine) teardown(s *session, sink *streaming.Sink, state State) int64 {
	var written int64
	s.once.Do(func() {
		s.abort()
		s.setState(state)
		e.sessions.Delete(s.id)

		var d time.Duration
		written, d = sink.Stats()
		if e.observer != nil {
			e.observer.SessionFinished(s.mode, state.String(), written, d)
		}
		logging.Debug("Stream %s %s: mode=%s bytes=%d duration=%v", s.id, state, s.mode, written, d)
	})
	return written
}

func (e *Engine) pipeDirect(ctx context.Context, s *session, sink *streaming.Sink) error {
	f := s.sel.Video
	logging.Debug("Stream %s: direct pipe of format %s", s.id, f.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return &TransportError{Source: "upstream", Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return &TransportError{Source: "upstream", Err: err}
	}
	if !s.attachBody(resp.Body) {
		// Cleanup closed the session while the request was in flight.
		return context.Canceled
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Source: "upstream", StatusCode: resp.StatusCode}
	}

	if _, err := streaming.Copy(sink, resp.Body); err != nil {
		if streaming.IsClientGone(err) || errors.Is(err, streaming.ErrWriteTimeout) {
			return err
		}
		return &TransportError{Source: "upstream", Err: err}
	}
	return nil
}

// mergeArgs builds the ffmpeg command line for a Merge selection. Output is
// fragmented MP4 with an empty moov so players can start before the end.
func mergeArgs(sel formats.Selection) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", sel.Video.URL,
		"-i", sel.Audio.URL,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
	}
	if sel.AudioMode == formats.AudioReencode {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-c:a", "copy")
	}
	return append(args,
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4",
		"pipe:1",
	)
}

func (e *Engine) merge(ctx context.Context, s *session, sink *streaming.Sink) error {
	logging.Debug("Stream %s: merging video %s with audio %s (audio %s)",
		s.id, s.sel.Video.ID, s.sel.Audio.ID, s.sel.AudioMode)

	cmd := exec.CommandContext(ctx, e.ffmpegPath, mergeArgs(s.sel)...)
	procgroup.Set(cmd)
	cmd.Cancel = func() error {
		return procgroup.Kill(cmd)
	}
	cmd.WaitDelay = e.waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Path: e.ffmpegPath, Err: err}
	}
	stderr := &tailBuffer{limit: e.stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return &SpawnError{Path: e.ffmpegPath, Err: err}
	}
	if !s.attachCmd(cmd) {
		_ = procgroup.Kill(cmd)
		_ = cmd.Wait()
		return context.Canceled
	}

	_, copyErr := streaming.Copy(sink, stdout)
	if copyErr != nil {
		// The client stopped reading; don't let ffmpeg block on a full pipe.
		s.kill()
	}

	waitErr := cmd.Wait()
	s.markExited()

	code := cmd.ProcessState.ExitCode()
	if e.observer != nil {
		e.observer.FFmpegExited(code)
	}

	switch {
	case copyErr != nil && (streaming.IsClientGone(copyErr) || errors.Is(copyErr, streaming.ErrWriteTimeout)):
		return copyErr
	case ctx.Err() != nil:
		return ctx.Err()
	case copyErr != nil:
		return &TransportError{Source: "ffmpeg", ExitCode: code, Stderr: stderr.String(), Err: copyErr}
	case waitErr != nil:
		return &TransportError{Source: "ffmpeg", ExitCode: code, Stderr: stderr.String(), Err: waitErr}
	}
	return nil
}

// Cleanup aborts every live session. Used on shutdown.
func (e *Engine) Cleanup() {
	e.sessions.Range(func(id string, s *session) bool {
		logging.Info("Aborting stream session %s (%s)", id, s.mode)
		s.abort()
		return true
	})
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	if len(p) >= t.limit {
		t.buf.Reset()
		p = p[len(p)-t.limit:]
	}
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
