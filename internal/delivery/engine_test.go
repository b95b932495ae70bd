package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"ytstream/internal/formats"
	"ytstream/internal/provider"
	"ytstream/internal/streaming"
)

type finished struct {
	mode    string
	outcome string
	bytes   int64
}

type mockObserver struct {
	mu       sync.Mutex
	started  []string
	finished []finished
	exits    []int
}

func (m *mockObserver) SessionStarted(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, mode)
}

func (m *mockObserver) SessionFinished(mode, outcome string, bytes int64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, finished{mode, outcome, bytes})
}

func (m *mockObserver) FFmpegExited(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits = append(m.exits, code)
}

func (m *mockObserver) last() finished {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.finished) == 0 {
		return finished{}
	}
	return m.finished[len(m.finished)-1]
}

func directSelection(url string) formats.Selection {
	return formats.Selection{
		Kind:  formats.Direct,
		Video: provider.Format{ID: "18", HasVideo: true, HasAudio: true, Container: "mp4", URL: url},
	}
}

func newSink(ctx context.Context, w http.ResponseWriter) *streaming.Sink {
	return streaming.NewSink(ctx, w, streaming.DefaultSinkConfig())
}

func TestNewDefaults(t *testing.T) {
	e := New(Config{})
	if e.FFmpegPath() != "ffmpeg" {
		t.Errorf("FFmpegPath() = %q, want ffmpeg", e.FFmpegPath())
	}
	if e.client == nil {
		t.Error("expected default HTTP client")
	}
	if e.waitDelay != defaultWaitDelay || e.stderrLimit != defaultStderrLimit {
		t.Errorf("unexpected defaults: waitDelay=%v stderrLimit=%d", e.waitDelay, e.stderrLimit)
	}
	if e.Active() != 0 {
		t.Errorf("Active() = %d, want 0", e.Active())
	}
}

func TestMergeArgs(t *testing.T) {
	sel := formats.Selection{
		Kind:  formats.Merge,
		Video: provider.Format{URL: "https://v.example/video"},
		Audio: provider.Format{URL: "https://a.example/audio"},
	}

	tests := []struct {
		name  string
		mode  formats.AudioMode
		audio []string
	}{
		{"copy", formats.AudioCopy, []string{"-c:a", "copy"}},
		{"reencode", formats.AudioReencode, []string{"-c:a", "aac", "-b:a", "192k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel.AudioMode = tt.mode
			args := mergeArgs(sel)
			joined := strings.Join(args, " ")

			for _, want := range []string{
				"-i https://v.example/video -i https://a.example/audio",
				"-map 0:v:0 -map 1:a:0",
				"-c:v copy",
				strings.Join(tt.audio, " "),
				"-movflags frag_keyframe+empty_moov+default_base_moof",
				"-f mp4 pipe:1",
			} {
				if !strings.Contains(joined, want) {
					t.Errorf("args missing %q: %s", want, joined)
				}
			}
			if args[len(args)-1] != "pipe:1" {
				t.Errorf("output must be last, got %q", args[len(args)-1])
			}
			if tt.mode == formats.AudioCopy && slices.Contains(args, "aac") {
				t.Error("copy mode must not re-encode audio")
			}
		})
	}
}

func TestDeliverDirect(t *testing.T) {
	payload := strings.Repeat("media", 50000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte(payload))
	}))
	defer upstream.Close()

	obs := &mockObserver{}
	e := New(Config{HTTPClient: upstream.Client(), Observer: obs})

	w := httptest.NewRecorder()
	err := e.Deliver(context.Background(), directSelection(upstream.URL), newSink(context.Background(), w))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if w.Body.String() != payload {
		t.Errorf("body length %d, want %d", w.Body.Len(), len(payload))
	}
	if e.Active() != 0 {
		t.Errorf("Active() = %d after completion", e.Active())
	}
	if got := obs.last(); got.mode != "direct" || got.outcome != "closed" || got.bytes != int64(len(payload)) {
		t.Errorf("observer got %+v", got)
	}
}

func TestDeliverDirectUpstreamErrorBeforeBytes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer upstream.Close()

	obs := &mockObserver{}
	e := New(Config{HTTPClient: upstream.Client(), Observer: obs})

	w := httptest.NewRecorder()
	w.Header().Set("Content-Type", "video/mp4")
	err := e.Deliver(context.Background(), directSelection(upstream.URL), newSink(context.Background(), w))

	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusForbidden {
		t.Fatalf("expected TransportError with 403, got %v", err)
	}
	if errors.Is(err, ErrAborted) {
		t.Error("failure before the first byte must not abort")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", w.Header().Get("Content-Type"))
	}
	if got := obs.last(); got.outcome != "failed" {
		t.Errorf("outcome = %q, want failed", got.outcome)
	}
}

func TestDeliverDirectUpstreamErrorAfterBytes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		// Returning short of Content-Length truncates the response.
	}))
	defer upstream.Close()

	e := New(Config{HTTPClient: upstream.Client()})

	w := httptest.NewRecorder()
	err := e.Deliver(context.Background(), directSelection(upstream.URL), newSink(context.Background(), w))

	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.Source != "upstream" {
		t.Errorf("expected upstream TransportError, got %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status changed after body started: %d", w.Code)
	}
	if w.Body.String() != "partial" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestDeliverDirectCancel(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer upstream.Close()
	defer close(release)

	obs := &mockObserver{}
	e := New(Config{HTTPClient: upstream.Client(), Observer: obs})

	ctx, cancel := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	done := make(chan error, 1)
	go func() {
		done <- e.Deliver(ctx, directSelection(upstream.URL), newSink(ctx, w))
	}()

	waitFor(t, func() bool { return e.Active() == 1 })
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Deliver did not return after cancellation")
	}

	if e.Active() != 0 {
		t.Errorf("Active() = %d after cancel", e.Active())
	}
	if got := obs.last(); got.outcome != "cancelled" {
		t.Errorf("outcome = %q, want cancelled", got.outcome)
	}
}

func TestDeliverUnknownKind(t *testing.T) {
	e := New(Config{})
	w := httptest.NewRecorder()
	err := e.Deliver(context.Background(), formats.Selection{Kind: formats.Kind(42)}, newSink(context.Background(), w))
	if err == nil {
		t.Fatal("expected error for unknown selection kind")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 8}

	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defgh"))
	if got := tb.String(); got != "abcdefgh" {
		t.Errorf("got %q", got)
	}

	_, _ = tb.Write([]byte("ij"))
	if got := tb.String(); got != "cdefghij" {
		t.Errorf("got %q", got)
	}

	n, _ := tb.Write([]byte("0123456789XYZ"))
	if n != 13 {
		t.Errorf("Write should report full length, got %d", n)
	}
	if got := tb.String(); got != "56789XYZ" {
		t.Errorf("got %q", got)
	}
}

func TestTransportErrorMessages(t *testing.T) {
	tests := []struct {
		err  *TransportError
		want string
	}{
		{&TransportError{Source: "upstream", StatusCode: 403}, "upstream returned HTTP 403"},
		{&TransportError{Source: "ffmpeg", ExitCode: 1, Stderr: "Invalid data"}, "ffmpeg exited with code 1: Invalid data"},
		{&TransportError{Source: "ffmpeg", ExitCode: 2}, "ffmpeg exited with code 2"},
		{&TransportError{Source: "upstream", Err: errors.New("reset")}, "upstream transfer failed: reset"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	cause := errors.New("exec: not found")
	se := &SpawnError{Path: "/opt/ffmpeg", Err: cause}
	if !errors.Is(se, cause) || !strings.Contains(se.Error(), "/opt/ffmpeg") {
		t.Errorf("SpawnError = %v", se)
	}
}

func TestStateStrings(t *testing.T) {
	for state, want := range map[State]string{
		StateInit:      "init",
		StateDirect:    "direct",
		StateMerging:   "merging",
		StateClosed:    "closed",
		StateFailed:    "failed",
		StateCancelled: "cancelled",
		State(99):      "unknown",
	} {
		if state.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", state, state.String(), want)
		}
	}
	if StateMerging.Terminal() || !StateCancelled.Terminal() {
		t.Error("unexpected Terminal() result")
	}
}

func TestSessionStateIsFinal(t *testing.T) {
	s := &session{}
	s.setState(StateMerging)
	s.setState(StateCancelled)
	s.setState(StateClosed)
	if s.State() != StateCancelled {
		t.Errorf("terminal state overwritten: %v", s.State())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
