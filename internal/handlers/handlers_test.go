package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ytstream/internal/formats"
	"ytstream/internal/metacache"
	"ytstream/internal/provider"
	"ytstream/internal/streaming"
	"ytstream/internal/urlnorm"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// mockProvider counts Fetch calls and returns a fixed result.
type mockProvider struct {
	video *provider.Video
	err   error
	calls atomic.Int32
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Check(context.Context) error { return nil }

func (m *mockProvider) Fetch(_ context.Context, _ urlnorm.ID) (*provider.Video, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.video, nil
}

// mockEngine records the selection it was given and runs deliverFn.
type mockEngine struct {
	mu        sync.Mutex
	sel       formats.Selection
	calls     int
	active    int
	deliverFn func(ctx context.Context, sel formats.Selection, sink *streaming.Sink) error
}

func (m *mockEngine) Deliver(ctx context.Context, sel formats.Selection, sink *streaming.Sink) error {
	m.mu.Lock()
	m.sel = sel
	m.calls++
	m.mu.Unlock()
	if m.deliverFn == nil {
		_, err := sink.Write([]byte("media"))
		return err
	}
	return m.deliverFn(ctx, sel, sink)
}

func (m *mockEngine) Active() int { return m.active }

func (m *mockEngine) lastSelection() (formats.Selection, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel, m.calls
}

func testVideo() *provider.Video {
	return &provider.Video{
		ID:              "dQw4w9WgXcQ",
		Title:           `My/Video: "Live"`,
		DurationSeconds: 212,
		Thumbnails:      []provider.Thumbnail{{URL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hq.jpg", Width: 480, Height: 360}},
		URL:             testURL,
		Formats: []provider.Format{
			{ID: "18", QualityLabel: "360p", HasVideo: true, HasAudio: true, Container: "mp4", Bitrate: 500, URL: "https://cdn.test/18"},
			{ID: "137", QualityLabel: "1080p", HasVideo: true, Container: "mp4", Bitrate: 4000, Filesize: 9000000, URL: "https://cdn.test/137"},
			{ID: "140", QualityLabel: "m4a 128k", HasAudio: true, Container: "m4a", Bitrate: 128, URL: "https://cdn.test/140"},
			{ID: "22", QualityLabel: "720p", HasVideo: true, HasAudio: true, Container: "mp4", Bitrate: 1500, URL: "https://cdn.test/22"},
			{ID: "251", QualityLabel: "opus 160k", HasAudio: true, Container: "webm", Bitrate: 160, URL: "https://cdn.test/251"},
			{ID: "sb0", QualityLabel: "storyboard", Container: "mhtml"},
		},
	}
}

func newTestHandlers(p *mockProvider, e *mockEngine) *Handlers {
	h := New(metacache.New(), p, e)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func serve(handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return w
}

func TestNewStartsNotReady(t *testing.T) {
	h := newTestHandlers(&mockProvider{}, &mockEngine{})
	if h.ready() {
		t.Error("Handlers should not be ready before SetReadiness")
	}

	h.SetReadiness(true, false)
	if h.ready() {
		t.Error("Handlers should not be ready without ffmpeg")
	}
	h.SetReadiness(true, true)
	if !h.ready() {
		t.Error("Handlers should be ready")
	}
}

func TestLookupUsesCache(t *testing.T) {
	p := &mockProvider{video: testVideo()}
	h := newTestHandlers(p, &mockEngine{})
	id := urlnorm.MustNormalize(testURL)

	for i := 0; i < 3; i++ {
		v, err := h.lookup(context.Background(), id)
		if err != nil || v.ID != "dQw4w9WgXcQ" {
			t.Fatalf("lookup() = %v, %v", v, err)
		}
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}
}
