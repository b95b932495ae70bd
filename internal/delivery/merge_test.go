//go:build unix

package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/goleak"

	"ytstream/internal/formats"
	"ytstream/internal/provider"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func mergeSelection() formats.Selection {
	return formats.Selection{
		Kind:  formats.Merge,
		Video: provider.Format{ID: "137", HasVideo: true, Container: "mp4", URL: "https://v.example/137"},
		Audio: provider.Format{ID: "140", HasAudio: true, Container: "m4a", URL: "https://a.example/140"},
	}
}

func TestDeliverMerge(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, `printf 'merged:%s' "$*"`)
	obs := &mockObserver{}
	e := New(Config{FFmpegPath: ffmpeg, Observer: obs})

	w := httptest.NewRecorder()
	if err := e.Deliver(context.Background(), mergeSelection(), newSink(context.Background(), w)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "merged:") {
		t.Fatalf("unexpected body %q", body)
	}
	if !strings.Contains(body, "-i https://v.example/137 -i https://a.example/140") {
		t.Errorf("ffmpeg not given both inputs: %q", body)
	}
	if e.Active() != 0 {
		t.Errorf("Active() = %d after completion", e.Active())
	}
	if got := obs.last(); got.mode != "merge" || got.outcome != "closed" {
		t.Errorf("observer got %+v", got)
	}
	if len(obs.exits) != 1 || obs.exits[0] != 0 {
		t.Errorf("exit codes = %v, want [0]", obs.exits)
	}
}

func TestDeliverMergeNonZeroExit(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, `echo "Server returned 403 Forbidden" >&2; exit 1`)
	obs := &mockObserver{}
	e := New(Config{FFmpegPath: ffmpeg, Observer: obs})

	w := httptest.NewRecorder()
	w.Header().Set("Content-Type", "video/mp4")
	err := e.Deliver(context.Background(), mergeSelection(), newSink(context.Background(), w))

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.ExitCode != 1 || !strings.Contains(te.Stderr, "403 Forbidden") {
		t.Errorf("exit=%d stderr=%q", te.ExitCode, te.Stderr)
	}
	if errors.Is(err, ErrAborted) {
		t.Error("nothing was sent, failure should be reported not aborted")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if got := obs.last(); got.outcome != "failed" {
		t.Errorf("outcome = %q", got.outcome)
	}
}

func TestDeliverMergeFailsMidStream(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, `printf 'ftyp'; exit 1`)
	e := New(Config{FFmpegPath: ffmpeg})

	w := httptest.NewRecorder()
	err := e.Deliver(context.Background(), mergeSelection(), newSink(context.Background(), w))

	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if w.Code != http.StatusOK || w.Body.String() != "ftyp" {
		t.Errorf("response altered after start: code=%d body=%q", w.Code, w.Body.String())
	}
}

func TestDeliverMergeSpawnError(t *testing.T) {
	e := New(Config{FFmpegPath: filepath.Join(t.TempDir(), "missing-ffmpeg")})

	w := httptest.NewRecorder()
	err := e.Deliver(context.Background(), mergeSelection(), newSink(context.Background(), w))

	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if e.Active() != 0 {
		t.Errorf("Active() = %d", e.Active())
	}
}

// A disconnecting client must take ffmpeg down with it.
func TestDeliverMergeCancelKillsProcess(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pidFile := filepath.Join(t.TempDir(), "pid")
	ffmpeg := fakeFFmpeg(t, `echo $$ > `+pidFile+`
printf 'moov'
exec sleep 30`)

	obs := &mockObserver{}
	e := New(Config{FFmpegPath: ffmpeg, Observer: obs, WaitDelay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	done := make(chan error, 1)
	go func() {
		done <- e.Deliver(ctx, mergeSelection(), newSink(ctx, w))
	}()

	var pid int
	waitFor(t, func() bool {
		data, err := os.ReadFile(pidFile)
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil
	})
	if e.Active() != 1 {
		t.Fatalf("Active() = %d while merging", e.Active())
	}

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Deliver did not return after cancellation")
	}

	if err := syscall.Kill(pid, 0); !errors.Is(err, syscall.ESRCH) {
		t.Errorf("ffmpeg pid %d still running after cancel (kill(0) = %v)", pid, err)
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
	if e.Active() != 0 {
		t.Errorf("Active() = %d after cancel", e.Active())
	}
	if got := obs.last(); got.outcome != "cancelled" {
		t.Errorf("outcome = %q, want cancelled", got.outcome)
	}
}

func TestCleanupKillsLiveSessions(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	ffmpeg := fakeFFmpeg(t, `echo $$ > `+pidFile+`
exec sleep 30`)

	e := New(Config{FFmpegPath: ffmpeg, WaitDelay: time.Second})

	w := httptest.NewRecorder()
	done := make(chan error, 1)
	go func() {
		done <- e.Deliver(context.Background(), mergeSelection(), newSink(context.Background(), w))
	}()

	waitFor(t, func() bool {
		_, err := os.Stat(pidFile)
		return err == nil
	})

	e.Cleanup()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error from a killed session")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Cleanup did not stop the session")
	}
	if e.Active() != 0 {
		t.Errorf("Active() = %d after Cleanup", e.Active())
	}
}

func TestCheckBinary(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, `echo "ffmpeg version 7.1 Copyright (c) 2000-2024"; echo "built with gcc"`)

	version, err := New(Config{FFmpegPath: ffmpeg}).CheckBinary(context.Background())
	if err != nil {
		t.Fatalf("CheckBinary: %v", err)
	}
	if version != "ffmpeg version 7.1 Copyright (c) 2000-2024" {
		t.Errorf("version = %q", version)
	}

	if _, err := New(Config{FFmpegPath: filepath.Join(t.TempDir(), "nope")}).CheckBinary(context.Background()); err == nil {
		t.Error("expected error for missing binary")
	}
}
