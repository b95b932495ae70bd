package delivery

import (
	"errors"
	"fmt"
)

// ErrAborted marks a failure that happened after the response body started.
// The status is already sent, so the handler must drop the connection.
var ErrAborted = errors.New("stream aborted after response started")

// SpawnError means the ffmpeg process could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// TransportError is a failure of the upstream connection or of the ffmpeg
// process while streaming.
type TransportError struct {
	// Source is "upstream" or "ffmpeg".
	Source     string
	StatusCode int
	ExitCode   int
	Stderr     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned HTTP %d", e.Source, e.StatusCode)
	case e.Source == "ffmpeg" && e.Stderr != "":
		return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, e.Stderr)
	case e.Source == "ffmpeg":
		return fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	case e.Err != nil:
		return fmt.Sprintf("%s transfer failed: %v", e.Source, e.Err)
	default:
		return e.Source + " transfer failed"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
