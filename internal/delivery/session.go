package delivery

import (
	"io"
	"os/exec"
	"sync"
	"time"

	"ytstream/internal/formats"
	"ytstream/internal/logging"
	"ytstream/internal/procgroup"
)

// State is the lifecycle position of a delivery session.
type State int

const (
	StateInit State = iota
	StateDirect
	StateMerging
	StateClosed
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDirect:
		return "direct"
	case StateMerging:
		return "merging"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed || s == StateCancelled
}

// session holds the resources of one Deliver call.
type session struct {
	id    string
	sel   formats.Selection
	mode  string
	start time.Time
	once  sync.Once

	mu      sync.Mutex
	state   State
	body    io.Closer
	cmd     *exec.Cmd
	exited  bool
	aborted bool
}

func (s *session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = state
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// attachBody registers the upstream body. It returns false, closing body,
// if the session was already aborted.
func (s *session) attachBody(body io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		_ = body.Close()
		return false
	}
	s.body = body
	return true
}

// attachCmd registers the started ffmpeg process. It returns false if the
// session was already aborted.
func (s *session) attachCmd(cmd *exec.Cmd) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return false
	}
	s.cmd = cmd
	return true
}

// markExited records that the process has been reaped, after which its pid
// may be reused and must not be signalled.
func (s *session) markExited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exited = true
}

// kill terminates the process group if it is still running.
func (s *session) kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
}

func (s *session) killLocked() {
	if s.cmd == nil || s.exited {
		return
	}
	if err := procgroup.Kill(s.cmd); err != nil {
		logging.Warn("Failed to kill ffmpeg for stream %s: %v", s.id, err)
	}
}

// abort releases the upstream body and the process. Safe to call more than
// once and from other goroutines.
func (s *session) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aborted = true
	if s.body != nil {
		if err := s.body.Close(); err != nil {
			logging.Debug("Failed to close upstream body for stream %s: %v", s.id, err)
		}
		s.body = nil
	}
	s.killLocked()
}
