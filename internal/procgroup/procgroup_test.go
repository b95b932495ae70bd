//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestKillTerminatesGroup(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 30 & sleep 30")
	Set(cmd)

	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid

	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		t.Fatalf("getpgid: %v", err)
	}
	if pgid != pid {
		t.Fatalf("expected process to lead its group, pgid=%d pid=%d", pgid, pid)
	}

	// Give the shell time to fork its background child.
	time.Sleep(100 * time.Millisecond)

	if err := Kill(cmd); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	err = cmd.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		if !status.Signaled() || status.Signal() != syscall.SIGKILL {
			t.Errorf("expected SIGKILL, got %v", status)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := syscall.Kill(-pgid, syscall.Signal(0))
		if errors.Is(err, syscall.ESRCH) {
			return
		}
		if time.Now().After(deadline) {
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
			t.Fatalf("process group %d still exists after Kill (err=%v)", pgid, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestKillNilAndUnstarted(t *testing.T) {
	if err := Kill(nil); err != nil {
		t.Errorf("Kill(nil) = %v", err)
	}
	if err := Kill(exec.Command("true")); err != nil {
		t.Errorf("Kill(unstarted) = %v", err)
	}
}

func TestKillAfterExit(t *testing.T) {
	cmd := exec.Command("true")
	Set(cmd)
	if err := cmd.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := Kill(cmd); err != nil {
		t.Errorf("Kill after exit = %v", err)
	}
}

func TestSetPreservesSysProcAttr(t *testing.T) {
	cmd := exec.Command("true")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: false}
	attr := cmd.SysProcAttr
	Set(cmd)
	if cmd.SysProcAttr != attr || !cmd.SysProcAttr.Setpgid {
		t.Error("Set should enable Setpgid on the existing attributes")
	}
}
