package daemonctl_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"upcase/internal/config"
	"upcase/internal/daemonctl"
	"upcase/internal/fifo"
	"upcase/internal/testsupport"
)

// holdLock pretends to be a running daemon.
func holdLock(t *testing.T, cfg *config.Config, pid int) {
	t.Helper()
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })
	if err := os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
}

func TestProcessInfoNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	running, pid, err := daemonctl.ProcessInfo(cfg)
	if err != nil || running || pid != 0 {
		t.Fatalf("expected idle daemon, got running=%v pid=%d err=%v", running, pid, err)
	}

	// A stale pid file without a lock holder is not a running daemon.
	if err := os.WriteFile(cfg.PIDPath(), []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := os.WriteFile(cfg.LockPath(), nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	running, _, err = daemonctl.ProcessInfo(cfg)
	if err != nil || running {
		t.Fatalf("stale files reported running=%v err=%v", running, err)
	}
}

func TestProcessInfoRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	holdLock(t, cfg, 4242)

	running, pid, err := daemonctl.ProcessInfo(cfg)
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if !running || pid != 4242 {
		t.Fatalf("expected running pid 4242, got running=%v pid=%d", running, pid)
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pid")
	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(good, []byte(" 123\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if pid, err := daemonctl.ReadPID(good); err != nil || pid != 123 {
		t.Fatalf("ReadPID good = %d, %v", pid, err)
	}
	if _, err := daemonctl.ReadPID(bad); err == nil {
		t.Fatal("expected error for malformed pid file")
	}
	if _, err := daemonctl.ReadPID(filepath.Join(dir, "missing.pid")); err == nil {
		t.Fatal("expected error for missing pid file")
	}
}

func TestBuildStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := fifo.Create(cfg.FIFO.PublicPath, 0o666); err != nil {
		t.Fatalf("Create: %v", err)
	}
	holdLock(t, cfg, 77)

	status, err := daemonctl.BuildStatus(cfg)
	if err != nil {
		t.Fatalf("BuildStatus: %v", err)
	}
	if !status.Running || status.PID != 77 {
		t.Fatalf("unexpected process state: %+v", status)
	}
	if !status.FIFOPresent || status.PublicFIFO != cfg.FIFO.PublicPath {
		t.Fatalf("unexpected fifo state: %+v", status)
	}
	if status.Strategy != cfg.Server.Strategy || status.LockPath != cfg.LockPath() {
		t.Fatalf("status does not mirror config: %+v", status)
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(cfg, 100*time.Millisecond)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestWaitForStartTimesOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	err := daemonctl.WaitForStart(cfg, 250*time.Millisecond)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "self.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
}
