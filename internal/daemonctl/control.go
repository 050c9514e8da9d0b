package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"upcase/internal/config"
	"upcase/internal/fifo"
)

// ErrDaemonNotRunning indicates no daemon holds the instance lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 100 * time.Millisecond

// Status describes the daemon as seen from outside.
type Status struct {
	Running     bool
	PID         int
	Strategy    string
	PublicFIFO  string
	FIFOPresent bool
	FIFODir     string
	StateDir    string
	LockPath    string
	PIDPath     string
	Syslog      bool
}

// ProcessInfo reports whether a daemon holds the instance lock and, when
// the pid file is readable, its pid.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	// The daemon writes its pid file only after taking the lock, so without
	// one there is nothing to probe.
	lockPath := cfg.LockPath()
	if _, err := os.Stat(cfg.PIDPath()); errors.Is(err, os.ErrNotExist) {
		return false, 0, nil
	}
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return false, 0, nil
	}
	lock := flock.New(lockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return false, 0, fmt.Errorf("probe daemon lock %s: %w", lockPath, err)
	}
	if acquired {
		_ = lock.Unlock()
		return false, 0, nil
	}
	pid, err := ReadPID(cfg.PIDPath())
	if err != nil {
		return true, 0, nil
	}
	return true, pid, nil
}

// ReadPID parses the daemon pid file.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %q has no valid pid", path)
	}
	return pid, nil
}

// BuildStatus collects a status snapshot for display.
func BuildStatus(cfg *config.Config) (Status, error) {
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:     running,
		PID:         pid,
		Strategy:    cfg.Server.Strategy,
		PublicFIFO:  cfg.FIFO.PublicPath,
		FIFOPresent: fifo.IsFIFO(cfg.FIFO.PublicPath),
		FIFODir:     cfg.FIFO.Dir,
		StateDir:    cfg.Daemon.StateDir,
		LockPath:    cfg.LockPath(),
		PIDPath:     cfg.PIDPath(),
		Syslog:      cfg.Daemon.Syslog,
	}, nil
}

// WaitForStart waits until a daemon holds the lock and its public FIFO
// exists.
func WaitForStart(cfg *config.Config, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		running, _, err := ProcessInfo(cfg)
		switch {
		case err != nil:
			lastErr = err
		case running && fifo.IsFIFO(cfg.FIFO.PublicPath):
			return nil
		default:
			lastErr = ErrDaemonNotRunning
		}
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return fmt.Errorf("daemon failed to start: %w", lastErr)
}

// WaitForShutdown waits for the instance lock to be released.
func WaitForShutdown(cfg *config.Config, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		running, _, err := ProcessInfo(cfg)
		if err == nil && !running {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("daemon still running")
		}
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// ForceKillProcess sends SIGKILL to the daemon and removes its pid and lock
// files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	if parsed, err := ReadPID(pidPath); err == nil {
		pid = parsed
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StopResult captures the outcome of a stop request.
type StopResult struct {
	Signalled  bool
	ForcedKill bool
	PID        int
}

// StopAndTerminate sends SIGTERM to the daemon and, if it is still running
// after gracePeriod, kills it and removes the files it would have cleaned
// up itself.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !running {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("daemon holds %s but pid file %s is unreadable", cfg.LockPath(), cfg.PIDPath())
	}

	result := StopResult{PID: pid}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon %d: %w", pid, err)
	}
	result.Signalled = true

	if err := WaitForShutdown(cfg, gracePeriod); err == nil {
		return result, nil
	}

	killed, err := ForceKillProcess(cfg.PIDPath(), cfg.LockPath(), pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = fifo.Remove(cfg.FIFO.PublicPath)
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}
