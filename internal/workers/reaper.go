package workers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"upcase/internal/logging"
)

const defaultSweepInterval = 5 * time.Second

type child struct {
	label   string
	started time.Time
}

// Reaper collects exited worker processes so none linger as zombies. It
// waits on each tracked pid individually with WNOHANG, leaving children
// started elsewhere in the process (os/exec users) to their own Wait.
type Reaper struct {
	mu       sync.Mutex
	children map[int]child
	logger   *slog.Logger
	interval time.Duration
	kick     chan struct{}
}

// NewReaper returns a reaper that sweeps on SIGCHLD and every interval.
func NewReaper(logger *slog.Logger, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Reaper{
		children: make(map[int]child),
		logger:   logging.NewComponentLogger(logger, "reaper"),
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Track registers pid for reaping.
func (r *Reaper) Track(pid int, label string) {
	r.mu.Lock()
	r.children[pid] = child{label: label, started: time.Now()}
	r.mu.Unlock()
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Tracked reports children not yet reaped.
func (r *Reaper) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children)
}

// Run sweeps until ctx ends, then sweeps once more.
func (r *Reaper) Run(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGCHLD)
	defer signal.Stop(sigs)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Sweep()
			return
		case <-sigs:
		case <-ticker.C:
		case <-r.kick:
		}
		r.Sweep()
	}
}

// Sweep reaps every tracked child that has exited and returns how many
// were collected.
func (r *Reaper) Sweep() int {
	r.mu.Lock()
	pids := make([]int, 0, len(r.children))
	for pid := range r.children {
		pids = append(pids, pid)
	}
	r.mu.Unlock()

	reaped := 0
	for _, pid := range pids {
		var status unix.WaitStatus
		wpid, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
		switch {
		case err != nil && errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			// ECHILD: already collected elsewhere or never ours.
			r.forget(pid, nil)
			reaped++
		case wpid == pid:
			r.forget(pid, &status)
			reaped++
		}
	}
	return reaped
}

func (r *Reaper) forget(pid int, status *unix.WaitStatus) {
	r.mu.Lock()
	c, ok := r.children[pid]
	delete(r.children, pid)
	r.mu.Unlock()
	if !ok {
		return
	}

	attrs := []logging.Attr{
		logging.Int("pid", pid),
		logging.String("worker", c.label),
		logging.Duration("runtime", time.Since(c.started)),
	}
	if status == nil {
		r.logger.Debug("worker already collected", logging.Args(attrs...)...)
		return
	}
	switch {
	case status.Exited() && status.ExitStatus() == 0:
		r.logger.Debug("worker exited", logging.Args(attrs...)...)
	case status.Exited():
		attrs = append(attrs, logging.Int("exit_code", status.ExitStatus()))
		logging.WarnWithContext(r.logger, "worker exited with error", "worker_failed",
			append(attrs, logging.String(logging.FieldImpact, "one client session failed"))...)
	case status.Signaled():
		attrs = append(attrs, logging.String("signal", status.Signal().String()))
		logging.WarnWithContext(r.logger, "worker killed by signal", "worker_signaled",
			append(attrs, logging.String(logging.FieldImpact, "one client session failed"))...)
	}
}

// Wait sweeps until no tracked children remain or ctx ends.
func (r *Reaper) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		r.Sweep()
		if r.Tracked() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
