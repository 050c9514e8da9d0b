package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"upcase/internal/config"
	"upcase/internal/logging"
	"upcase/internal/preflight"
	"upcase/internal/server"
	"upcase/internal/session"
	"upcase/internal/workers"
)

// ErrAlreadyRunning means another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("daemon already running")

const (
	lockWait       = time.Second
	lockRetryDelay = 50 * time.Millisecond
)

// Options configures daemon process runtime behavior.
type Options struct {
	// Foreground keeps console logging; otherwise the daemon logs to
	// syslog or its state directory.
	Foreground bool
	// ConfigPath is forwarded to worker processes.
	ConfigPath string
	// Executable overrides the binary started for process workers.
	Executable string
	// Logger overrides the logger derived from configuration.
	Logger *slog.Logger
}

// Run starts the upcase daemon and blocks until ctx ends or a termination
// signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	// A client that vanishes mid-write must surface as EPIPE, not kill us.
	signal.Ignore(syscall.SIGPIPE)
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	base, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := logging.NewComponentLogger(base, "daemon")

	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		for _, check := range failed {
			logger.Error("preflight check failed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail),
			)
		}
		return fmt.Errorf("preflight %s: %s", failed[0].Name, failed[0].Detail)
	}

	// Status probes take the lock for an instant, so retry briefly before
	// concluding another daemon owns it.
	lock := flock.New(cfg.LockPath())
	lockCtx, lockCancel := context.WithTimeout(signalCtx, lockWait)
	acquired, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	lockCancel()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	strategy, stopReaper, err := newStrategy(cfg, opts, base)
	if err != nil {
		return err
	}
	defer stopReaper()

	dir := ""
	if cfg.Server.RestrictFIFODir {
		dir = cfg.FIFO.Dir
	}
	srv, err := server.NewServer(signalCtx, server.Options{
		PublicPath: cfg.FIFO.PublicPath,
		FIFODir:    dir,
		Strategy:   strategy,
		Logger:     base,
	})
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer srv.Close()
	srv.Serve()

	logger.Info("upcase daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String("strategy", strategy.Name()),
		logging.String("public_fifo", cfg.FIFO.PublicPath),
		logging.String("lock", cfg.LockPath()),
	)

	<-signalCtx.Done()
	logger.Info("upcase daemon shutting down")
	srv.Close()

	graceCtx, graceCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer graceCancel()
	if err := strategy.Wait(graceCtx); err != nil {
		logging.WarnWithContext(logger, "sessions still running at shutdown", "shutdown_grace_exceeded",
			logging.Int("active", strategy.Active()),
			logging.String(logging.FieldErrorHint, "raise server.shutdown_grace_ms to let clients finish"),
			logging.String(logging.FieldImpact, "in-flight sessions were abandoned"),
		)
	}
	stats := srv.Stats()
	logger.Info("upcase daemon stopped",
		logging.Int64("accepted", stats.Accepted),
		logging.Int64("rejected", stats.Rejected),
	)
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.Logger != nil {
		return opts.Logger, nil
	}
	if opts.Foreground {
		return logging.NewFromConfig(cfg)
	}
	logger, fellBack, err := logging.NewDaemonLogger(cfg)
	if err != nil {
		return nil, err
	}
	if fellBack {
		logging.WarnWithContext(logger, "syslog unavailable, logging to file", "syslog_unavailable",
			logging.String("log_path", cfg.LogPath()),
			logging.String(logging.FieldImpact, "records go to the state directory instead of syslog"),
		)
	}
	return logger, nil
}

// SessionOptions derives per-session bounds from configuration.
func SessionOptions(cfg *config.Config, logger *slog.Logger) session.Options {
	return session.Options{
		ReplyOpenAttempts: cfg.Server.ReplyOpenAttempts,
		ReplyOpenInterval: cfg.ReplyOpenInterval(),
		ClientWaitTimeout: cfg.ClientWaitTimeout(),
		Logger:            logger,
	}
}

func newStrategy(cfg *config.Config, opts Options, logger *slog.Logger) (workers.Strategy, func(), error) {
	name, err := workers.ParseStrategy(cfg.Server.Strategy)
	if err != nil {
		return nil, nil, err
	}
	if name == workers.StrategyThread {
		return workers.NewGoroutines(SessionOptions(cfg, logger)), func() {}, nil
	}

	var args []string
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	reaper := workers.NewReaper(logger, 0)
	procs, err := workers.NewProcesses(workers.ProcessOptions{
		Executable: opts.Executable,
		Args:       args,
		Reaper:     reaper,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}
	reaperCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		reaper.Run(reaperCtx)
	}()
	return procs, func() {
		stop()
		<-done
	}, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
