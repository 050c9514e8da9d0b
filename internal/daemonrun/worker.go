package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"upcase/internal/config"
	"upcase/internal/logging"
	"upcase/internal/protocol"
	"upcase/internal/session"
)

// WorkerOptions names the session a worker process serves.
type WorkerOptions struct {
	WriteFIFO string
	ReadFIFO  string
	Locale    string
	Logger    *slog.Logger
}

// RunWorker serves a single session in a worker process started by the
// process strategy. Session failures are logged and returned.
func RunWorker(cmdCtx context.Context, cfg *config.Config, opts WorkerOptions) error {
	signal.Ignore(syscall.SIGPIPE)
	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	req, err := protocol.NewRequest(opts.WriteFIFO, opts.ReadFIFO, opts.Locale)
	if err != nil {
		return fmt.Errorf("worker request: %w", err)
	}
	dir := ""
	if cfg.Server.RestrictFIFODir {
		dir = cfg.FIFO.Dir
	}
	if err := req.Validate(dir); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = workerLogger(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	logger = logger.With(logging.Int("worker_pid", os.Getpid()))

	_, err = session.Serve(ctx, req, SessionOptions(cfg, logger))
	return err
}

// workerLogger logs to the console when a terminal is attached and
// otherwise follows the daemon's syslog/file choice.
func workerLogger(cfg *config.Config) (*slog.Logger, error) {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return logging.NewConsole(os.Stderr, cfg.Logging.Level), nil
	}
	logger, _, err := logging.NewDaemonLogger(cfg)
	return logger, err
}
