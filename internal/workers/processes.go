package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"upcase/internal/logging"
	"upcase/internal/protocol"
)

// ProcessOptions configures the process-per-client strategy.
type ProcessOptions struct {
	// Executable is the binary started for each session, normally the
	// daemon itself.
	Executable string
	// Args precede the worker arguments, e.g. a --config flag.
	Args   []string
	Env    []string
	Reaper *Reaper
	Logger *slog.Logger
}

// Processes serves each session from a separate worker process started
// with WorkerArgs. Children are detached from the daemon's stdio and
// collected by the Reaper.
type Processes struct {
	opts   ProcessOptions
	logger *slog.Logger
}

// NewProcesses returns the process-per-client strategy.
func NewProcesses(opts ProcessOptions) (*Processes, error) {
	if opts.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		opts.Executable = exe
	}
	if opts.Reaper == nil {
		opts.Reaper = NewReaper(opts.Logger, 0)
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	return &Processes{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "workers")}, nil
}

func (p *Processes) Name() string { return StrategyProcess }

// Reaper exposes the reaper so the daemon can run it.
func (p *Processes) Reaper() *Reaper { return p.opts.Reaper }

func (p *Processes) Spawn(_ context.Context, req protocol.ConnectionRequest) error {
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()

	argv := append([]string{p.opts.Executable}, p.opts.Args...)
	argv = append(argv, WorkerArgs(req)...)
	proc, err := os.StartProcess(p.opts.Executable, argv, &os.ProcAttr{
		Dir:   "/",
		Env:   p.opts.Env,
		Files: []*os.File{devnull, devnull, devnull},
	})
	if err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	pid := proc.Pid
	p.opts.Reaper.Track(pid, req.WritePath())
	if err := proc.Release(); err != nil {
		p.logger.Debug("release worker handle", logging.Int("pid", pid), logging.Error(err))
	}
	p.logger.Debug("worker started", logging.Int("pid", pid), logging.String("write_fifo", req.WritePath()))
	return nil
}

func (p *Processes) Active() int { return p.opts.Reaper.Tracked() }

func (p *Processes) Wait(ctx context.Context) error { return p.opts.Reaper.Wait(ctx) }
