package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"upcase/internal/fifo"
	"upcase/internal/logging"
	"upcase/internal/protocol"
	"upcase/internal/transform"
	"upcase/internal/workers"
)

// Options configures the public FIFO server.
type Options struct {
	PublicPath string
	// FIFODir, when set, is the only directory private FIFOs may live in.
	FIFODir  string
	Strategy workers.Strategy
	Logger   *slog.Logger
}

// Stats counts requests seen on the public FIFO.
type Stats struct {
	Accepted int64
	Rejected int64
}

// Server owns the public FIFO and hands each connection request to the
// worker strategy.
type Server struct {
	path     string
	dir      string
	strategy workers.Strategy
	logger   *slog.Logger

	reader    *os.File
	keepalive *os.File

	accepted atomic.Int64
	rejected atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewServer creates the public FIFO (keeping an existing one), opens it for
// reading and holds a writer on it so reads never see end of file.
func NewServer(ctx context.Context, opts Options) (*Server, error) {
	if opts.Strategy == nil {
		return nil, errors.New("server requires a worker strategy")
	}
	logger := logging.NewComponentLogger(opts.Logger, "server")

	existed, err := fifo.Create(opts.PublicPath, 0o666)
	if err != nil {
		return nil, fmt.Errorf("create public fifo: %w", err)
	}
	if existed {
		logging.WarnWithContext(logger, "public fifo already exists", "public_fifo_exists",
			logging.String("fifo", opts.PublicPath),
			logging.String(logging.FieldErrorHint, "a previous daemon may not have shut down cleanly"),
			logging.String(logging.FieldImpact, "reusing the existing fifo"),
		)
	}

	reader, err := fifo.OpenReadNonblock(opts.PublicPath)
	if err != nil {
		return nil, fmt.Errorf("open public fifo for reading: %w", err)
	}
	keepalive, err := fifo.OpenWriter(opts.PublicPath)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("open public fifo keep-alive writer: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      opts.PublicPath,
		dir:       opts.FIFODir,
		strategy:  opts.Strategy,
		logger:    logger,
		reader:    reader,
		keepalive: keepalive,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Path returns the public FIFO path.
func (s *Server) Path() string { return s.path }

// Serve reads connection requests until the server is closed.
func (s *Server) Serve() {
	s.logger.Info("listening on public fifo",
		logging.String("fifo", s.path),
		logging.String("strategy", s.strategy.Name()),
	)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			req, err := protocol.ReadRequest(s.reader)
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
					return
				}
				if errors.Is(err, io.EOF) {
					// Only reachable if the keep-alive writer is gone.
					logging.ErrorWithContext(s.logger, "public fifo closed unexpectedly", "public_fifo_eof",
						logging.Error(err))
					return
				}
				s.reject(err)
				continue
			}
			s.dispatch(req)
		}
	}()
}

func (s *Server) dispatch(req protocol.ConnectionRequest) {
	if err := req.Validate(s.dir); err != nil {
		s.reject(err)
		return
	}
	if _, err := transform.ParseLocale(req.LocaleName()); err != nil {
		s.reject(fmt.Errorf("%w: %w", protocol.ErrMalformedRequest, err))
		return
	}
	if err := s.strategy.Spawn(s.ctx, req); err != nil {
		s.rejected.Add(1)
		logging.ErrorWithContext(s.logger, "failed to start worker", "worker_spawn_failed",
			logging.Error(err),
			logging.String("write_fifo", req.WritePath()),
			logging.String(logging.FieldErrorHint, "check process limits and the daemon executable"),
		)
		return
	}
	s.accepted.Add(1)
	s.logger.Debug("connection request accepted",
		logging.String("write_fifo", req.WritePath()),
		logging.String("read_fifo", req.ReadPath()),
		logging.String("locale", req.LocaleName()),
	)
}

func (s *Server) reject(err error) {
	s.rejected.Add(1)
	logging.WarnWithContext(s.logger, "dropping connection request", "request_rejected",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "client sent a malformed or disallowed request"),
		logging.String(logging.FieldImpact, "that client will time out"),
	)
}

// Stats reports request counters.
func (s *Server) Stats() Stats {
	return Stats{Accepted: s.accepted.Load(), Rejected: s.rejected.Load()}
}

// Close stops reading, closes both FIFO handles and removes the public FIFO.
// In-flight sessions observe the cancelled context.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.reader.Close()
		_ = s.keepalive.Close()
		s.wg.Wait()
		if err := fifo.Remove(s.path); err != nil {
			logging.WarnWithContext(s.logger, "failed to remove public fifo", "public_fifo_cleanup_failed",
				logging.String("fifo", s.path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale fifo will be reused on next start"),
				logging.String(logging.FieldErrorHint, "remove the fifo manually"),
			)
		}
	})
}
