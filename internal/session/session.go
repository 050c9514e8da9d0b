package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	"github.com/google/uuid"

	"upcase/internal/fifo"
	"upcase/internal/logging"
	"upcase/internal/protocol"
	"upcase/internal/transform"
)

var (
	// ErrReplyOpenExhausted means the client never opened its reply FIFO
	// within the configured retry bound.
	ErrReplyOpenExhausted = errors.New("reply fifo open retries exhausted")
	// ErrClientVanished means the client went away mid-session.
	ErrClientVanished = errors.New("client vanished")
)

// Options bounds a session's waits.
type Options struct {
	ReplyOpenAttempts int
	ReplyOpenInterval time.Duration
	// ClientWaitTimeout bounds the wait for the client to open its write
	// FIFO. Zero waits until the context ends.
	ClientWaitTimeout time.Duration
	Logger            *slog.Logger
}

// Result summarizes a finished session.
type Result struct {
	ID       string
	Chunks   int
	BytesIn  int64
	BytesOut int64
	// Final is the last state reached before termination.
	Final    State
}

// Serve runs one client session to completion: it waits for the client to
// open its write FIFO, then answers every chunk with its uppercase form on
// the reply FIFO until the client closes its end. Errors are scoped to this
// session.
func Serve(ctx context.Context, req protocol.ConnectionRequest, opts Options) (Result, error) {
	s := &session{
		req:    req,
		opts:   opts,
		result: Result{ID: uuid.NewString()},
	}
	s.logger = logging.WithSession(logging.NewComponentLogger(opts.Logger, "session"), s.result.ID)
	if s.opts.ReplyOpenAttempts < 1 {
		s.opts.ReplyOpenAttempts = 1
	}

	err := s.run(ctx)
	if err != nil {
		s.logFailure(err)
	} else {
		s.logger.Info("session finished",
			logging.Int("chunks", s.result.Chunks),
			logging.Int64("bytes_in", s.result.BytesIn),
			logging.Int64("bytes_out", s.result.BytesOut),
		)
	}
	s.logger.Debug("session state", logging.String(logging.FieldState, string(StateTerminated)))
	return s.result, err
}

type session struct {
	req    protocol.ConnectionRequest
	opts   Options
	logger *slog.Logger
	result Result
}

func (s *session) transition(next State) {
	s.result.Final = next
	s.logger.Debug("session state", logging.String(logging.FieldState, string(next)))
}

func (s *session) run(ctx context.Context) error {
	upper, err := transform.NewUpper(s.req.LocaleName())
	if err != nil {
		return err
	}
	s.logger.Debug("session started",
		logging.String("write_fifo", s.req.WritePath()),
		logging.String("read_fifo", s.req.ReadPath()),
		logging.String("locale", upper.Locale()),
	)

	s.transition(StateAwaitClientWriter)
	waitCtx := ctx
	if s.opts.ClientWaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.opts.ClientWaitTimeout)
		defer cancel()
	}
	in, err := fifo.OpenReader(waitCtx, s.req.WritePath())
	if err != nil {
		if errors.Is(err, fifo.ErrNotExist) {
			return fmt.Errorf("open client fifo: %w: %w", ErrClientVanished, err)
		}
		return fmt.Errorf("open client fifo: %w", err)
	}
	defer in.Close()
	stop := context.AfterFunc(ctx, func() { in.Close() })
	defer stop()

	buf := make([]byte, fifo.PipeBuf)
	for {
		s.transition(StateReadingChunk)
		n, err := in.Read(buf)
		if n > 0 {
			if err := s.reply(ctx, upper.Bytes(buf[:n]), n); err != nil {
				return err
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			s.transition(StateClientEOF)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read client fifo: %w", err)
	}
}

func (s *session) reply(ctx context.Context, out []byte, in int) error {
	s.result.Chunks++
	s.result.BytesIn += int64(in)

	s.transition(StateOpeningReply)
	w, err := fifo.OpenWriterRetry(ctx, s.req.ReadPath(), s.opts.ReplyOpenAttempts, s.opts.ReplyOpenInterval)
	if err != nil {
		switch {
		case errors.Is(err, fifo.ErrRetryExhausted):
			s.transition(StateOpenRetryExhausted)
			return fmt.Errorf("%w: %w", ErrReplyOpenExhausted, err)
		case errors.Is(err, fifo.ErrNotExist):
			return fmt.Errorf("%w: %w", ErrClientVanished, err)
		}
		return fmt.Errorf("open reply fifo: %w", err)
	}
	defer w.Close()

	s.transition(StateWritingReply)
	n, err := w.Write(out)
	s.result.BytesOut += int64(n)
	if err != nil {
		if errors.Is(err, syscall.EPIPE) {
			s.transition(StateBrokenPipe)
			return fmt.Errorf("%w: %w", ErrClientVanished, err)
		}
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

func (s *session) logFailure(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		s.logger.Debug("session cancelled", logging.String(logging.FieldState, string(s.result.Final)))
	case errors.Is(err, context.DeadlineExceeded):
		logging.WarnWithContext(s.logger, "client never opened its write fifo", "client_wait_timeout",
			logging.String(logging.FieldErrorHint, "raise server.client_wait_timeout_ms or check the client"),
			logging.String(logging.FieldImpact, "session abandoned"),
		)
	case errors.Is(err, ErrReplyOpenExhausted):
		logging.WarnWithContext(s.logger, "client did not open its reply fifo", "reply_open_exhausted",
			logging.Error(err),
			logging.Int("attempts", s.opts.ReplyOpenAttempts),
			logging.String(logging.FieldErrorHint, "raise server.reply_open_attempts if clients are slow"),
			logging.String(logging.FieldImpact, "session aborted"),
		)
	case errors.Is(err, ErrClientVanished):
		logging.WarnWithContext(s.logger, "client vanished mid-session", "client_vanished",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "client exited before reading its reply"),
			logging.String(logging.FieldImpact, "reply dropped"),
		)
	default:
		logging.WarnWithContext(s.logger, "session failed", "session_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "session aborted"),
		)
	}
}

