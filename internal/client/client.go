package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"upcase/internal/fifo"
	"upcase/internal/logging"
	"upcase/internal/protocol"
)

var (
	// ErrServerNotRunning means the public FIFO exists but no daemon reads it.
	ErrServerNotRunning = errors.New("server not running")
	// ErrNotInstalled means the public FIFO does not exist.
	ErrNotInstalled = errors.New("service not installed")
	// ErrServerNotReading means the daemon never picked up the request.
	ErrServerNotReading = errors.New("server is not reading the pipe")
)

// Options configures a client connection.
type Options struct {
	PublicPath string
	Dir        string
	// ID distinguishes this client's FIFO pair. Defaults to the process id.
	ID           string
	Locale       string
	ChunkSize    int
	OpenAttempts int
	OpenInterval time.Duration
	Logger       *slog.Logger
}

// Client is one connected session with the daemon. Chunks are exchanged
// strictly one at a time.
type Client struct {
	opts   Options
	write  string
	read   string
	out    *os.File
	logger *slog.Logger
}

// Dial creates the private FIFO pair, announces it on the public FIFO and
// waits (bounded) for the daemon to start reading. On failure the FIFOs are
// removed before returning.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.ID == "" {
		opts.ID = strconv.Itoa(os.Getpid())
	}
	if opts.ChunkSize <= 0 || opts.ChunkSize > fifo.PipeBuf {
		opts.ChunkSize = fifo.PipeBuf
	}
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	c := &Client{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "client")}
	c.write, c.read = protocol.FIFONames(opts.Dir, opts.ID)

	req, err := protocol.NewRequest(c.write, c.read, opts.Locale)
	if err != nil {
		return nil, err
	}
	data, err := req.Encode()
	if err != nil {
		return nil, err
	}

	for _, path := range []string{c.write, c.read} {
		if _, err := fifo.Create(path, 0o600); err != nil {
			c.removeFIFOs()
			return nil, err
		}
	}

	if err := c.announce(data); err != nil {
		c.removeFIFOs()
		return nil, err
	}

	out, err := fifo.OpenWriterRetry(ctx, c.write, opts.OpenAttempts, opts.OpenInterval)
	if err != nil {
		c.removeFIFOs()
		if errors.Is(err, fifo.ErrRetryExhausted) {
			return nil, fmt.Errorf("%w: %w", ErrServerNotReading, err)
		}
		return nil, err
	}
	c.out = out
	c.logger.Debug("connected",
		logging.String("write_fifo", c.write),
		logging.String("read_fifo", c.read),
		logging.String("locale", opts.Locale),
	)
	return c, nil
}

func (c *Client) announce(data []byte) error {
	pub, err := fifo.OpenWriter(c.opts.PublicPath)
	if err != nil {
		switch {
		case errors.Is(err, fifo.ErrNoReader):
			return fmt.Errorf("%w: %w", ErrServerNotRunning, err)
		case errors.Is(err, fifo.ErrNotExist):
			return fmt.Errorf("%w: %w", ErrNotInstalled, err)
		}
		return err
	}
	defer pub.Close()
	if _, err := pub.Write(data); err != nil {
		return fmt.Errorf("write connection request: %w", err)
	}
	return nil
}

// FIFOs returns the client's write and read FIFO paths.
func (c *Client) FIFOs() (write, read string) { return c.write, c.read }

// RoundTrip sends one chunk and returns the daemon's reply.
func (c *Client) RoundTrip(ctx context.Context, chunk []byte) ([]byte, error) {
	if len(chunk) > fifo.PipeBuf {
		return nil, fmt.Errorf("chunk of %d bytes exceeds %d", len(chunk), fifo.PipeBuf)
	}
	if _, err := c.out.Write(chunk); err != nil {
		return nil, fmt.Errorf("write chunk: %w", err)
	}
	in, err := fifo.OpenReader(ctx, c.read)
	if err != nil {
		return nil, fmt.Errorf("open reply fifo: %w", err)
	}
	defer in.Close()
	stop := context.AfterFunc(ctx, func() { in.Close() })
	defer stop()

	reply, err := io.ReadAll(in)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}

// Transform streams r through the daemon line by line, writing replies to
// w in order, until r is exhausted.
func (c *Client) Transform(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	for {
		line, readErr := reader.ReadBytes('\n')
		for _, chunk := range SplitChunks(line, c.opts.ChunkSize) {
			reply, err := c.RoundTrip(ctx, chunk)
			if err != nil {
				return err
			}
			if _, err := w.Write(reply); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", readErr)
		}
	}
}

// Close ends the session and removes both private FIFOs.
func (c *Client) Close() error {
	var err error
	if c.out != nil {
		err = c.out.Close()
		c.out = nil
	}
	return errors.Join(err, c.removeFIFOs())
}

func (c *Client) removeFIFOs() error {
	return errors.Join(fifo.Remove(c.write), fifo.Remove(c.read))
}
