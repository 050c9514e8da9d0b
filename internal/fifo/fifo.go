package fifo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
)

// PipeBuf is the largest write the kernel guarantees to be atomic on a pipe.
const PipeBuf = 4096

var (
	// ErrNoReader is returned when a non-blocking write open finds no reader.
	ErrNoReader = errors.New("fifo has no reader")
	// ErrNotExist is returned when the FIFO path does not exist.
	ErrNotExist = errors.New("fifo does not exist")
	// ErrRetryExhausted is returned when a bounded open never succeeds.
	ErrRetryExhausted = errors.New("fifo open retries exhausted")
	// ErrNotFIFO is returned when a path exists but is not a named pipe.
	ErrNotFIFO = errors.New("path exists and is not a fifo")
)

// Create makes a FIFO at path with the given permissions, independent of
// the process umask. An existing FIFO is left in place and reported through
// existed; any other existing file is an error.
func Create(path string, perm os.FileMode) (existed bool, err error) {
	if err := unix.Mkfifo(path, uint32(perm.Perm())); err != nil {
		if !errors.Is(err, unix.EEXIST) {
			return false, fmt.Errorf("mkfifo %s: %w", path, err)
		}
		if !IsFIFO(path) {
			return false, fmt.Errorf("mkfifo %s: %w", path, ErrNotFIFO)
		}
		existed = true
	}
	if err := os.Chmod(path, perm.Perm()); err != nil {
		return existed, fmt.Errorf("chmod %s: %w", path, err)
	}
	return existed, nil
}

// Remove unlinks path. A missing path is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove fifo %s: %w", path, err)
	}
	return nil
}

// IsFIFO reports whether path names a named pipe.
func IsFIFO(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&fs.ModeNamedPipe != 0
}

// OpenWriter opens path for writing without blocking. It fails with
// ErrNoReader when nobody has the FIFO open for reading and ErrNotExist
// when the path is missing.
func OpenWriter(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, classify(path, err)
	}
	return f, nil
}

// OpenWriterRetry retries OpenWriter while the FIFO has no reader, up to
// attempts tries spaced by interval. Missing paths fail immediately.
func OpenWriterRetry(ctx context.Context, path string, attempts int, interval time.Duration) (*os.File, error) {
	if attempts < 1 {
		attempts = 1
	}
	var f *os.File
	var lastErr error
	op := func() error {
		opened, err := OpenWriter(path)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrNoReader) {
				return err
			}
			return backoff.Permanent(err)
		}
		f = opened
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrNoReader) {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
		}
		return nil, err
	}
	return f, nil
}

// OpenReadNonblock opens path for reading without waiting for a writer.
func OpenReadNonblock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, classify(path, err)
	}
	return f, nil
}

const (
	unblockAttempts = 20
	unblockInterval = 5 * time.Millisecond
)

type openResult struct {
	file *os.File
	err  error
}

// OpenReader opens path for reading and blocks until a writer appears. If
// ctx ends first, the pending open is satisfied with a throwaway writer and
// ctx.Err() is returned. When the path has already been unlinked the
// blocked open cannot be released; its goroutine closes the file if the
// open ever completes.
func OpenReader(ctx context.Context, path string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan openResult, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			err = classify(path, err)
		}
		done <- openResult{file: f, err: err}
	}()

	select {
	case res := <-done:
		return res.file, res.err
	case <-ctx.Done():
	}

	// The opener goroutine may not have reached open(2) yet, in which case
	// the throwaway writer sees no reader; retry briefly.
	for range unblockAttempts {
		select {
		case res := <-done:
			if res.file != nil {
				res.file.Close()
			}
			return nil, ctx.Err()
		default:
		}
		unblock, err := OpenWriter(path)
		if err == nil {
			res := <-done
			if res.file != nil {
				res.file.Close()
			}
			unblock.Close()
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrNoReader) {
			break
		}
		time.Sleep(unblockInterval)
	}
	go func() {
		if res := <-done; res.file != nil {
			res.file.Close()
		}
	}()
	return nil, ctx.Err()
}

func classify(path string, err error) error {
	switch {
	case errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("open %s: %w", path, ErrNoReader)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("open %s: %w", path, ErrNotExist)
	default:
		return fmt.Errorf("open %s: %w", path, err)
	}
}
