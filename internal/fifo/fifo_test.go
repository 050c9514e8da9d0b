package fifo_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"upcase/internal/fifo"
)

func TestCreateToleratesExistingFIFO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public.fifo")

	existed, err := fifo.Create(path, 0o666)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if existed {
		t.Fatal("fresh fifo reported as existing")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o666 {
		t.Fatalf("expected mode 0666 regardless of umask, got %v", info.Mode().Perm())
	}

	existed, err = fifo.Create(path, 0o666)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if !existed {
		t.Fatal("expected existing fifo to be reported")
	}
}

func TestCreateRejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := fifo.Create(path, 0o600); !errors.Is(err, fifo.ErrNotFIFO) {
		t.Fatalf("expected ErrNotFIFO, got %v", err)
	}
}

func TestRemoveIgnoresMissing(t *testing.T) {
	if err := fifo.Remove(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestOpenWriterClassifiesErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := fifo.OpenWriter(filepath.Join(dir, "missing")); !errors.Is(err, fifo.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}

	path := filepath.Join(dir, "lonely.fifo")
	if _, err := fifo.Create(path, 0o600); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fifo.OpenWriter(path); !errors.Is(err, fifo.ErrNoReader) {
		t.Fatalf("expected ErrNoReader, got %v", err)
	}
}

func TestOpenWriterRetryIsBounded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lonely.fifo")
	if _, err := fifo.Create(path, 0o600); err != nil {
		t.Fatalf("Create: %v", err)
	}

	start := time.Now()
	_, err := fifo.OpenWriterRetry(context.Background(), path, 3, 20*time.Millisecond)
	if !errors.Is(err, fifo.ErrRetryExhausted) || !errors.Is(err, fifo.ErrNoReader) {
		t.Fatalf("expected exhausted no-reader error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond || elapsed > 2*time.Second {
		t.Fatalf("unexpected retry duration %v", elapsed)
	}
}

func TestOpenWriterRetryMissingPathIsPermanent(t *testing.T) {
	_, err := fifo.OpenWriterRetry(context.Background(), filepath.Join(t.TempDir(), "missing"), 50, time.Second)
	if !errors.Is(err, fifo.ErrNotExist) || errors.Is(err, fifo.ErrRetryExhausted) {
		t.Fatalf("expected immediate ErrNotExist, got %v", err)
	}
}

func TestOpenWriterRetrySucceedsOnceReaderAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.fifo")
	if _, err := fifo.Create(path, 0o600); err != nil {
		t.Fatalf("Create: %v", err)
	}

	readerDone := make(chan []byte, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		r, err := fifo.OpenReader(context.Background(), path)
		if err != nil {
			readerDone <- nil
			return
		}
		defer r.Close()
		data, _ := io.ReadAll(r)
		readerDone <- data
	}()

	w, err := fifo.OpenWriterRetry(context.Background(), path, 50, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("OpenWriterRetry: %v", err)
	}
	if _, err := w.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	select {
	case data := <-readerDone:
		if string(data) != "ping" {
			t.Fatalf("reader got %q", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reader never finished")
	}
}

func TestOpenReaderCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idle.fifo")
	if _, err := fifo.Create(path, 0o600); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := fifo.OpenReader(ctx, path)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("cancellation did not release the blocked open")
	}

	// The throwaway writer must be gone: nobody holds the fifo now.
	if _, err := fifo.OpenWriter(path); !errors.Is(err, fifo.ErrNoReader) {
		t.Fatalf("expected no reader after cancellation, got %v", err)
	}
}

func TestOpenReadNonblockDoesNotWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public.fifo")
	if _, err := fifo.Create(path, 0o666); err != nil {
		t.Fatalf("Create: %v", err)
	}
	r, err := fifo.OpenReadNonblock(path)
	if err != nil {
		t.Fatalf("OpenReadNonblock: %v", err)
	}
	defer r.Close()

	w, err := fifo.OpenWriter(path)
	if err != nil {
		t.Fatalf("writer should find the reader: %v", err)
	}
	defer w.Close()
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil || buf[0] != 'x' {
		t.Fatalf("read %q err %v", buf, err)
	}
}
