package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	xdr "github.com/rasky/go-xdr/xdr2"
)

const (
	// FIFONameSize is the fixed width of each FIFO path field, NUL included.
	FIFONameSize = 256
	// LocaleSize is the fixed width of the locale field, NUL included.
	LocaleSize = 64
	// RequestSize is the encoded size of a ConnectionRequest. It stays below
	// PIPE_BUF so writes from concurrent clients never interleave.
	RequestSize = 2*FIFONameSize + LocaleSize
)

// ErrMalformedRequest marks a connection request that cannot be served.
var ErrMalformedRequest = errors.New("malformed connection request")

// ConnectionRequest is the record a client writes to the public FIFO to
// announce its private FIFO pair. Fields are NUL-padded strings.
type ConnectionRequest struct {
	WriteFIFO [FIFONameSize]byte
	ReadFIFO  [FIFONameSize]byte
	Locale    [LocaleSize]byte
}

// NewRequest builds a request from the client's FIFO paths and locale.
func NewRequest(writeFIFO, readFIFO, locale string) (ConnectionRequest, error) {
	var req ConnectionRequest
	if err := putField(req.WriteFIFO[:], writeFIFO, "write fifo"); err != nil {
		return ConnectionRequest{}, err
	}
	if err := putField(req.ReadFIFO[:], readFIFO, "read fifo"); err != nil {
		return ConnectionRequest{}, err
	}
	if err := putField(req.Locale[:], locale, "locale"); err != nil {
		return ConnectionRequest{}, err
	}
	return req, nil
}

func putField(dst []byte, value, name string) error {
	if strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("%s contains NUL byte", name)
	}
	if len(value) >= len(dst) {
		return fmt.Errorf("%s %q exceeds %d bytes", name, value, len(dst)-1)
	}
	copy(dst, value)
	return nil
}

// WritePath returns the FIFO the client writes chunks into.
func (r ConnectionRequest) WritePath() string { return cString(r.WriteFIFO[:]) }

// ReadPath returns the FIFO the client reads replies from.
func (r ConnectionRequest) ReadPath() string { return cString(r.ReadFIFO[:]) }

// LocaleName returns the requested locale, possibly empty.
func (r ConnectionRequest) LocaleName() string { return cString(r.Locale[:]) }

func cString(field []byte) string {
	if idx := bytes.IndexByte(field, 0); idx >= 0 {
		return string(field[:idx])
	}
	return string(field)
}

// Encode serializes the request into exactly RequestSize bytes.
func (r ConnectionRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(RequestSize)
	if _, err := xdr.Marshal(&buf, &r); err != nil {
		return nil, fmt.Errorf("encode connection request: %w", err)
	}
	if buf.Len() != RequestSize {
		return nil, fmt.Errorf("encode connection request: got %d bytes, want %d", buf.Len(), RequestSize)
	}
	return buf.Bytes(), nil
}

// Decode parses one encoded request. It does not validate field contents.
func Decode(data []byte) (ConnectionRequest, error) {
	if len(data) != RequestSize {
		return ConnectionRequest{}, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedRequest, len(data), RequestSize)
	}
	var req ConnectionRequest
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &req); err != nil {
		return ConnectionRequest{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return req, nil
}

// ReadRequest performs a single read of one request from r. Clients write
// whole records atomically, so a read returning any other length is a stray
// fragment; it is reported as ErrMalformedRequest and dropped, which keeps
// the stream aligned for the next record. io.EOF is returned only when
// nothing was read.
func ReadRequest(r io.Reader) (ConnectionRequest, error) {
	buf := make([]byte, RequestSize)
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil {
			err = io.ErrNoProgress
		}
		return ConnectionRequest{}, err
	}
	if n != RequestSize {
		return ConnectionRequest{}, fmt.Errorf("%w: short record of %d bytes", ErrMalformedRequest, n)
	}
	return Decode(buf)
}

// Validate checks that both FIFO names are NUL-terminated, absolute, clean
// paths and, when dir is non-empty, that they live directly inside dir.
func (r ConnectionRequest) Validate(dir string) error {
	if err := validatePathField(r.WriteFIFO[:], "write fifo", dir); err != nil {
		return err
	}
	if err := validatePathField(r.ReadFIFO[:], "read fifo", dir); err != nil {
		return err
	}
	if bytes.IndexByte(r.Locale[:], 0) < 0 {
		return fmt.Errorf("%w: locale is not NUL-terminated", ErrMalformedRequest)
	}
	if r.WritePath() == r.ReadPath() {
		return fmt.Errorf("%w: write and read fifo are the same path", ErrMalformedRequest)
	}
	return nil
}

func validatePathField(field []byte, name, dir string) error {
	if bytes.IndexByte(field, 0) < 0 {
		return fmt.Errorf("%w: %s is not NUL-terminated", ErrMalformedRequest, name)
	}
	path := cString(field)
	if path == "" {
		return fmt.Errorf("%w: %s is empty", ErrMalformedRequest, name)
	}
	if !filepath.IsAbs(path) || filepath.Clean(path) != path {
		return fmt.Errorf("%w: %s %q is not an absolute clean path", ErrMalformedRequest, name, path)
	}
	if dir != "" && filepath.Dir(path) != filepath.Clean(dir) {
		return fmt.Errorf("%w: %s %q is outside %s", ErrMalformedRequest, name, path, dir)
	}
	return nil
}
