package adapter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// FileAdapter talks to the printer through a raw byte-stream device node
// (for example a usblp node) instead of libusb. It is also the transport
// of choice for tests and for piping captured traffic through the engine.
type FileAdapter struct {
	file *os.File
}

// OpenFile opens a device node or file as a printer transport.
func OpenFile(path string) (*FileAdapter, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open device node: %w", err)
	}
	return &FileAdapter{file: f}, nil
}

// NewFileAdapter wraps an already-open file.
func NewFileAdapter(f *os.File) *FileAdapter {
	return &FileAdapter{file: f}
}

// Claim is a no-op; exclusive access to a file node is the kernel's
// problem, not ours.
func (a *FileAdapter) Claim() error { return nil }

// Release is a no-op.
func (a *FileAdapter) Release() error { return nil }

// Send writes the whole buffer. The deadline is applied when the
// underlying file supports one (pipes, character devices); plain files
// do not, and are written without it.
func (a *FileAdapter) Send(data []byte, timeout time.Duration) error {
	if err := a.file.SetWriteDeadline(time.Now().Add(timeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return fmt.Errorf("cannot set write deadline: %w", err)
	}
	if _, err := a.file.Write(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Recv reads until buf is full or the stream reports EOF, returning the
// short count without error in the EOF case.
func (a *FileAdapter) Recv(buf []byte, timeout time.Duration) (int, error) {
	if err := a.file.SetReadDeadline(time.Now().Add(timeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return 0, fmt.Errorf("cannot set read deadline: %w", err)
	}

	read := 0
	for read < len(buf) {
		n, err := a.file.Read(buf[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
				return read, nil
			}
			return read, fmt.Errorf("read failed: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return read, nil
}

// Close closes the underlying file.
func (a *FileAdapter) Close() error {
	return a.file.Close()
}
