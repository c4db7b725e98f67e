package adapter

import (
	"errors"
	"fmt"
	"time"
)

// Adapter is the transport capability the printer protocol engine runs on.
// Implementations move raw bytes to and from one connected device; they
// perform no retries and no protocol interpretation of their own.
type Adapter interface {
	// Claim reserves the device interface for exclusive use. It must be
	// called before Send or Recv and paired with Release.
	Claim() error

	// Release gives up the interface reservation taken by Claim.
	Release() error

	// Send writes all of data to the device, failing if the timeout
	// expires first.
	Send(data []byte, timeout time.Duration) error

	// Recv fills buf with up to len(buf) bytes from the device. It may
	// return fewer bytes than requested, without error, when the timeout
	// elapses or the device supplies less.
	Recv(buf []byte, timeout time.Duration) (int, error)

	// Close releases the device and all transport resources.
	Close() error
}

// ErrNotFound is returned when no matching printer is attached.
var ErrNotFound = errors.New("no PeriPage printer found")

// ErrClaim is returned when the printer interface cannot be reserved,
// typically because another process holds it.
var ErrClaim = errors.New("cannot claim printer interface")

// ValidationError reports a device whose USB topology does not match the
// PeriPage A6. It distinguishes "wrong or unsupported hardware" from a
// broken transport.
type ValidationError struct {
	Field string
	Want  any
	Got   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unsupported device: %s: expected %v, got %v", e.Field, e.Want, e.Got)
}
