package printer

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks caller mistakes caught before any I/O: bad
// widths, oversized heights, out-of-range levels, mis-sized buffers.
var ErrInvalidArgument = errors.New("invalid argument")

// ResponseError reports a query reply whose shape does not match what
// the device is known to send.
type ResponseError struct {
	Op     string
	Detail string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.Op, e.Detail)
}
