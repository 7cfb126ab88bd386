package chat

import (
	"errors"
	"fmt"
)

// ErrTransport matches every failure to reach the backend at all.
var ErrTransport = errors.New("chat backend unreachable")

// TransportError wraps a dial, timeout or cancellation failure.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connection error to %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error: %d", e.Code)
}
