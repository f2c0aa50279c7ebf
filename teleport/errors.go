package teleport

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Dispatcher.Enqueue when its queue is full.
var ErrBusy = errors.New("teleport: dispatcher queue is full")

// ErrClosed is returned by Dispatcher.Enqueue after Close.
var ErrClosed = errors.New("teleport: dispatcher is closed")

type ErrSerialization struct {
	Cause error
}

func (e ErrSerialization) Error() string {
	return fmt.Sprintf("teleport: serialization: %v", e.Cause)
}

func (e ErrSerialization) Unwrap() error {
	return e.Cause
}

type ErrEncryption struct {
	Cause error
}

func (e ErrEncryption) Error() string {
	return fmt.Sprintf("teleport: encryption: %v", e.Cause)
}

func (e ErrEncryption) Unwrap() error {
	return e.Cause
}

// ErrNetwork is returned when the transport fails to deliver a payload.
type ErrNetwork struct {
	Host  string
	Cause error
}

func (e ErrNetwork) Error() string {
	return fmt.Sprintf("teleport: delivering to %q: %v", e.Host, e.Cause)
}

func (e ErrNetwork) Unwrap() error {
	return e.Cause
}

type ErrHostNotFound struct {
	Host string
}

func (e ErrHostNotFound) Error() string {
	return fmt.Sprintf("teleport: host not found: %q", e.Host)
}

func IsHostNotFound(err error) bool {
	return errors.As(err, &ErrHostNotFound{})
}
