package processor

import (
	"errors"
	"fmt"
)

var (
	ErrSignalNotFound    = errors.New("signal not found")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrTypeMismatch      = errors.New("signal and slot argument types differ")
	ErrNilPeer           = errors.New("nil signal or slot")
	ErrProcessorNotFound = errors.New("processor not found")
	ErrNotPrimary        = errors.New("not a primary processor")
	ErrBadAddress        = errors.New("malformed signal/slot address")
	ErrUnknownType       = errors.New("unknown processor type")
	ErrDuplicateName     = errors.New("name already registered")
)

// ConnectionError reports a failed signal-to-slot connection. Err holds the
// underlying cause, which may itself be a ConnectionError from a lower layer.
type ConnectionError struct {
	Signal string
	Slot   string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect signal %q to slot %q: %v", e.Signal, e.Slot, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
