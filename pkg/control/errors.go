package control

import (
	"errors"
	"fmt"
)

// ErrQuitChain ends one processing chain without marking the run as failed.
// It is raised by signal emission when the run is canceled and by processors
// that want to stop their own chain early.
var ErrQuitChain = errors.New("quit chain")

var (
	ErrCanceled     = errors.New("run canceled")
	ErrNoReturn     = errors.New("no return value is set")
	ErrReturnType   = errors.New("return value has a different type")
	ErrNoController = errors.New("no controller attached")
)

// QuitChain returns an ErrQuitChain carrying reason.
func QuitChain(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrQuitChain)
}

// IsQuitChain reports whether err is a cooperative chain quit.
func IsQuitChain(err error) bool {
	return errors.Is(err, ErrQuitChain)
}
