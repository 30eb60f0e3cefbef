// Package data holds the Frame passed along a processing chain and the cut
// bookkeeping attached to it.
package data

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrNotPresent is returned by Peek when a frame has no payload of the
// requested type.
var ErrNotPresent = errors.New("payload not present")

// Frame stores at most one payload per concrete type. Payloads are created on
// first access and live as long as the frame does.
//
// A Frame is not safe for concurrent mutation.
type Frame struct {
	payloads map[reflect.Type]any

	// Counter is a per-chain sequence number assigned by the frame's source.
	Counter uint64
	// LastData marks the final frame of a chain.
	LastData bool

	cuts CutStatus
}

// Handle is the shared reference to a Frame passed between slots.
type Handle = *Frame

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{payloads: make(map[reflect.Type]any)}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Get returns the T payload of f, creating a zero value if f has none.
// Repeated calls return the same pointer until Set or Remove replaces it.
func Get[T any](f *Frame) *T {
	key := typeOf[T]()
	if p, ok := f.payloads[key]; ok {
		return p.(*T)
	}
	p := new(T)
	f.init()
	f.payloads[key] = p
	return p
}

// Peek returns the T payload of f without creating it.
func Peek[T any](f *Frame) (*T, error) {
	key := typeOf[T]()
	p, ok := f.payloads[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotPresent, key)
	}
	return p.(*T), nil
}

// Has reports whether f holds a T payload.
func Has[T any](f *Frame) bool {
	_, ok := f.payloads[typeOf[T]()]
	return ok
}

// Set stores v as the T payload of f, replacing any existing one, and returns
// the stored pointer.
func Set[T any](f *Frame, v T) *T {
	p := new(T)
	*p = v
	f.init()
	f.payloads[typeOf[T]()] = p
	return p
}

// Remove drops the T payload of f. Removing an absent payload is a no-op.
func Remove[T any](f *Frame) {
	delete(f.payloads, typeOf[T]())
}

// Empty reports whether f holds no payloads.
func (f *Frame) Empty() bool { return len(f.payloads) == 0 }

// Len returns the number of payloads.
func (f *Frame) Len() int { return len(f.payloads) }

// Types returns the payload type names, sorted.
func (f *Frame) Types() []string {
	names := make([]string, 0, len(f.payloads))
	for t := range f.payloads {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return names
}

// Cuts returns the frame's cut status.
func (f *Frame) Cuts() *CutStatus { return &f.cuts }

func (f *Frame) init() {
	if f.payloads == nil {
		f.payloads = make(map[reflect.Type]any)
	}
}
