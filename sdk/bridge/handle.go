package bridge

import (
	"errors"
	"fmt"
	"sync"
)

// Handle is an opaque reference to a bridge-owned object. The zero Handle is
// never issued and stands for "no object".
type Handle uintptr

// NullHandle is returned in place of a handle by failed constructors.
const NullHandle Handle = 0

type handleKind uint8

const (
	kindBuffer handleKind = iota + 1
	kindInput
	kindOutput
)

func (k handleKind) String() string {
	switch k {
	case kindBuffer:
		return "byte buffer"
	case kindInput:
		return "MIDI input"
	case kindOutput:
		return "MIDI output"
	}
	return "unknown"
}

var (
	// ErrInvalidHandle reports a null, unknown or already deleted handle.
	ErrInvalidHandle = errors.New("bridge: invalid handle")
	// ErrWrongHandle reports a live handle of another kind, e.g. an output
	// handle passed to an input operation.
	ErrWrongHandle = errors.New("bridge: handle of the wrong kind")
)

// ContractViolation is the panic value raised by infallible operations when
// the caller breaks their contract: bad handles, out-of-range indices,
// popping an empty buffer.
type ContractViolation struct {
	Op  string
	Err error
}

func (c *ContractViolation) Error() string {
	return fmt.Sprintf("bridge.%s: contract violation: %v", c.Op, c.Err)
}

func (c *ContractViolation) Unwrap() error { return c.Err }

func violate(op string, err error) {
	panic(&ContractViolation{Op: op, Err: err})
}

type entry struct {
	kind  handleKind
	value any
}

// registry issues handles and tags each one with its kind so misuse is
// detected instead of reinterpreting memory.
type registry struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[Handle]entry)}
}

func (r *registry) add(kind handleKind, v any) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries[r.next] = entry{kind: kind, value: v}
	return r.next
}

func (r *registry) check(h Handle, kind handleKind, e entry, ok bool) error {
	if !ok {
		return fmt.Errorf("%w: %#x", ErrInvalidHandle, uintptr(h))
	}
	if e.kind != kind {
		return fmt.Errorf("%w: %#x is a %s handle, want %s", ErrWrongHandle, uintptr(h), e.kind, kind)
	}
	return nil
}

func (r *registry) get(h Handle, kind handleKind) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[h]
	r.mu.RUnlock()
	if err := r.check(h, kind, e, ok); err != nil {
		return nil, err
	}
	return e.value, nil
}

func (r *registry) remove(h Handle, kind handleKind) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if err := r.check(h, kind, e, ok); err != nil {
		return nil, err
	}
	delete(r.entries, h)
	return e.value, nil
}

// drain empties the registry and returns what it held.
func (r *registry) drain() map[Handle]entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.entries
	r.entries = make(map[Handle]entry)
	return entries
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func lookup[T any](r *registry, h Handle, kind handleKind) (T, error) {
	v, err := r.get(h, kind)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// mustLookup is lookup for infallible operations.
func mustLookup[T any](op string, r *registry, h Handle, kind handleKind) T {
	v, err := lookup[T](r, h, kind)
	if err != nil {
		violate(op, err)
	}
	return v
}
