package midiio

import (
	"errors"
	"fmt"
)

// Kind classifies failures the same way for every backend.
type Kind int

const (
	KindWarning Kind = iota
	KindInvalidParameter
	KindNoDevicesFound
	KindInvalidDevice
	KindInvalidUse
	KindDriverError
	KindSystemError
)

// Sentinel errors matched by errors.Is against an *Error of the same Kind.
var (
	ErrWarning          = errors.New("warning")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNoDevicesFound   = errors.New("no devices found")
	ErrInvalidDevice    = errors.New("invalid device")
	ErrInvalidUse       = errors.New("invalid use")
	ErrDriver           = errors.New("driver error")
	ErrSystem           = errors.New("system error")
)

var kindSentinels = [...]error{
	KindWarning:          ErrWarning,
	KindInvalidParameter: ErrInvalidParameter,
	KindNoDevicesFound:   ErrNoDevicesFound,
	KindInvalidDevice:    ErrInvalidDevice,
	KindInvalidUse:       ErrInvalidUse,
	KindDriverError:      ErrDriver,
	KindSystemError:      ErrSystem,
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindSentinels) {
		return "unknown"
	}
	return kindSentinels[k].Error()
}

// Error is returned by every fallible operation of In and Out.
type Error struct {
	Kind Kind   // Failure class
	Op   string // Operation that failed
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("midiio.%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's Kind.
func (e *Error) Is(target error) bool {
	return int(e.Kind) < len(kindSentinels) && kindSentinels[e.Kind] == target
}

func errorf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
