package bridge

import (
	"errors"
	"fmt"
)

// ErrPanic wraps a panic raised by the MIDI layer during a fallible operation.
var ErrPanic = errors.New("bridge: recovered panic")

// Result is the envelope returned by every fallible operation. Value is only
// meaningful when OK is true; otherwise it holds the zero value of T and
// Message describes the failure. Message is an owned copy.
type Result[T any] struct {
	OK      bool
	Value   T
	Message string
}

// Unwrap converts the envelope back into Go's value/error pair.
func (r Result[T]) Unwrap() (T, error) {
	if !r.OK {
		return r.Value, errors.New(r.Message)
	}
	return r.Value, nil
}

func succeed[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

func failed[T any](err error) Result[T] {
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	return Result[T]{Message: msg}
}

// guard runs fn and translates its outcome, including panics, into exactly
// one Result.
func guard[T any](b *Bridge, op string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w in %s: %v", ErrPanic, op, r)
			b.logger.Error("bridge operation panicked",
				b.logger.Field().String("op", op),
				b.logger.Field().Error("error", err))
			res = failed[T](err)
		}
	}()

	v, err := fn()
	if err != nil {
		b.logger.Error("bridge operation failed",
			b.logger.Field().String("op", op),
			b.logger.Field().Error("error", err))
		return failed[T](err)
	}
	return succeed(v)
}
