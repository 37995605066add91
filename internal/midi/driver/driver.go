// Package driver defines the port and driver interfaces every MIDI backend implements.
package driver

import "errors"

// ErrUnavailable is returned by backends that are not compiled for the running platform.
var ErrUnavailable = errors.New("MIDI backend is not available on this platform")

// ErrPortClosed is returned when sending on or listening to a port that is not open.
var ErrPortClosed = errors.New("MIDI port is closed")

// Port is the part shared by input and output ports.
type Port interface {
	Open() error
	Close() error
	IsOpen() bool
	String() string
}

// In is a MIDI source. The listener receives complete messages, one per call,
// on a goroutine owned by the backend. The slice is only valid during the call.
type In interface {
	Port
	Listen(onMsg func(data []byte)) (stop func(), err error)
}

// Out is a MIDI destination.
type Out interface {
	Port
	Send(data []byte) error
}

// Driver enumerates the ports of one backend.
type Driver interface {
	Ins() ([]In, error)
	Outs() ([]Out, error)
	String() string
	Close() error
}

// VirtualDriver is implemented by drivers able to create software-only ports
// that other applications can connect to. Returned ports are already open.
type VirtualDriver interface {
	OpenVirtualIn(name string) (In, error)
	OpenVirtualOut(name string) (Out, error)
}
