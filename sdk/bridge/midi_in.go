package bridge

import (
	"sync"

	"github.com/leandrodaf/midibridge/internal/midiio"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// InputCallback receives each message delivered to an input handle together
// with the user data given at registration. It runs on the handle's delivery
// goroutine.
type InputCallback func(deltaTime float64, message []byte, userData any)

type callbackRecord struct {
	fn       InputCallback
	userData any
}

type input struct {
	in *midiio.In

	mu       sync.Mutex
	callback *callbackRecord
}

func (b *Bridge) input(h Handle) (*input, error) {
	return lookup[*input](b.handles, h, kindInput)
}

func (b *Bridge) mustInput(op string, h Handle) *input {
	return mustLookup[*input](op, b.handles, h, kindInput)
}

// InNew creates an input endpoint. An empty clientName or a zero
// queueSizeLimit fall back to the bridge defaults. A failed result carries
// NullHandle.
func (b *Bridge) InNew(api contracts.API, clientName string, queueSizeLimit uint) Result[Handle] {
	return guard(b, "InNew", func() (Handle, error) {
		if queueSizeLimit == 0 {
			queueSizeLimit = b.options.QueueSizeLimit
		}
		in, err := midiio.NewIn(api, b.clientName(clientName), queueSizeLimit, b.logger)
		if err != nil {
			return NullHandle, err
		}
		return b.handles.add(kindInput, &input{in: in}), nil
	})
}

// InDelete destroys the endpoint, closing any open port first.
func (b *Bridge) InDelete(h Handle) {
	v, err := b.handles.remove(h, kindInput)
	if err != nil {
		violate("InDelete", err)
	}
	if err := v.(*input).in.Close(); err != nil {
		b.logger.Warn("MIDI input closed with errors", b.logger.Field().Error("error", err))
	}
}

func (b *Bridge) InOpenPort(h Handle, portNumber uint, portName string) Result[bool] {
	return guard(b, "InOpenPort", func() (bool, error) {
		in, err := b.input(h)
		if err != nil {
			return false, err
		}
		return true, in.in.OpenPort(portNumber, portName)
	})
}

func (b *Bridge) InOpenVirtualPort(h Handle, portName string) Result[bool] {
	return guard(b, "InOpenVirtualPort", func() (bool, error) {
		in, err := b.input(h)
		if err != nil {
			return false, err
		}
		return true, in.in.OpenVirtualPort(portName)
	})
}

func (b *Bridge) InClosePort(h Handle) Result[bool] {
	return guard(b, "InClosePort", func() (bool, error) {
		in, err := b.input(h)
		if err != nil {
			return false, err
		}
		return true, in.in.ClosePort()
	})
}

func (b *Bridge) InIsPortOpen(h Handle) bool {
	return b.mustInput("InIsPortOpen", h).in.IsPortOpen()
}

func (b *Bridge) InGetCurrentAPI(h Handle) contracts.API {
	return b.mustInput("InGetCurrentAPI", h).in.CurrentAPI()
}

func (b *Bridge) InGetPortCount(h Handle) uint {
	return b.mustInput("InGetPortCount", h).in.PortCount()
}

// InGetPortName fails when portNumber is not below InGetPortCount.
func (b *Bridge) InGetPortName(h Handle, portNumber uint) Result[string] {
	return guard(b, "InGetPortName", func() (string, error) {
		in, err := b.input(h)
		if err != nil {
			return "", err
		}
		return in.in.PortName(portNumber)
	})
}

func (b *Bridge) InListPorts(h Handle) Result[[]contracts.PortInfo] {
	return guard(b, "InListPorts", func() ([]contracts.PortInfo, error) {
		in, err := b.input(h)
		if err != nil {
			return nil, err
		}
		return in.in.Ports()
	})
}

// InIgnoreTypes selects which message categories are dropped on arrival.
func (b *Bridge) InIgnoreTypes(h Handle, sysex, timing, activeSense bool) {
	b.mustInput("InIgnoreTypes", h).in.IgnoreTypes(sysex, timing, activeSense)
}

// InGetMessage moves the oldest queued message into the buffer buf and
// returns its delta time. With nothing queued the buffer is left untouched
// and the delta is zero. It must not be used while a callback is set.
func (b *Bridge) InGetMessage(h Handle, buf Handle) Result[float64] {
	return guard(b, "InGetMessage", func() (float64, error) {
		in, err := b.input(h)
		if err != nil {
			return 0, err
		}
		dst, err := lookup[*byteBuffer](b.handles, buf, kindBuffer)
		if err != nil {
			return 0, err
		}
		return in.in.GetMessage(&dst.data)
	})
}

// InSetCallback switches h to asynchronous delivery. userData is passed to
// cb unchanged. A second registration is ignored with a warning.
func (b *Bridge) InSetCallback(h Handle, cb InputCallback, userData any) {
	in := b.mustInput("InSetCallback", h)

	in.mu.Lock()
	defer in.mu.Unlock()

	if cb == nil {
		in.in.SetCallback(nil)
		return
	}
	if in.callback != nil {
		in.in.SetCallback(func(float64, []byte) {})
		return
	}

	record := &callbackRecord{fn: cb, userData: userData}
	in.callback = record
	in.in.SetCallback(func(deltaTime float64, message []byte) {
		record.fn(deltaTime, message, record.userData)
	})
}

// InCancelCallback returns h to polling mode once the running callback
// returns. Calling it, or InDelete, from inside the callback deadlocks.
func (b *Bridge) InCancelCallback(h Handle) {
	in := b.mustInput("InCancelCallback", h)

	in.mu.Lock()
	defer in.mu.Unlock()

	in.in.CancelCallback()
	in.callback = nil
}
