package bridge

import (
	"github.com/leandrodaf/midibridge/internal/midiio"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

type output = midiio.Out

func (b *Bridge) output(h Handle) (*output, error) {
	return lookup[*output](b.handles, h, kindOutput)
}

func (b *Bridge) mustOutput(op string, h Handle) *output {
	return mustLookup[*output](op, b.handles, h, kindOutput)
}

// OutNew creates an output endpoint. A failed result carries NullHandle.
func (b *Bridge) OutNew(api contracts.API, clientName string) Result[Handle] {
	return guard(b, "OutNew", func() (Handle, error) {
		out, err := midiio.NewOut(api, b.clientName(clientName), b.logger)
		if err != nil {
			return NullHandle, err
		}
		return b.handles.add(kindOutput, out), nil
	})
}

// OutDelete destroys the endpoint, closing any open port first.
func (b *Bridge) OutDelete(h Handle) {
	v, err := b.handles.remove(h, kindOutput)
	if err != nil {
		violate("OutDelete", err)
	}
	if err := v.(*output).Close(); err != nil {
		b.logger.Warn("MIDI output closed with errors", b.logger.Field().Error("error", err))
	}
}

func (b *Bridge) OutOpenPort(h Handle, portNumber uint, portName string) Result[bool] {
	return guard(b, "OutOpenPort", func() (bool, error) {
		out, err := b.output(h)
		if err != nil {
			return false, err
		}
		return true, out.OpenPort(portNumber, portName)
	})
}

func (b *Bridge) OutOpenVirtualPort(h Handle, portName string) Result[bool] {
	return guard(b, "OutOpenVirtualPort", func() (bool, error) {
		out, err := b.output(h)
		if err != nil {
			return false, err
		}
		return true, out.OpenVirtualPort(portName)
	})
}

func (b *Bridge) OutClosePort(h Handle) Result[bool] {
	return guard(b, "OutClosePort", func() (bool, error) {
		out, err := b.output(h)
		if err != nil {
			return false, err
		}
		return true, out.ClosePort()
	})
}

func (b *Bridge) OutIsPortOpen(h Handle) bool {
	return b.mustOutput("OutIsPortOpen", h).IsPortOpen()
}

func (b *Bridge) OutGetCurrentAPI(h Handle) contracts.API {
	return b.mustOutput("OutGetCurrentAPI", h).CurrentAPI()
}

func (b *Bridge) OutGetPortCount(h Handle) uint {
	return b.mustOutput("OutGetPortCount", h).PortCount()
}

func (b *Bridge) OutGetPortName(h Handle, portNumber uint) Result[string] {
	return guard(b, "OutGetPortName", func() (string, error) {
		out, err := b.output(h)
		if err != nil {
			return "", err
		}
		return out.PortName(portNumber)
	})
}

func (b *Bridge) OutListPorts(h Handle) Result[[]contracts.PortInfo] {
	return guard(b, "OutListPorts", func() ([]contracts.PortInfo, error) {
		out, err := b.output(h)
		if err != nil {
			return nil, err
		}
		return out.Ports()
	})
}

// OutSendMessage transmits the whole content of buf as one message.
func (b *Bridge) OutSendMessage(h Handle, buf Handle) Result[bool] {
	return guard(b, "OutSendMessage", func() (bool, error) {
		out, err := b.output(h)
		if err != nil {
			return false, err
		}
		src, err := lookup[*byteBuffer](b.handles, buf, kindBuffer)
		if err != nil {
			return false, err
		}
		return true, out.SendMessage(src.data)
	})
}
