package midiio

import (
	"errors"
	"sync"

	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"
)

// Out is a MIDI output endpoint.
type Out struct {
	api        contracts.API
	drv        driver.Driver
	logger     contracts.Logger
	clientName string

	mu       sync.Mutex
	port     driver.Out
	portName string
	virtual  bool
}

// NewOut creates an output endpoint bound to api.
func NewOut(api contracts.API, clientName string, log contracts.Logger) (*Out, error) {
	if clientName == "" {
		clientName = contracts.DefaultClientName
	}

	drv, selected, err := openDriver("NewOut", api, clientName, log)
	if err != nil {
		return nil, err
	}

	log.Info("MIDI output created",
		log.Field().String("api", selected.String()),
		log.Field().String("clientName", clientName))

	return &Out{api: selected, drv: drv, logger: log, clientName: clientName}, nil
}

// CurrentAPI returns the API actually in use.
func (o *Out) CurrentAPI() contracts.API { return o.api }

// OpenPort connects to the output port at portNumber. Opening while
// connected only logs a warning.
func (o *Out) OpenPort(portNumber uint, portName string) error {
	const op = "Out.OpenPort"
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.port != nil {
		o.logger.Warn("a valid connection already exists", o.logger.Field().String("port", o.portName))
		return nil
	}

	port, err := portAt(op, o.drv.Outs, portNumber, "output")
	if err != nil {
		return err
	}
	if err := port.Open(); err != nil {
		return errorf(KindDriverError, op, "error opening output port %d (%s): %v", portNumber, port.String(), err)
	}
	if portName == "" {
		portName = o.clientName + " Output"
	}
	o.port, o.portName, o.virtual = port, portName, false

	o.logger.Info("MIDI output port opened",
		o.logger.Field().String("port", port.String()),
		o.logger.Field().String("name", portName))
	return nil
}

// OpenVirtualPort creates a software output other applications can receive from.
func (o *Out) OpenVirtualPort(portName string) error {
	const op = "Out.OpenVirtualPort"
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.port != nil {
		o.logger.Warn("a valid connection already exists", o.logger.Field().String("port", o.portName))
		return nil
	}

	vd, ok := o.drv.(driver.VirtualDriver)
	if !ok {
		return errorf(KindInvalidUse, op, "virtual ports are not supported by the %s API", o.api.DisplayName())
	}
	if portName == "" {
		portName = o.clientName + " Output"
	}
	port, err := vd.OpenVirtualOut(portName)
	if err != nil {
		if errors.Is(err, driver.ErrUnavailable) {
			return errorf(KindInvalidUse, op, "virtual ports are not supported by the %s API", o.api.DisplayName())
		}
		return errorf(KindDriverError, op, "error creating virtual output %q: %v", portName, err)
	}
	o.port, o.portName, o.virtual = port, portName, true

	o.logger.Info("MIDI output port opened",
		o.logger.Field().String("name", portName),
		o.logger.Field().Bool("virtual", true))
	return nil
}

// ClosePort disconnects the current port. The endpoint can be opened again.
func (o *Out) ClosePort() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closePort()
}

func (o *Out) closePort() error {
	port, name, virtual := o.port, o.portName, o.virtual
	o.port, o.virtual = nil, false
	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		return errorf(KindDriverError, "Out.ClosePort", "error closing %s: %v", port.String(), err)
	}
	o.logger.Info("MIDI output port closed",
		o.logger.Field().String("name", name),
		o.logger.Field().Bool("virtual", virtual))
	return nil
}

// IsPortOpen reports whether a port or virtual port is connected.
func (o *Out) IsPortOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.port != nil
}

// PortCount returns the number of output ports currently visible.
func (o *Out) PortCount() uint {
	return portCount(o.drv.Outs, o.logger)
}

// PortName returns the name of the output port at portNumber.
func (o *Out) PortName(portNumber uint) (string, error) {
	return portNameAt("Out.PortName", o.drv.Outs, portNumber, "output")
}

// Ports returns a snapshot of every visible output port.
func (o *Out) Ports() ([]contracts.PortInfo, error) {
	return listPorts("Out.Ports", o.drv.Outs, "output")
}

// SendMessage transmits message as one MIDI message. It blocks until the
// backend accepted the bytes.
func (o *Out) SendMessage(message []byte) error {
	const op = "Out.SendMessage"
	if len(message) == 0 {
		return errorf(KindInvalidParameter, op, "message argument is empty")
	}
	if !driver.IsStatus(message[0]) {
		return errorf(KindInvalidParameter, op, "malformed MIDI data: first byte 0x%02X is not a status byte", message[0])
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.port == nil {
		return errorf(KindInvalidUse, op, "no open port")
	}
	if err := o.port.Send(message); err != nil {
		return errorf(KindDriverError, op, "error sending MIDI message: %v", err)
	}
	o.logger.Debug("MIDI message sent", o.logger.Field().String("message", midi.Message(message).String()))
	return nil
}

// Close closes the port and releases the backend.
func (o *Out) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	err := multierr.Append(o.closePort(), o.drv.Close())
	if err != nil {
		o.logger.Error("MIDI output shutdown failed", o.logger.Field().Error("error", err))
		return err
	}
	o.logger.Info("MIDI output destroyed", o.logger.Field().String("clientName", o.clientName))
	return nil
}
