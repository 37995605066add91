package midiio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"
)

// Callback receives one message and the seconds elapsed since the previous
// one. It runs on the endpoint's delivery goroutine, never concurrently with
// itself. The slice belongs to the callback.
type Callback func(deltaTime float64, message []byte)

// In is a MIDI input endpoint. Incoming messages are either queued for
// GetMessage or handed to a Callback; the two modes are mutually exclusive.
type In struct {
	api        contracts.API
	drv        driver.Driver
	logger     contracts.Logger
	clientName string
	queueLimit uint

	// opMu serializes port lifecycle operations.
	opMu sync.Mutex

	// mu guards the receive path state below.
	mu           sync.Mutex
	port         driver.In
	stop         func()
	portName     string
	virtual      bool
	connected    bool
	gen          uint64
	ignore       ignoreFlags
	queue        *messageQueue
	lastTime     time.Time
	firstMessage bool
	deliveries   chan message
	deliveryDone chan struct{}

	refusedPolls atomic.Int64
}

// NewIn creates an input endpoint bound to api. A zero queueSizeLimit selects
// contracts.DefaultQueueSizeLimit. Sysex, timing and active sensing messages
// are ignored until IgnoreTypes says otherwise.
func NewIn(api contracts.API, clientName string, queueSizeLimit uint, log contracts.Logger) (*In, error) {
	if clientName == "" {
		clientName = contracts.DefaultClientName
	}
	if queueSizeLimit == 0 {
		queueSizeLimit = contracts.DefaultQueueSizeLimit
	}

	drv, selected, err := openDriver("NewIn", api, clientName, log)
	if err != nil {
		return nil, err
	}

	log.Info("MIDI input created",
		log.Field().String("api", selected.String()),
		log.Field().String("clientName", clientName),
		log.Field().Int("queueSizeLimit", int(queueSizeLimit)))

	return &In{
		api:        selected,
		drv:        drv,
		logger:     log,
		clientName: clientName,
		queueLimit: queueSizeLimit,
		ignore:     ignoreFlags{sysex: true, timing: true, activeSense: true},
		queue:      newMessageQueue(queueSizeLimit),
	}, nil
}

// CurrentAPI returns the API actually in use, which differs from the
// requested one when APIUnspecified was passed.
func (in *In) CurrentAPI() contracts.API { return in.api }

// OpenPort connects to the input port at portNumber. portName labels the
// connection in logs. Opening while connected only logs a warning.
func (in *In) OpenPort(portNumber uint, portName string) error {
	const op = "In.OpenPort"
	in.opMu.Lock()
	defer in.opMu.Unlock()

	if in.isConnected() {
		in.logger.Warn("a valid connection already exists", in.logger.Field().String("port", in.currentPortName()))
		return nil
	}

	port, err := portAt(op, in.drv.Ins, portNumber, "input")
	if err != nil {
		return err
	}
	if err := port.Open(); err != nil {
		return errorf(KindDriverError, op, "error opening input port %d (%s): %v", portNumber, port.String(), err)
	}
	if portName == "" {
		portName = in.clientName + " Input"
	}
	return in.attach(op, port, portName, false)
}

// OpenVirtualPort creates a software input other applications can send to.
func (in *In) OpenVirtualPort(portName string) error {
	const op = "In.OpenVirtualPort"
	in.opMu.Lock()
	defer in.opMu.Unlock()

	if in.isConnected() {
		in.logger.Warn("a valid connection already exists", in.logger.Field().String("port", in.currentPortName()))
		return nil
	}

	vd, ok := in.drv.(driver.VirtualDriver)
	if !ok {
		return errorf(KindInvalidUse, op, "virtual ports are not supported by the %s API", in.api.DisplayName())
	}
	if portName == "" {
		portName = in.clientName + " Input"
	}
	port, err := vd.OpenVirtualIn(portName)
	if err != nil {
		if errors.Is(err, driver.ErrUnavailable) {
			return errorf(KindInvalidUse, op, "virtual ports are not supported by the %s API", in.api.DisplayName())
		}
		return errorf(KindDriverError, op, "error creating virtual input %q: %v", portName, err)
	}
	return in.attach(op, port, portName, true)
}

func (in *In) attach(op string, port driver.In, name string, virtual bool) error {
	in.mu.Lock()
	in.gen++
	gen := in.gen
	in.port, in.portName, in.virtual, in.connected = port, name, virtual, true
	in.firstMessage = true
	in.mu.Unlock()

	stop, err := port.Listen(func(data []byte) { in.onMessage(gen, data) })
	if err != nil {
		in.mu.Lock()
		in.port, in.connected = nil, false
		in.mu.Unlock()
		_ = port.Close()
		return errorf(KindDriverError, op, "error listening on %s: %v", port.String(), err)
	}

	in.mu.Lock()
	in.stop = stop
	in.mu.Unlock()

	in.logger.Info("MIDI input port opened",
		in.logger.Field().String("port", port.String()),
		in.logger.Field().String("name", name),
		in.logger.Field().Bool("virtual", virtual))
	return nil
}

// ClosePort disconnects the current port. The endpoint can be opened again.
// Queued messages are kept.
func (in *In) ClosePort() error {
	in.opMu.Lock()
	defer in.opMu.Unlock()
	return in.closePort()
}

func (in *In) closePort() error {
	in.mu.Lock()
	port, stop, name, virtual := in.port, in.stop, in.portName, in.virtual
	in.port, in.stop, in.connected, in.virtual = nil, nil, false, false
	in.mu.Unlock()

	if port == nil {
		return nil
	}
	if stop != nil {
		stop()
	}
	if err := port.Close(); err != nil {
		return errorf(KindDriverError, "In.ClosePort", "error closing %s: %v", port.String(), err)
	}
	in.logger.Info("MIDI input port closed",
		in.logger.Field().String("name", name),
		in.logger.Field().Bool("virtual", virtual))
	return nil
}

// IsPortOpen reports whether a port or virtual port is connected.
func (in *In) IsPortOpen() bool { return in.isConnected() }

func (in *In) isConnected() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.connected
}

func (in *In) currentPortName() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.portName
}

// PortCount returns the number of input ports currently visible.
func (in *In) PortCount() uint {
	return portCount(in.drv.Ins, in.logger)
}

// PortName returns the name of the input port at portNumber.
func (in *In) PortName(portNumber uint) (string, error) {
	return portNameAt("In.PortName", in.drv.Ins, portNumber, "input")
}

// Ports returns a snapshot of every visible input port.
func (in *In) Ports() ([]contracts.PortInfo, error) {
	return listPorts("In.Ports", in.drv.Ins, "input")
}

// IgnoreTypes selects the categories dropped before queueing or delivery.
func (in *In) IgnoreTypes(sysex, timing, activeSense bool) {
	in.mu.Lock()
	in.ignore = ignoreFlags{sysex: sysex, timing: timing, activeSense: activeSense}
	in.mu.Unlock()

	in.logger.Debug("MIDI input filter changed",
		in.logger.Field().Bool("sysex", sysex),
		in.logger.Field().Bool("timing", timing),
		in.logger.Field().Bool("activeSense", activeSense))
}

// GetMessage polls the queue. When a message is pending it replaces the
// contents of *message and its delta time is returned. Otherwise *message is
// left untouched and 0 is returned, which callers must not confuse with a
// message that arrived with a zero delta. Polling while a callback is set is
// refused with a warning.
func (in *In) GetMessage(message *[]byte) (float64, error) {
	if message == nil {
		return 0, errorf(KindInvalidParameter, "In.GetMessage", "message argument is nil")
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.deliveries != nil {
		in.refusedPolls.Add(1)
		in.logger.Warn("GetMessage called while a user callback is set for this port")
		return 0, nil
	}

	msg, ok := in.queue.pop()
	if !ok {
		return 0, nil
	}
	*message = append((*message)[:0], msg.data...)
	return msg.delta, nil
}

// Pending returns the number of queued messages.
func (in *In) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.queue.len()
}

// RefusedPolls counts GetMessage calls rejected because a callback was set.
func (in *In) RefusedPolls() int64 { return in.refusedPolls.Load() }

// SetCallback switches the endpoint to asynchronous delivery. A dedicated
// goroutine invokes cb in arrival order. Setting a second callback, or a nil
// one, only logs a warning.
func (in *In) SetCallback(cb Callback) {
	if cb == nil {
		in.logger.Warn("callback function value is invalid")
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.deliveries != nil {
		in.logger.Warn("a callback function is already set")
		return
	}

	deliveries := make(chan message, in.queueLimit)
	done := make(chan struct{})
	in.deliveries, in.deliveryDone = deliveries, done

	go func() {
		defer close(done)
		for msg := range deliveries {
			cb(msg.delta, msg.data)
		}
	}()
	in.logger.Debug("MIDI input callback set")
}

// CancelCallback returns to polling mode once in-flight deliveries finish.
// It must not be called from inside the callback.
func (in *In) CancelCallback() {
	if !in.cancelCallback() {
		in.logger.Warn("no callback function was set")
	}
}

func (in *In) cancelCallback() bool {
	in.mu.Lock()
	deliveries, done := in.deliveries, in.deliveryDone
	in.deliveries, in.deliveryDone = nil, nil
	in.mu.Unlock()

	if deliveries == nil {
		return false
	}
	close(deliveries)
	<-done
	in.logger.Debug("MIDI input callback cancelled")
	return true
}

func (in *In) onMessage(gen uint64, data []byte) {
	now := time.Now()

	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.connected || gen != in.gen || in.ignore.drops(data) {
		return
	}

	msg := message{data: append([]byte(nil), data...)}
	if in.firstMessage {
		in.firstMessage = false
	} else {
		msg.delta = now.Sub(in.lastTime).Seconds()
	}
	in.lastTime = now

	in.logger.Debug("MIDI message received",
		in.logger.Field().String("message", midi.Message(msg.data).String()),
		in.logger.Field().Float64("delta", msg.delta))

	if in.deliveries != nil {
		select {
		case in.deliveries <- msg:
		default:
			in.logger.Warn("callback delivery backlog full; message dropped")
		}
		return
	}
	if !in.queue.push(msg) {
		in.logger.Warn("message queue limit reached; message dropped",
			in.logger.Field().Int("limit", int(in.queueLimit)))
	}
}

// Close cancels any callback, closes the port and releases the backend.
func (in *In) Close() error {
	in.opMu.Lock()
	defer in.opMu.Unlock()

	in.cancelCallback()
	err := multierr.Append(in.closePort(), in.drv.Close())
	if err != nil {
		in.logger.Error("MIDI input shutdown failed", in.logger.Field().Error("error", err))
		return err
	}
	in.logger.Info("MIDI input destroyed", in.logger.Field().String("clientName", in.clientName))
	return nil
}
