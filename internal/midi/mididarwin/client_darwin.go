//go:build darwin
// +build darwin

// Package mididarwin implements the CoreMIDI backend on macOS.
package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Available reports whether the backend is compiled in.
const Available = true

// Error definitions for CoreMIDI connection issues.
var (
	ErrCreateInputPort  = errors.New("error creating input port")
	ErrCreateOutputPort = errors.New("error creating output port")
	ErrConnection       = errors.New("error connecting to MIDI source")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Driver owns one CoreMIDI client. Sources are exposed as inputs and
// destinations as outputs. go-coremidi cannot dispose ports, so each source
// gets one input port for the life of the driver and all destinations share
// one output port; reopening only connects again.
type Driver struct {
	logger contracts.Logger
	client coremidi.Client
	name   string

	mu         sync.Mutex
	routes     map[string]*inputRoute
	outputPort *coremidi.OutputPort
}

// inputRoute is the input port created for one source. Its read procedure
// forwards to whichever sourcePort is currently connected.
type inputRoute struct {
	port   coremidi.InputPort
	target atomic.Pointer[listener]
}

func (d *Driver) route(source coremidi.Source) (*inputRoute, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := source.Name()
	if r, ok := d.routes[key]; ok {
		return r, nil
	}
	r := &inputRoute{}
	port, err := coremidi.NewInputPort(d.client, d.name+" Input", func(_ coremidi.Source, packet coremidi.Packet) {
		if l := r.target.Load(); l != nil {
			l.dispatch(packet.Data)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	r.port = port
	if d.routes == nil {
		d.routes = make(map[string]*inputRoute)
	}
	d.routes[key] = r
	return r, nil
}

func (d *Driver) output() (*coremidi.OutputPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.outputPort != nil {
		return d.outputPort, nil
	}
	port, err := coremidi.NewOutputPort(d.client, d.name+" Output")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	d.outputPort = &port
	return d.outputPort, nil
}

// NewDriver creates a CoreMIDI client named clientName.
func NewDriver(clientName string, log contracts.Logger) (driver.Driver, error) {
	client, err := coremidi.NewClient(clientName)
	if err != nil {
		return nil, fmt.Errorf("coremidi.NewClient: %w", err)
	}
	log.Info("CoreMIDI client successfully created", log.Field().String("clientName", clientName))
	return &Driver{logger: log, client: client, name: clientName}, nil
}

func (d *Driver) Ins() ([]driver.In, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	ins := make([]driver.In, len(sources))
	for i, source := range sources {
		ins[i] = &sourcePort{drv: d, source: source}
	}
	return ins, nil
}

func (d *Driver) Outs() ([]driver.Out, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	outs := make([]driver.Out, len(destinations))
	for i, destination := range destinations {
		outs[i] = &destinationPort{drv: d, destination: destination}
	}
	return outs, nil
}

func (d *Driver) String() string { return "CoreMIDI" }

// Close is a no-op; CoreMIDI releases the client when the process exits.
func (d *Driver) Close() error { return nil }

// OpenVirtualIn publishes a destination other applications can send to.
func (d *Driver) OpenVirtualIn(name string) (driver.In, error) {
	p := &virtualIn{name: name}
	dest, err := coremidi.NewDestination(d.client, name, func(packet coremidi.Packet) {
		p.listener.dispatch(packet.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating virtual destination %q: %w", name, err)
	}
	p.destination = dest
	return p, nil
}

// OpenVirtualOut publishes a source other applications can receive from.
func (d *Driver) OpenVirtualOut(name string) (driver.Out, error) {
	source, err := coremidi.NewSource(d.client, name)
	if err != nil {
		return nil, fmt.Errorf("error creating virtual source %q: %w", name, err)
	}
	p := &virtualOut{name: name, source: source}
	p.open.Store(true)
	return p, nil
}

// listener stores the current callback and tracks in-flight deliveries so
// stopping waits for them, the same way capture shutdown does.
type listener struct {
	fn atomic.Value // func([]byte)
	wg sync.WaitGroup
}

func (l *listener) dispatch(data []byte) {
	l.wg.Add(1)
	defer l.wg.Done()

	fn, _ := l.fn.Load().(func([]byte))
	if fn == nil {
		return
	}
	fn(data)
}

func (l *listener) set(fn func([]byte)) func() {
	l.fn.Store(fn)
	return func() {
		l.fn.Store(func([]byte) {})
		l.wg.Wait()
	}
}

type sourcePort struct {
	drv      *Driver
	source   coremidi.Source
	mu       sync.Mutex
	route    *inputRoute
	portConn internalPortConnection
	listener listener
}

func (p *sourcePort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.portConn != nil {
		return nil
	}

	route, err := p.drv.route(p.source)
	if err != nil {
		return err
	}
	route.target.Store(&p.listener)

	conn, err := route.port.Connect(p.source)
	if err != nil {
		route.target.CompareAndSwap(&p.listener, nil)
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	p.route, p.portConn = route, conn
	p.drv.logger.Info("MIDI source connected", p.drv.logger.Field().String("source", p.source.Name()))
	return nil
}

func (p *sourcePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.portConn != nil {
		p.portConn.Disconnect()
		p.route.target.CompareAndSwap(&p.listener, nil)
		p.portConn, p.route = nil, nil
	}
	return nil
}

func (p *sourcePort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.portConn != nil
}

func (p *sourcePort) String() string { return p.source.Name() }

func (p *sourcePort) Listen(onMsg func([]byte)) (func(), error) {
	if !p.IsOpen() {
		return nil, driver.ErrPortClosed
	}
	return p.listener.set(onMsg), nil
}

type destinationPort struct {
	drv         *Driver
	destination coremidi.Destination
	mu          sync.Mutex
	port        *coremidi.OutputPort
}

func (p *destinationPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port != nil {
		return nil
	}
	port, err := p.drv.output()
	if err != nil {
		return err
	}
	p.port = port
	return nil
}

func (p *destinationPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.port = nil
	return nil
}

func (p *destinationPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port != nil
}

func (p *destinationPort) String() string { return p.destination.Name() }

func (p *destinationPort) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return driver.ErrPortClosed
	}
	packet := coremidi.NewPacket(data, 0)
	return packet.Send(p.port, &p.destination)
}

type virtualIn struct {
	name        string
	destination coremidi.Destination
	mu          sync.Mutex
	disposed    bool
	listener    listener
}

// Open fails once Close has disposed the destination; a new virtual input
// must be created instead.
func (p *virtualIn) Open() error {
	if !p.IsOpen() {
		return driver.ErrPortClosed
	}
	return nil
}

// Close unpublishes the destination so the name can be reused.
func (p *virtualIn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return nil
	}
	p.disposed = true
	p.listener.fn.Store(func([]byte) {})
	p.destination.Dispose()
	return nil
}

func (p *virtualIn) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.disposed
}

func (p *virtualIn) String() string { return p.name }

func (p *virtualIn) Listen(onMsg func([]byte)) (func(), error) {
	if !p.IsOpen() {
		return nil, driver.ErrPortClosed
	}
	return p.listener.set(onMsg), nil
}

type virtualOut struct {
	name   string
	source coremidi.Source
	open   atomic.Bool
}

func (p *virtualOut) Open() error    { p.open.Store(true); return nil }
func (p *virtualOut) Close() error   { p.open.Store(false); return nil }
func (p *virtualOut) IsOpen() bool   { return p.open.Load() }
func (p *virtualOut) String() string { return p.name }

func (p *virtualOut) Send(data []byte) error {
	if !p.IsOpen() {
		return driver.ErrPortClosed
	}
	packet := coremidi.NewPacket(data, 0)
	return packet.Received(&p.source)
}
