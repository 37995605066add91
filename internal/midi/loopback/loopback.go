// Package loopback implements an in-process backend. Every Bus carries one
// fixed port pair, a gomidi testdrv whose output feeds its own input, and any
// number of virtual ports. All drivers created from a bus share both, so
// endpoints in the same process can talk to each other without any platform
// MIDI service.
package loopback

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/testdrv"
)

// Available reports whether the backend is compiled in.
const Available = true

// ThroughName names the bus's fixed port pair.
const ThroughName = "Loopback Through"

var defaultBus = NewBus()

// DefaultBus returns the process-wide bus used by NewDriver.
func DefaultBus() *Bus { return defaultBus }

// Driver is one client attached to a Bus.
type Driver struct {
	name   string
	bus    *Bus
	logger contracts.Logger

	mu    sync.Mutex
	owned []closer
}

type closer interface{ Close() error }

// NewDriver attaches a client named clientName to the default bus.
func NewDriver(clientName string, log contracts.Logger) (driver.Driver, error) {
	return New(clientName, defaultBus, log), nil
}

// New attaches a client to bus.
func New(clientName string, bus *Bus, log contracts.Logger) *Driver {
	log.Debug("loopback driver created", log.Field().String("clientName", clientName))
	return &Driver{name: clientName, bus: bus, logger: log}
}

// Ins lists the through input followed by every virtual output on the bus.
func (d *Driver) Ins() ([]driver.In, error) {
	if err := d.bus.through.err; err != nil {
		return nil, err
	}
	ins := []driver.In{&throughIn{through: d.bus.through}}
	for _, vo := range d.bus.outputs() {
		ins = append(ins, &subscriber{source: vo})
	}
	return ins, nil
}

// Outs lists the through output followed by every virtual input on the bus.
func (d *Driver) Outs() ([]driver.Out, error) {
	if err := d.bus.through.err; err != nil {
		return nil, err
	}
	outs := []driver.Out{&throughOut{through: d.bus.through}}
	for _, vi := range d.bus.inputs() {
		outs = append(outs, &sink{target: vi})
	}
	return outs, nil
}

func (d *Driver) String() string { return "loopback:" + d.name }

// Close removes every virtual port this driver created from the bus. The
// through pair belongs to the bus and stays up.
func (d *Driver) Close() error {
	d.mu.Lock()
	owned := d.owned
	d.owned = nil
	d.mu.Unlock()

	for _, c := range owned {
		_ = c.Close()
	}
	return nil
}

func (d *Driver) OpenVirtualIn(name string) (driver.In, error) {
	vi := &VirtualIn{bus: d.bus, name: name}
	if err := d.bus.addInput(vi); err != nil {
		return nil, err
	}
	d.track(vi)
	return vi, nil
}

func (d *Driver) OpenVirtualOut(name string) (driver.Out, error) {
	vo := &VirtualOut{bus: d.bus, name: name}
	if err := d.bus.addOutput(vo); err != nil {
		return nil, err
	}
	d.track(vo)
	return vo, nil
}

func (d *Driver) track(c closer) {
	d.mu.Lock()
	d.owned = append(d.owned, c)
	d.mu.Unlock()
}

// Bus connects virtual ports. A message sent on a virtual output reaches
// every open virtual input plus the inputs subscribed to that output.
type Bus struct {
	through *through

	mu   sync.RWMutex
	ins  []*VirtualIn
	outs []*VirtualOut
}

// NewBus returns a bus with its through pair and no virtual ports.
func NewBus() *Bus { return &Bus{through: newThrough(ThroughName)} }

func (b *Bus) addInput(vi *VirtualIn) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.ins {
		if existing.name == vi.name {
			return fmt.Errorf("virtual input %q already exists on the bus", vi.name)
		}
	}
	b.ins = append(b.ins, vi)
	return nil
}

func (b *Bus) addOutput(vo *VirtualOut) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.outs {
		if existing.name == vo.name {
			return fmt.Errorf("virtual output %q already exists on the bus", vo.name)
		}
	}
	b.outs = append(b.outs, vo)
	return nil
}

func (b *Bus) removeInput(vi *VirtualIn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.ins {
		if existing == vi {
			b.ins = append(b.ins[:i], b.ins[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bus) removeOutput(vo *VirtualOut) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.outs {
		if existing == vo {
			b.outs = append(b.outs[:i], b.outs[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bus) inputs() []*VirtualIn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*VirtualIn(nil), b.ins...)
}

func (b *Bus) outputs() []*VirtualOut {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*VirtualOut(nil), b.outs...)
}

func (b *Bus) hasInput(vi *VirtualIn) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, existing := range b.ins {
		if existing == vi {
			return true
		}
	}
	return false
}

func (b *Bus) hasOutput(vo *VirtualOut) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, existing := range b.outs {
		if existing == vo {
			return true
		}
	}
	return false
}

// listener is the callback slot shared by every receiving port type.
type listener struct {
	mu sync.Mutex
	fn func([]byte)
}

func (l *listener) set(fn func([]byte)) func() {
	l.mu.Lock()
	l.fn = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.fn = nil
		l.mu.Unlock()
	}
}

func (l *listener) deliver(data []byte) {
	l.mu.Lock()
	fn := l.fn
	l.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// VirtualIn is a software input registered on a bus.
type VirtualIn struct {
	bus      *Bus
	name     string
	listener listener
}

func (p *VirtualIn) Open() error    { return nil }
func (p *VirtualIn) IsOpen() bool   { return p.bus.hasInput(p) }
func (p *VirtualIn) String() string { return p.name }

// Close removes the port from the bus; it cannot be reopened.
func (p *VirtualIn) Close() error {
	p.bus.removeInput(p)
	p.listener.set(nil)
	return nil
}

func (p *VirtualIn) Listen(onMsg func([]byte)) (func(), error) {
	if !p.IsOpen() {
		return nil, driver.ErrPortClosed
	}
	return p.listener.set(onMsg), nil
}

// VirtualOut is a software output registered on a bus.
type VirtualOut struct {
	bus  *Bus
	name string

	mu          sync.Mutex
	subscribers []*subscriber
}

func (p *VirtualOut) Open() error    { return nil }
func (p *VirtualOut) String() string { return p.name }
func (p *VirtualOut) IsOpen() bool   { return p.bus.hasOutput(p) }

func (p *VirtualOut) Close() error {
	p.bus.removeOutput(p)
	p.mu.Lock()
	p.subscribers = nil
	p.mu.Unlock()
	return nil
}

// Send fans data out. Targets are snapshotted so no bus lock is held while
// listeners run.
func (p *VirtualOut) Send(data []byte) error {
	if !p.IsOpen() {
		return driver.ErrPortClosed
	}
	p.mu.Lock()
	subs := append([]*subscriber(nil), p.subscribers...)
	p.mu.Unlock()

	for _, vi := range p.bus.inputs() {
		vi.listener.deliver(data)
	}
	for _, s := range subs {
		s.listener.deliver(data)
	}
	return nil
}

func (p *VirtualOut) subscribe(s *subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, s)
}

func (p *VirtualOut) unsubscribe(s *subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.subscribers {
		if existing == s {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

// subscriber is another client's view of a VirtualOut as an input port.
type subscriber struct {
	source   *VirtualOut
	mu       sync.Mutex
	open     bool
	listener listener
}

func (s *subscriber) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	if !s.source.IsOpen() {
		return fmt.Errorf("virtual output %q is gone: %w", s.source.name, driver.ErrPortClosed)
	}
	s.source.subscribe(s)
	s.open = true
	return nil
}

func (s *subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.source.unsubscribe(s)
		s.open = false
	}
	return nil
}

func (s *subscriber) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *subscriber) String() string { return s.source.name }

func (s *subscriber) Listen(onMsg func([]byte)) (func(), error) {
	if !s.IsOpen() {
		return nil, driver.ErrPortClosed
	}
	return s.listener.set(onMsg), nil
}

// sink is another client's view of a VirtualIn as an output port.
type sink struct {
	target *VirtualIn
	mu     sync.Mutex
	open   bool
}

func (s *sink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.target.IsOpen() {
		return fmt.Errorf("virtual input %q is gone: %w", s.target.name, driver.ErrPortClosed)
	}
	s.open = true
	return nil
}

func (s *sink) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}

func (s *sink) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *sink) String() string { return s.target.name }

func (s *sink) Send(data []byte) error {
	if !s.IsOpen() || !s.target.IsOpen() {
		return driver.ErrPortClosed
	}
	s.target.listener.deliver(data)
	return nil
}

// through wraps the bus's testdrv pair. The testdrv input listens for the
// whole life of the bus: testdrv cannot resume after its stop function runs
// and its output dereferences the reader installed by Listen. Messages are
// fanned out to the through inputs opened by drivers on the bus.
type through struct {
	in  drivers.In
	out drivers.Out
	err error

	sendMu sync.Mutex

	mu        sync.RWMutex
	listeners map[*throughIn]struct{}
}

func newThrough(name string) *through {
	t := &through{listeners: make(map[*throughIn]struct{})}
	td := testdrv.New(name)

	ins, err := td.Ins()
	if err != nil {
		t.err = fmt.Errorf("loopback through input: %w", err)
		return t
	}
	outs, err := td.Outs()
	if err != nil {
		t.err = fmt.Errorf("loopback through output: %w", err)
		return t
	}
	t.in, t.out = ins[0], outs[0]

	if err := t.in.Open(); err != nil {
		t.err = fmt.Errorf("loopback through input: %w", err)
		return t
	}
	if err := t.out.Open(); err != nil {
		t.err = fmt.Errorf("loopback through output: %w", err)
		return t
	}
	if _, err := t.in.Listen(func(msg []byte, _ int32) {
		t.fanOut(msg)
	}, drivers.ListenConfig{SysEx: true, TimeCode: true, ActiveSense: true}); err != nil {
		t.err = fmt.Errorf("loopback through listen: %w", err)
	}
	return t
}

func (t *through) add(l *throughIn) {
	t.mu.Lock()
	t.listeners[l] = struct{}{}
	t.mu.Unlock()
}

func (t *through) remove(l *throughIn) {
	t.mu.Lock()
	delete(t.listeners, l)
	t.mu.Unlock()
}

func (t *through) listening() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listeners) > 0
}

func (t *through) fanOut(data []byte) {
	t.mu.RLock()
	targets := make([]*throughIn, 0, len(t.listeners))
	for l := range t.listeners {
		targets = append(targets, l)
	}
	t.mu.RUnlock()

	for _, l := range targets {
		l.listener.deliver(data)
	}
}

// send hands data to testdrv, or drops it when no through input listens.
func (t *through) send(data []byte) error {
	if !t.listening() {
		return nil
	}
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.out.Send(data)
}

// throughIn is one driver's view of the through input.
type throughIn struct {
	through  *through
	mu       sync.Mutex
	open     bool
	listener listener
}

func (p *throughIn) Open() error {
	p.mu.Lock()
	p.open = true
	p.mu.Unlock()
	return nil
}

func (p *throughIn) Close() error {
	p.mu.Lock()
	p.open = false
	p.mu.Unlock()
	p.through.remove(p)
	p.listener.set(nil)
	return nil
}

func (p *throughIn) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *throughIn) String() string { return p.through.in.String() }

func (p *throughIn) Listen(onMsg func([]byte)) (func(), error) {
	if !p.IsOpen() {
		return nil, driver.ErrPortClosed
	}
	unset := p.listener.set(onMsg)
	p.through.add(p)
	return func() {
		p.through.remove(p)
		unset()
	}, nil
}

// throughOut is one driver's view of the through output.
type throughOut struct {
	through *through
	mu      sync.Mutex
	open    bool
}

func (p *throughOut) Open() error {
	p.mu.Lock()
	p.open = true
	p.mu.Unlock()
	return nil
}

func (p *throughOut) Close() error {
	p.mu.Lock()
	p.open = false
	p.mu.Unlock()
	return nil
}

func (p *throughOut) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *throughOut) String() string { return p.through.out.String() }

func (p *throughOut) Send(data []byte) error {
	if !p.IsOpen() {
		return driver.ErrPortClosed
	}
	if err := p.through.send(data); err != nil {
		return fmt.Errorf("send on %s: %w", p.String(), err)
	}
	return nil
}
