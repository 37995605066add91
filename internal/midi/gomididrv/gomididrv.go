// Package gomididrv adapts gitlab.com/gomidi/midi/v2 drivers to driver.Driver.
package gomididrv

import (
	"fmt"

	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// virtualOpener matches drivers such as rtmididrv that can create virtual ports.
type virtualOpener interface {
	OpenVirtualIn(name string) (drivers.In, error)
	OpenVirtualOut(name string) (drivers.Out, error)
}

// Driver wraps a gomidi driver.
type Driver struct {
	drv drivers.Driver
}

// Wrap adapts drv.
func Wrap(drv drivers.Driver) *Driver {
	return &Driver{drv: drv}
}

func (d *Driver) Ins() ([]driver.In, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, err
	}
	out := make([]driver.In, len(ins))
	for i, in := range ins {
		out[i] = &inPort{in: in}
	}
	return out, nil
}

func (d *Driver) Outs() ([]driver.Out, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, err
	}
	res := make([]driver.Out, len(outs))
	for i, o := range outs {
		res[i] = &outPort{out: o}
	}
	return res, nil
}

func (d *Driver) String() string { return d.drv.String() }

func (d *Driver) Close() error { return d.drv.Close() }

// OpenVirtualIn fails with driver.ErrUnavailable when the wrapped driver has no virtual port support.
func (d *Driver) OpenVirtualIn(name string) (driver.In, error) {
	v, ok := d.drv.(virtualOpener)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no virtual ports", driver.ErrUnavailable, d.drv.String())
	}
	in, err := v.OpenVirtualIn(name)
	if err != nil {
		return nil, err
	}
	return &inPort{in: in}, nil
}

// OpenVirtualOut fails with driver.ErrUnavailable when the wrapped driver has no virtual port support.
func (d *Driver) OpenVirtualOut(name string) (driver.Out, error) {
	v, ok := d.drv.(virtualOpener)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no virtual ports", driver.ErrUnavailable, d.drv.String())
	}
	o, err := v.OpenVirtualOut(name)
	if err != nil {
		return nil, err
	}
	return &outPort{out: o}, nil
}

type inPort struct {
	in drivers.In
}

func (p *inPort) Open() error    { return p.in.Open() }
func (p *inPort) Close() error   { return p.in.Close() }
func (p *inPort) IsOpen() bool   { return p.in.IsOpen() }
func (p *inPort) String() string { return p.in.String() }

// Listen asks gomidi for every message category; filtering happens in midiio.
func (p *inPort) Listen(onMsg func(data []byte)) (func(), error) {
	if !p.in.IsOpen() {
		return nil, driver.ErrPortClosed
	}
	return p.in.Listen(func(msg []byte, _ int32) {
		onMsg(msg)
	}, drivers.ListenConfig{
		SysEx:       true,
		TimeCode:    true,
		ActiveSense: true,
	})
}

type outPort struct {
	out drivers.Out
}

func (p *outPort) Open() error    { return p.out.Open() }
func (p *outPort) Close() error   { return p.out.Close() }
func (p *outPort) IsOpen() bool   { return p.out.IsOpen() }
func (p *outPort) String() string { return p.out.String() }

func (p *outPort) Send(data []byte) error {
	if !p.out.IsOpen() {
		return driver.ErrPortClosed
	}
	if err := p.out.Send(data); err != nil {
		return fmt.Errorf("send on %s: %w", p.out.String(), err)
	}
	return nil
}
