package midiio

import (
	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// dummyDriver has no ports and no virtual port support.
type dummyDriver struct{}

func newDummyDriver(clientName string, log contracts.Logger) (driver.Driver, error) {
	log.Warn("dummy MIDI API selected; no ports will be available",
		log.Field().String("clientName", clientName))
	return dummyDriver{}, nil
}

func (dummyDriver) Ins() ([]driver.In, error)   { return nil, nil }
func (dummyDriver) Outs() ([]driver.Out, error) { return nil, nil }
func (dummyDriver) String() string              { return "dummy" }
func (dummyDriver) Close() error                { return nil }
