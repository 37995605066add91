//go:build !darwin
// +build !darwin

package mididarwin

import (
	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Available reports whether the backend is compiled in.
const Available = false

// NewDriver fails on non-macOS systems.
func NewDriver(clientName string, log contracts.Logger) (driver.Driver, error) {
	log.Debug("CoreMIDI requested on a non-macOS system")
	return nil, driver.ErrUnavailable
}
