//go:build !windows
// +build !windows

package midiwindows

import (
	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Available reports whether the backend is compiled in.
const Available = false

// NewDriver fails on non-Windows systems.
func NewDriver(clientName string, log contracts.Logger) (driver.Driver, error) {
	log.Debug("WinMM requested on a non-Windows system")
	return nil, driver.ErrUnavailable
}
