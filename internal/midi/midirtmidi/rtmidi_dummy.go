//go:build !linux || !cgo
// +build !linux !cgo

package midirtmidi

import (
	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Available reports whether the backend is compiled in.
const Available = false

// NewDriver always fails outside cgo-enabled linux builds.
func NewDriver(clientName string, log contracts.Logger) (driver.Driver, error) {
	log.Debug("rtmidi backend requested in a build without it")
	return nil, driver.ErrUnavailable
}
