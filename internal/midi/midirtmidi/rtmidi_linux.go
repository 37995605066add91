//go:build linux && cgo
// +build linux,cgo

// Package midirtmidi provides the ALSA backend through gomidi's rtmididrv.
package midirtmidi

import (
	"fmt"

	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/internal/midi/gomididrv"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Available reports whether the backend is compiled in.
const Available = true

// NewDriver opens an rtmidi client. The client name is chosen by rtmididrv.
func NewDriver(clientName string, log contracts.Logger) (driver.Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv.New: %w", err)
	}
	log.Info("rtmidi driver created", log.Field().String("clientName", clientName))
	return gomididrv.Wrap(drv), nil
}
