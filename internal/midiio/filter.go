package midiio

import "github.com/leandrodaf/midibridge/internal/midi/driver"

// ignoreFlags selects message categories dropped on the receive path.
type ignoreFlags struct {
	sysex       bool
	timing      bool
	activeSense bool
}

// drops reports whether data must not reach the queue or the callback.
// Timing covers MTC quarter frames, clock and tick.
func (f ignoreFlags) drops(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	switch data[0] {
	case driver.StatusSysEx, driver.StatusEndSysEx:
		return f.sysex
	case driver.StatusMTCQuarter, driver.StatusClock, driver.StatusTick:
		return f.timing
	case driver.StatusActiveSense:
		return f.activeSense
	}
	return false
}
