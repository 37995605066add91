package driver

// Status bytes with special handling in backends and filters.
const (
	StatusSysEx       = 0xF0
	StatusMTCQuarter  = 0xF1
	StatusSongPos     = 0xF2
	StatusSongSelect  = 0xF3
	StatusEndSysEx    = 0xF7
	StatusClock       = 0xF8
	StatusTick        = 0xF9
	StatusActiveSense = 0xFE
)

// IsStatus reports whether b has the status bit set.
func IsStatus(b byte) bool {
	return b&0x80 != 0
}

// MessageLength returns the length of a short message starting with status,
// or 0 for sysex and for data bytes.
func MessageLength(status byte) int {
	switch {
	case !IsStatus(status):
		return 0
	case status < 0xC0, status >= 0xE0 && status < 0xF0:
		return 3
	case status < 0xE0:
		return 2
	}
	switch status {
	case StatusSysEx:
		return 0
	case StatusMTCQuarter, StatusSongSelect:
		return 2
	case StatusSongPos:
		return 3
	default:
		return 1
	}
}
