package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageLength(t *testing.T) {
	cases := map[byte]int{
		0x3C: 0, // data byte
		0x80: 3, // note off
		0x9F: 3, // note on, channel 16
		0xB0: 3, // control change
		0xC3: 2, // program change
		0xD0: 2, // channel pressure
		0xE0: 3, // pitch bend
		0xF0: 0, // sysex
		0xF1: 2,
		0xF2: 3,
		0xF3: 2,
		0xF6: 1,
		0xF8: 1,
		0xF9: 1, // tick
		0xFE: 1,
		0xFF: 1,
	}
	for status, want := range cases {
		assert.Equalf(t, want, MessageLength(status), "status 0x%02X", status)
	}
}
