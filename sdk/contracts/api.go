package contracts

import "strings"

// API identifies the backend transport a MIDI endpoint binds to.
type API int

const (
	// APIUnspecified selects the best compiled backend for the platform.
	APIUnspecified API = iota
	// APIMacOSXCore uses Apple CoreMIDI.
	APIMacOSXCore
	// APILinuxALSA uses the Advanced Linux Sound Architecture sequencer.
	APILinuxALSA
	// APIUnixJack uses the JACK low-latency server.
	APIUnixJack
	// APIWindowsMM uses the Windows multimedia (winmm) API.
	APIWindowsMM
	// APIWindowsKS uses Windows kernel streaming. Never compiled in.
	APIWindowsKS
	// APIDummy is a compilable but non-functional backend with no ports.
	APIDummy
	// APILoopback is an in-process backend whose ports only talk to each other.
	APILoopback

	numAPIs
)

var apiNames = [numAPIs][2]string{
	APIUnspecified: {"unspecified", "Unknown"},
	APIMacOSXCore:  {"core", "CoreMIDI"},
	APILinuxALSA:   {"alsa", "ALSA"},
	APIUnixJack:    {"jack", "Jack"},
	APIWindowsMM:   {"winmm", "Windows MultiMedia"},
	APIWindowsKS:   {"winks", "Windows Kernel Streaming"},
	APIDummy:       {"dummy", "Dummy"},
	APILoopback:    {"loopback", "In-process Loopback"},
}

// Valid reports whether a is one of the declared enumerants.
func (a API) Valid() bool {
	return a >= APIUnspecified && a < numAPIs
}

// String returns the short machine name, e.g. "alsa".
func (a API) String() string {
	if !a.Valid() {
		return "invalid"
	}
	return apiNames[a][0]
}

// DisplayName returns the human readable backend name.
func (a API) DisplayName() string {
	if !a.Valid() {
		return "Invalid"
	}
	return apiNames[a][1]
}

// APIByName looks an API up by its short name, case-insensitively.
// Unknown names yield APIUnspecified and false.
func APIByName(name string) (API, bool) {
	for a := APIUnspecified; a < numAPIs; a++ {
		if strings.EqualFold(apiNames[a][0], name) {
			return a, true
		}
	}
	return APIUnspecified, false
}
