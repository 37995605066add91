// Package midiio provides realtime MIDI input and output endpoints on top of
// the platform backends. Failures are reported as *Error values; misuse that
// the endpoints can tolerate is logged as a warning instead.
package midiio

import (
	"errors"

	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/internal/midi/loopback"
	"github.com/leandrodaf/midibridge/internal/midi/mididarwin"
	"github.com/leandrodaf/midibridge/internal/midi/midirtmidi"
	"github.com/leandrodaf/midibridge/internal/midi/midiwindows"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

type driverFactory func(clientName string, log contracts.Logger) (driver.Driver, error)

type backend struct {
	available bool
	open      driverFactory
}

// backends maps each API to its driver initializer. APIs missing here, like
// JACK and kernel streaming, are never compiled in.
var backends = map[contracts.API]backend{
	contracts.APIMacOSXCore: {mididarwin.Available, mididarwin.NewDriver},
	contracts.APILinuxALSA:  {midirtmidi.Available, midirtmidi.NewDriver},
	contracts.APIWindowsMM:  {midiwindows.Available, midiwindows.NewDriver},
	contracts.APIDummy:      {true, newDummyDriver},
	contracts.APILoopback:   {loopback.Available, loopback.NewDriver},
}

// preferred is the search order for APIUnspecified.
var preferred = []contracts.API{
	contracts.APIMacOSXCore,
	contracts.APILinuxALSA,
	contracts.APIUnixJack,
	contracts.APIWindowsMM,
}

// CompiledAPIs lists the usable APIs, real backends first.
func CompiledAPIs() []contracts.API {
	order := append(append([]contracts.API(nil), preferred...), contracts.APIDummy, contracts.APILoopback)

	var apis []contracts.API
	for _, api := range order {
		if b, ok := backends[api]; ok && b.available {
			apis = append(apis, api)
		}
	}
	return apis
}

// openDriver resolves api to a driver. APIUnspecified tries the preferred
// backends in order and falls back to the dummy API.
func openDriver(op string, api contracts.API, clientName string, log contracts.Logger) (driver.Driver, contracts.API, error) {
	if !api.Valid() {
		return nil, api, errorf(KindInvalidParameter, op, "API selector %d is out of range", int(api))
	}

	if api == contracts.APIUnspecified {
		for _, candidate := range preferred {
			b, ok := backends[candidate]
			if !ok || !b.available {
				continue
			}
			drv, err := b.open(clientName, log)
			if err == nil {
				return drv, candidate, nil
			}
			log.Warn("MIDI API failed to initialize; trying the next one",
				log.Field().String("api", candidate.String()),
				log.Field().Error("error", err))
		}
		log.Warn("no compiled MIDI API could be initialized; falling back to the dummy API")
		drv, err := newDummyDriver(clientName, log)
		return drv, contracts.APIDummy, err
	}

	b, ok := backends[api]
	if !ok || !b.available {
		return nil, api, errorf(KindInvalidParameter, op, "no compiled support for the %s API", api.DisplayName())
	}
	drv, err := b.open(clientName, log)
	if err != nil {
		if errors.Is(err, driver.ErrUnavailable) {
			return nil, api, errorf(KindInvalidParameter, op, "no compiled support for the %s API", api.DisplayName())
		}
		return nil, api, errorf(KindDriverError, op, "error initializing the %s API: %v", api.DisplayName(), err)
	}
	return drv, api, nil
}
