package midiio

import (
	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// portCount is infallible; a backend enumeration failure counts as no ports.
func portCount[P driver.Port](list func() ([]P, error), log contracts.Logger) uint {
	ports, err := list()
	if err != nil {
		log.Error("port enumeration failed", log.Field().Error("error", err))
		return 0
	}
	return uint(len(ports))
}

func portAt[P driver.Port](op string, list func() ([]P, error), n uint, direction string) (P, error) {
	var zero P
	ports, err := list()
	if err != nil {
		return zero, errorf(KindDriverError, op, "error enumerating MIDI %s ports: %v", direction, err)
	}
	if len(ports) == 0 {
		return zero, errorf(KindNoDevicesFound, op, "no MIDI %s ports found", direction)
	}
	if n >= uint(len(ports)) {
		return zero, errorf(KindInvalidParameter, op, "the port number argument (%d) is invalid; %d %s ports available", n, len(ports), direction)
	}
	return ports[n], nil
}

func portNameAt[P driver.Port](op string, list func() ([]P, error), n uint, direction string) (string, error) {
	ports, err := list()
	if err != nil {
		return "", errorf(KindDriverError, op, "error enumerating MIDI %s ports: %v", direction, err)
	}
	if n >= uint(len(ports)) {
		return "", errorf(KindInvalidParameter, op, "the port number argument (%d) is invalid; %d %s ports available", n, len(ports), direction)
	}
	return ports[n].String(), nil
}

func listPorts[P driver.Port](op string, list func() ([]P, error), direction string) ([]contracts.PortInfo, error) {
	ports, err := list()
	if err != nil {
		return nil, errorf(KindDriverError, op, "error enumerating MIDI %s ports: %v", direction, err)
	}
	infos := make([]contracts.PortInfo, len(ports))
	for i, p := range ports {
		infos[i] = contracts.PortInfo{Index: i, Name: p.String()}
	}
	return infos, nil
}
