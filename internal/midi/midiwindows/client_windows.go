//go:build windows
// +build windows

// Package midiwindows implements the Windows multimedia (winmm) backend.
package midiwindows

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Available reports whether the backend is compiled in.
const Available = true

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI input message types
const (
	MIM_OPEN      = 0x3C1
	MIM_CLOSE     = 0x3C2
	MIM_DATA      = 0x3C3
	MIM_LONGDATA  = 0x3C4
	MIM_ERROR     = 0x3C5
	MIM_LONGERROR = 0x3C6
	MIM_MOREDATA  = 0x3CC
)

const midierrStillPlaying = 65

type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

type midiHdr struct {
	lpData          *byte
	dwBufferLength  uint32
	dwBytesRecorded uint32
	dwUser          uintptr
	dwFlags         uint32
	lpNext          *midiHdr
	reserved        uintptr
	dwOffset        uint32
	dwReserved      [8]uintptr
}

// Load the winmm.dll library and required functions
var (
	winmm                    = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs     = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps     = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen           = winmm.NewProc("midiInOpen")
	procMidiInStart          = winmm.NewProc("midiInStart")
	procMidiInStop           = winmm.NewProc("midiInStop")
	procMidiInClose          = winmm.NewProc("midiInClose")
	procMidiOutGetNumDevs    = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps    = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen          = winmm.NewProc("midiOutOpen")
	procMidiOutClose         = winmm.NewProc("midiOutClose")
	procMidiOutShortMsg      = winmm.NewProc("midiOutShortMsg")
	procMidiOutLongMsg       = winmm.NewProc("midiOutLongMsg")
	procMidiOutPrepareHeader = winmm.NewProc("midiOutPrepareHeader")
	procMidiOutUnprepareHdr  = winmm.NewProc("midiOutUnprepareHeader")
)

// The system callback is created once; instances are looked up by id since
// winmm hands the id back as dwInstance.
var (
	inCallback = windows.NewCallback(midiInCallback)
	registryMu sync.RWMutex
	registry   = map[uintptr]*inPort{}
	nextID     uintptr
)

// Driver enumerates winmm devices. Device ids are the port indices.
type Driver struct {
	logger contracts.Logger
}

// NewDriver returns the winmm driver. winmm has no client concept, so the name is only logged.
func NewDriver(clientName string, log contracts.Logger) (driver.Driver, error) {
	log.Info("MIDI driver created for Windows", log.Field().String("clientName", clientName))
	return &Driver{logger: log}, nil
}

func (d *Driver) Ins() ([]driver.In, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)

	ins := make([]driver.In, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 != 0 {
			d.logger.Warn("Failed to get information for MIDI input device", d.logger.Field().Int("device", int(i)))
			continue
		}
		ins = append(ins, &inPort{drv: d, id: i, name: windows.UTF16ToString(caps.szPname[:])})
	}
	return ins, nil
}

func (d *Driver) Outs() ([]driver.Out, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)

	outs := make([]driver.Out, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 != 0 {
			d.logger.Warn("Failed to get information for MIDI output device", d.logger.Field().Int("device", int(i)))
			continue
		}
		outs = append(outs, &outPort{drv: d, id: i, name: windows.UTF16ToString(caps.szPname[:])})
	}
	return outs, nil
}

func (d *Driver) String() string { return "WinMM" }

func (d *Driver) Close() error { return nil }

type inPort struct {
	drv    *Driver
	id     uint32
	name   string
	mu     sync.Mutex
	handle windows.Handle
	key    uintptr
	onMsg  func([]byte)
}

func (p *inPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		return nil
	}

	registryMu.Lock()
	nextID++
	p.key = nextID
	registry[p.key] = p
	registryMu.Unlock()

	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&p.handle)),
		uintptr(p.id),
		inCallback,
		p.key,
		uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
	)
	if r1 != 0 {
		p.unregister()
		return fmt.Errorf("failed to open MIDI input device %d: %v", p.id, err)
	}

	if r1, _, err = procMidiInStart.Call(uintptr(p.handle)); r1 != 0 {
		procMidiInClose.Call(uintptr(p.handle))
		p.handle = 0
		p.unregister()
		return fmt.Errorf("failed to start MIDI input device %d: %v", p.id, err)
	}

	p.drv.logger.Info("MIDI input device connected", p.drv.logger.Field().Int("device", int(p.id)))
	return nil
}

func (p *inPort) unregister() {
	registryMu.Lock()
	delete(registry, p.key)
	registryMu.Unlock()
}

func (p *inPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return nil
	}

	r1, _, err := procMidiInStop.Call(uintptr(p.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to stop MIDI capture: %v", err)
	}
	r1, _, err = procMidiInClose.Call(uintptr(p.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI device: %v", err)
	}
	p.handle = 0
	p.onMsg = nil
	p.unregister()
	return nil
}

func (p *inPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != 0
}

func (p *inPort) String() string { return p.name }

func (p *inPort) Listen(onMsg func([]byte)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return nil, driver.ErrPortClosed
	}
	p.onMsg = onMsg
	return func() {
		p.mu.Lock()
		p.onMsg = nil
		p.mu.Unlock()
	}, nil
}

// midiInCallback unpacks short messages. Sysex input would need prepared
// input buffers (MIM_LONGDATA) and is not supported by this backend.
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	registryMu.RLock()
	p := registry[dwInstance]
	registryMu.RUnlock()
	if p == nil {
		return 0
	}

	switch wMsg {
	case MIM_DATA:
		status := byte(dwParam1 & 0xFF)
		n := driver.MessageLength(status)
		if n == 0 {
			return 0
		}
		msg := []byte{status, byte((dwParam1 >> 8) & 0xFF), byte((dwParam1 >> 16) & 0xFF)}[:n]

		p.mu.Lock()
		onMsg := p.onMsg
		p.mu.Unlock()
		if onMsg != nil {
			onMsg(msg)
		}
	case MIM_LONGDATA:
		p.drv.logger.Debug("Sysex input is not supported by the WinMM backend")
	case MIM_ERROR, MIM_LONGERROR:
		p.drv.logger.Error(fmt.Sprintf("MIDI error: msg=0x%X", wMsg))
	case MIM_OPEN, MIM_CLOSE, MIM_MOREDATA:
	default:
		p.drv.logger.Warn(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}
	return 0
}

type outPort struct {
	drv    *Driver
	id     uint32
	name   string
	mu     sync.Mutex
	handle windows.Handle
}

func (p *outPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		return nil
	}
	r1, _, err := procMidiOutOpen.Call(uintptr(unsafe.Pointer(&p.handle)), uintptr(p.id), 0, 0, 0)
	if r1 != 0 {
		return fmt.Errorf("failed to open MIDI output device %d: %v", p.id, err)
	}
	p.drv.logger.Info("MIDI output device connected", p.drv.logger.Field().Int("device", int(p.id)))
	return nil
}

func (p *outPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return nil
	}
	r1, _, err := procMidiOutClose.Call(uintptr(p.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI output device: %v", err)
	}
	p.handle = 0
	return nil
}

func (p *outPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != 0
}

func (p *outPort) String() string { return p.name }

func (p *outPort) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return driver.ErrPortClosed
	}
	if len(data) <= 3 && data[0] != driver.StatusSysEx {
		var packed uintptr
		for i, b := range data {
			packed |= uintptr(b) << (8 * i)
		}
		if r1, _, err := procMidiOutShortMsg.Call(uintptr(p.handle), packed); r1 != 0 {
			return fmt.Errorf("midiOutShortMsg: %v", err)
		}
		return nil
	}
	return p.sendLong(data)
}

func (p *outPort) sendLong(data []byte) error {
	buf := append([]byte(nil), data...)
	hdr := midiHdr{lpData: &buf[0], dwBufferLength: uint32(len(buf)), dwBytesRecorded: uint32(len(buf))}
	size := unsafe.Sizeof(hdr)

	if r1, _, err := procMidiOutPrepareHeader.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&hdr)), size); r1 != 0 {
		return fmt.Errorf("midiOutPrepareHeader: %v", err)
	}
	if r1, _, err := procMidiOutLongMsg.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&hdr)), size); r1 != 0 {
		procMidiOutUnprepareHdr.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&hdr)), size)
		return fmt.Errorf("midiOutLongMsg: %v", err)
	}
	for {
		r1, _, err := procMidiOutUnprepareHdr.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&hdr)), size)
		if r1 == 0 {
			return nil
		}
		if r1 != midierrStillPlaying {
			return fmt.Errorf("midiOutUnprepareHeader: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}
