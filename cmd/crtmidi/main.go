//go:build cgo

// Command crtmidi builds the bridge as a C shared library:
//
//	go build -buildmode=c-shared -o librtmidi_c.so ./cmd/crtmidi
//
// Handles are uintptr_t values. Every string handed out, in an envelope or
// otherwise, is a malloc'd copy released with midi_string_delete. The log
// level is read from MIDIBRIDGE_LOG_LEVEL (debug, info, warn, error).
package main

/*
#include <stdlib.h>
#include <stddef.h>
#include <stdint.h>

typedef void (*midi_callback)(double delta, const unsigned char *message, size_t size, void *user_data);

typedef struct { int ok; uintptr_t value; char *msg; } midi_handle_result;
typedef struct { int ok; int value; char *msg; } midi_bool_result;
typedef struct { int ok; char *value; char *msg; } midi_string_result;
typedef struct { int ok; double value; char *msg; } midi_double_result;

static inline void invoke_callback(midi_callback cb, double delta, const unsigned char *message, size_t size, void *user_data) {
	cb(delta, message, size, user_data);
}
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/leandrodaf/midibridge/sdk/bridge"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

const logLevelEnv = "MIDIBRIDGE_LOG_LEVEL"

var b *bridge.Bridge

func init() {
	level := contracts.WarnLevel
	if v := os.Getenv(logLevelEnv); v != "" {
		if parsed, ok := contracts.ParseLogLevel(v); ok {
			level = parsed
		}
	}
	b = bridge.New(contracts.WithLogLevel(level))
}

func main() {}

func cstring(s string) *C.char {
	if s == "" {
		return nil
	}
	return C.CString(s)
}

func cbool(v bool) C.int {
	if v {
		return 1
	}
	return 0
}

func handleResult(r bridge.Result[bridge.Handle]) C.midi_handle_result {
	return C.midi_handle_result{ok: cbool(r.OK), value: C.uintptr_t(r.Value), msg: cstring(r.Message)}
}

func boolResult(r bridge.Result[bool]) C.midi_bool_result {
	return C.midi_bool_result{ok: cbool(r.OK), value: cbool(r.Value), msg: cstring(r.Message)}
}

func stringResult(r bridge.Result[string]) C.midi_string_result {
	return C.midi_string_result{ok: cbool(r.OK), value: cstring(r.Value), msg: cstring(r.Message)}
}

func doubleResult(r bridge.Result[float64]) C.midi_double_result {
	return C.midi_double_result{ok: cbool(r.OK), value: C.double(r.Value), msg: cstring(r.Message)}
}

//export midi_string_delete
func midi_string_delete(s *C.char) {
	C.free(unsafe.Pointer(s))
}

//export midi_api_name
func midi_api_name(api C.int) *C.char {
	return cstring(bridge.APIName(contracts.API(api)))
}

//export midi_api_display_name
func midi_api_display_name(api C.int) *C.char {
	return cstring(bridge.APIDisplayName(contracts.API(api)))
}

//export midi_compiled_api_count
func midi_compiled_api_count() C.uint {
	return C.uint(len(bridge.CompiledAPIs()))
}

// midi_compiled_api returns -1 when index is out of range.
//
//export midi_compiled_api
func midi_compiled_api(index C.uint) C.int {
	apis := bridge.CompiledAPIs()
	if uint(index) >= uint(len(apis)) {
		return -1
	}
	return C.int(apis[index])
}

//export midibuf_new
func midibuf_new() C.uintptr_t {
	return C.uintptr_t(b.BufferNew())
}

//export midibuf_delete
func midibuf_delete(h C.uintptr_t) { b.BufferDelete(bridge.Handle(h)) }

//export midibuf_size
func midibuf_size(h C.uintptr_t) C.size_t {
	return C.size_t(b.BufferSize(bridge.Handle(h)))
}

//export midibuf_empty
func midibuf_empty(h C.uintptr_t) C.int {
	return cbool(b.BufferEmpty(bridge.Handle(h)))
}

//export midibuf_at
func midibuf_at(h C.uintptr_t, i C.size_t) C.uchar {
	return C.uchar(b.BufferAt(bridge.Handle(h), uint(i)))
}

//export midibuf_front
func midibuf_front(h C.uintptr_t) C.uchar {
	return C.uchar(b.BufferFront(bridge.Handle(h)))
}

//export midibuf_back
func midibuf_back(h C.uintptr_t) C.uchar {
	return C.uchar(b.BufferBack(bridge.Handle(h)))
}

//export midibuf_assign
func midibuf_assign(h C.uintptr_t, count C.size_t, value C.uchar) {
	b.BufferAssign(bridge.Handle(h), uint(count), byte(value))
}

//export midibuf_push_back
func midibuf_push_back(h C.uintptr_t, value C.uchar) {
	b.BufferPushBack(bridge.Handle(h), byte(value))
}

//export midibuf_pop_back
func midibuf_pop_back(h C.uintptr_t) { b.BufferPopBack(bridge.Handle(h)) }

//export midibuf_clear
func midibuf_clear(h C.uintptr_t) { b.BufferClear(bridge.Handle(h)) }

//export midiin_new
func midiin_new(api C.int, clientName *C.char, queueSizeLimit C.uint) C.midi_handle_result {
	return handleResult(b.InNew(contracts.API(api), C.GoString(clientName), uint(queueSizeLimit)))
}

//export midiin_delete
func midiin_delete(h C.uintptr_t) { b.InDelete(bridge.Handle(h)) }

//export midiin_get_current_api
func midiin_get_current_api(h C.uintptr_t) C.int {
	return C.int(b.InGetCurrentAPI(bridge.Handle(h)))
}

//export midiin_open_port
func midiin_open_port(h C.uintptr_t, portNumber C.uint, portName *C.char) C.midi_bool_result {
	return boolResult(b.InOpenPort(bridge.Handle(h), uint(portNumber), C.GoString(portName)))
}

//export midiin_open_virtual_port
func midiin_open_virtual_port(h C.uintptr_t, portName *C.char) C.midi_bool_result {
	return boolResult(b.InOpenVirtualPort(bridge.Handle(h), C.GoString(portName)))
}

//export midiin_close_port
func midiin_close_port(h C.uintptr_t) C.midi_bool_result {
	return boolResult(b.InClosePort(bridge.Handle(h)))
}

//export midiin_is_port_open
func midiin_is_port_open(h C.uintptr_t) C.int {
	return cbool(b.InIsPortOpen(bridge.Handle(h)))
}

//export midiin_get_port_count
func midiin_get_port_count(h C.uintptr_t) C.uint {
	return C.uint(b.InGetPortCount(bridge.Handle(h)))
}

//export midiin_get_port_name
func midiin_get_port_name(h C.uintptr_t, portNumber C.uint) C.midi_string_result {
	return stringResult(b.InGetPortName(bridge.Handle(h), uint(portNumber)))
}

//export midiin_ignore_types
func midiin_ignore_types(h C.uintptr_t, sysex, timing, activeSense C.int) {
	b.InIgnoreTypes(bridge.Handle(h), sysex != 0, timing != 0, activeSense != 0)
}

//export midiin_get_message
func midiin_get_message(h C.uintptr_t, buf C.uintptr_t) C.midi_double_result {
	return doubleResult(b.InGetMessage(bridge.Handle(h), bridge.Handle(buf)))
}

// midiin_set_callback passes userData back to cb unchanged. cb runs on a
// thread owned by the library. cb must not call midiin_cancel_callback or
// midiin_delete on the same handle: both wait for cb to return and would
// deadlock.
//
//export midiin_set_callback
func midiin_set_callback(h C.uintptr_t, cb C.midi_callback, userData unsafe.Pointer) {
	if cb == nil {
		b.InSetCallback(bridge.Handle(h), nil, nil)
		return
	}
	b.InSetCallback(bridge.Handle(h), func(deltaTime float64, message []byte, ud any) {
		var data *C.uchar
		if len(message) > 0 {
			data = (*C.uchar)(unsafe.Pointer(&message[0]))
		}
		C.invoke_callback(cb, C.double(deltaTime), data, C.size_t(len(message)), ud.(unsafe.Pointer))
	}, userData)
}

// midiin_cancel_callback waits for an in-flight callback to return. It must
// not be called from inside that callback.
//
//export midiin_cancel_callback
func midiin_cancel_callback(h C.uintptr_t) { b.InCancelCallback(bridge.Handle(h)) }

//export midiout_new
func midiout_new(api C.int, clientName *C.char) C.midi_handle_result {
	return handleResult(b.OutNew(contracts.API(api), C.GoString(clientName)))
}

//export midiout_delete
func midiout_delete(h C.uintptr_t) { b.OutDelete(bridge.Handle(h)) }

//export midiout_get_current_api
func midiout_get_current_api(h C.uintptr_t) C.int {
	return C.int(b.OutGetCurrentAPI(bridge.Handle(h)))
}

//export midiout_open_port
func midiout_open_port(h C.uintptr_t, portNumber C.uint, portName *C.char) C.midi_bool_result {
	return boolResult(b.OutOpenPort(bridge.Handle(h), uint(portNumber), C.GoString(portName)))
}

//export midiout_open_virtual_port
func midiout_open_virtual_port(h C.uintptr_t, portName *C.char) C.midi_bool_result {
	return boolResult(b.OutOpenVirtualPort(bridge.Handle(h), C.GoString(portName)))
}

//export midiout_close_port
func midiout_close_port(h C.uintptr_t) C.midi_bool_result {
	return boolResult(b.OutClosePort(bridge.Handle(h)))
}

//export midiout_is_port_open
func midiout_is_port_open(h C.uintptr_t) C.int {
	return cbool(b.OutIsPortOpen(bridge.Handle(h)))
}

//export midiout_get_port_count
func midiout_get_port_count(h C.uintptr_t) C.uint {
	return C.uint(b.OutGetPortCount(bridge.Handle(h)))
}

//export midiout_get_port_name
func midiout_get_port_name(h C.uintptr_t, portNumber C.uint) C.midi_string_result {
	return stringResult(b.OutGetPortName(bridge.Handle(h), uint(portNumber)))
}

//export midiout_send_message
func midiout_send_message(h C.uintptr_t, buf C.uintptr_t) C.midi_bool_result {
	return boolResult(b.OutSendMessage(bridge.Handle(h), bridge.Handle(buf)))
}
