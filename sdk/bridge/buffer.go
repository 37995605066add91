package bridge

import (
	"errors"
	"fmt"
)

var errEmptyBuffer = errors.New("buffer is empty")

// byteBuffer carries one raw MIDI message across the boundary.
type byteBuffer struct {
	data []byte
}

func (b *Bridge) buffer(op string, h Handle) *byteBuffer {
	return mustLookup[*byteBuffer](op, b.handles, h, kindBuffer)
}

func (buf *byteBuffer) index(op string, i uint) int {
	if i >= uint(len(buf.data)) {
		violate(op, fmt.Errorf("index %d out of range [0, %d)", i, len(buf.data)))
	}
	return int(i)
}

// BufferNew allocates an empty buffer.
func (b *Bridge) BufferNew() Handle {
	return b.handles.add(kindBuffer, &byteBuffer{})
}

// BufferDelete releases h. Deleting twice is a contract violation.
func (b *Bridge) BufferDelete(h Handle) {
	if _, err := b.handles.remove(h, kindBuffer); err != nil {
		violate("BufferDelete", err)
	}
}

func (b *Bridge) BufferSize(h Handle) uint {
	return uint(len(b.buffer("BufferSize", h).data))
}

func (b *Bridge) BufferEmpty(h Handle) bool {
	return len(b.buffer("BufferEmpty", h).data) == 0
}

// BufferAt returns the element at i. i must be below BufferSize.
func (b *Bridge) BufferAt(h Handle, i uint) byte {
	buf := b.buffer("BufferAt", h)
	return buf.data[buf.index("BufferAt", i)]
}

func (b *Bridge) BufferFront(h Handle) byte {
	buf := b.buffer("BufferFront", h)
	return buf.data[buf.index("BufferFront", 0)]
}

func (b *Bridge) BufferBack(h Handle) byte {
	buf := b.buffer("BufferBack", h)
	if len(buf.data) == 0 {
		violate("BufferBack", errEmptyBuffer)
	}
	return buf.data[len(buf.data)-1]
}

// BufferAssign replaces the contents with count copies of value.
func (b *Bridge) BufferAssign(h Handle, count uint, value byte) {
	buf := b.buffer("BufferAssign", h)
	if uint(cap(buf.data)) < count {
		buf.data = make([]byte, count)
	}
	buf.data = buf.data[:count]
	for i := range buf.data {
		buf.data[i] = value
	}
}

func (b *Bridge) BufferPushBack(h Handle, value byte) {
	buf := b.buffer("BufferPushBack", h)
	buf.data = append(buf.data, value)
}

// BufferPopBack removes the last element. The buffer must not be empty.
func (b *Bridge) BufferPopBack(h Handle) {
	buf := b.buffer("BufferPopBack", h)
	if len(buf.data) == 0 {
		violate("BufferPopBack", errEmptyBuffer)
	}
	buf.data = buf.data[:len(buf.data)-1]
}

// BufferClear empties the buffer and keeps the handle valid.
func (b *Bridge) BufferClear(h Handle) {
	buf := b.buffer("BufferClear", h)
	buf.data = buf.data[:0]
}

// BufferBytes returns a copy of the contents.
func (b *Bridge) BufferBytes(h Handle) []byte {
	buf := b.buffer("BufferBytes", h)
	return append([]byte(nil), buf.data...)
}

// BufferSetBytes replaces the contents with a copy of data.
func (b *Bridge) BufferSetBytes(h Handle, data []byte) {
	buf := b.buffer("BufferSetBytes", h)
	buf.data = append(buf.data[:0], data...)
}
