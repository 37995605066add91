package midiio

type message struct {
	data  []byte
	delta float64
}

// messageQueue is a fixed-capacity FIFO ring.
type messageQueue struct {
	buf  []message
	head int
	size int
}

func newMessageQueue(limit uint) *messageQueue {
	return &messageQueue{buf: make([]message, limit)}
}

// push reports false when the queue is full; the message is not stored.
func (q *messageQueue) push(m message) bool {
	if q.size == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.size)%len(q.buf)] = m
	q.size++
	return true
}

func (q *messageQueue) pop() (message, bool) {
	if q.size == 0 {
		return message{}, false
	}
	m := q.buf[q.head]
	q.buf[q.head] = message{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return m, true
}

func (q *messageQueue) len() int { return q.size }
