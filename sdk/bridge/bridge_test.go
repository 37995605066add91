package bridge

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var portSeq atomic.Int64

func uniqueName(t *testing.T, prefix string) string {
	return fmt.Sprintf("%s-%s-%d", prefix, t.Name(), portSeq.Add(1))
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	b := New(contracts.WithLogger(logger.NewNopLogger()))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func assertViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a contract violation")
		_, ok := r.(*ContractViolation)
		assert.True(t, ok, "panic value %T is not a *ContractViolation", r)
	}()
	fn()
}

func TestApplyDefaultOptions(t *testing.T) {
	opts := applyDefaultOptions(contracts.WithLogger(logger.NewNopLogger()))
	assert.Equal(t, contracts.InfoLevel, opts.LogLevel)
	assert.Equal(t, contracts.DefaultClientName, opts.ClientName)
	assert.EqualValues(t, contracts.DefaultQueueSizeLimit, opts.QueueSizeLimit)

	opts = applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithClientName("studio"),
		contracts.WithQueueSizeLimit(8),
	)
	assert.Equal(t, "studio", opts.ClientName)
	assert.EqualValues(t, 8, opts.QueueSizeLimit)
}

func TestBufferTracksPushesAndPops(t *testing.T) {
	b := newTestBridge(t)
	h := b.BufferNew()
	defer b.BufferDelete(h)

	rng := rand.New(rand.NewSource(1))
	var want []byte
	for i := 0; i < 500; i++ {
		if len(want) > 0 && rng.Intn(3) == 0 {
			b.BufferPopBack(h)
			want = want[:len(want)-1]
			continue
		}
		v := byte(rng.Intn(256))
		b.BufferPushBack(h, v)
		want = append(want, v)
	}

	require.EqualValues(t, len(want), b.BufferSize(h))
	assert.Equal(t, len(want) == 0, b.BufferEmpty(h))
	for i, v := range want {
		assert.Equal(t, v, b.BufferAt(h, uint(i)))
	}
	if len(want) > 0 {
		assert.Equal(t, want[0], b.BufferFront(h))
		assert.Equal(t, want[len(want)-1], b.BufferBack(h))
	}
	assert.Equal(t, want, b.BufferBytes(h))
}

func TestBufferAssignFillsAndClearKeepsHandle(t *testing.T) {
	b := newTestBridge(t)
	h := b.BufferNew()
	defer b.BufferDelete(h)

	b.BufferSetBytes(h, []byte{1, 2, 3, 4, 5})
	b.BufferAssign(h, 3, 0x7F)
	assert.Equal(t, []byte{0x7F, 0x7F, 0x7F}, b.BufferBytes(h))

	b.BufferAssign(h, 6, 0x01)
	assert.Equal(t, []byte{1, 1, 1, 1, 1, 1}, b.BufferBytes(h))

	b.BufferClear(h)
	assert.True(t, b.BufferEmpty(h))
	b.BufferPushBack(h, 0x90)
	assert.EqualValues(t, 1, b.BufferSize(h))
}

func TestBufferOutOfBoundsIsContractViolation(t *testing.T) {
	b := newTestBridge(t)
	h := b.BufferNew()
	defer b.BufferDelete(h)

	assertViolation(t, func() { b.BufferFront(h) })
	assertViolation(t, func() { b.BufferBack(h) })
	assertViolation(t, func() { b.BufferPopBack(h) })

	b.BufferPushBack(h, 0x90)
	assertViolation(t, func() { b.BufferAt(h, 1) })
}

func TestNewThenDeleteEveryHandleKind(t *testing.T) {
	b := newTestBridge(t)

	buf := b.BufferNew()
	assert.NotEqual(t, NullHandle, buf)
	b.BufferDelete(buf)

	in := b.InNew(contracts.APILoopback, "", 100)
	require.True(t, in.OK, in.Message)
	b.InDelete(in.Value)

	out := b.OutNew(contracts.APILoopback, "")
	require.True(t, out.OK, out.Message)
	b.OutDelete(out.Value)

	assert.Zero(t, b.Live())
}

func TestDoubleDeleteIsContractViolation(t *testing.T) {
	b := newTestBridge(t)

	buf := b.BufferNew()
	b.BufferDelete(buf)
	assertViolation(t, func() { b.BufferDelete(buf) })

	in := b.InNew(contracts.APIDummy, "", 0)
	require.True(t, in.OK)
	b.InDelete(in.Value)
	assertViolation(t, func() { b.InDelete(in.Value) })
	assertViolation(t, func() { b.InGetPortCount(in.Value) })
	assertViolation(t, func() { b.OutDelete(NullHandle) })
}

func TestNewWithInvalidAPIFails(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b := New(contracts.WithLogger(logger.NewZapLoggerFromCore(core)))
	defer b.Close()

	res := b.InNew(contracts.API(42), "", 0)
	assert.False(t, res.OK)
	assert.Equal(t, NullHandle, res.Value)
	assert.NotEmpty(t, res.Message)

	out := b.OutNew(contracts.API(-1), "")
	assert.False(t, out.OK)
	assert.NotEmpty(t, out.Message)

	_, err := out.Unwrap()
	assert.EqualError(t, err, out.Message)
	assert.Equal(t, 2, logs.FilterMessage("bridge operation failed").Len())
	assert.Zero(t, b.Live())
}

func TestWrongHandleKindFailsEnvelope(t *testing.T) {
	b := newTestBridge(t)

	out := b.OutNew(contracts.APIDummy, "")
	require.True(t, out.OK)
	buf := b.BufferNew()

	res := b.InOpenPort(out.Value, 0, "x")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "wrong kind")

	msg := b.InGetMessage(buf, buf)
	assert.False(t, msg.OK)

	send := b.OutSendMessage(out.Value, out.Value)
	assert.False(t, send.OK)
	assert.Contains(t, send.Message, "wrong kind")

	assertViolation(t, func() { b.InIsPortOpen(out.Value) })
	assertViolation(t, func() { b.BufferSize(out.Value) })
}

func TestPortIndexPastEndFails(t *testing.T) {
	b := newTestBridge(t)

	in := b.InNew(contracts.APILoopback, "", 0)
	require.True(t, in.OK)
	out := b.OutNew(contracts.APILoopback, "")
	require.True(t, out.OK)

	open := b.InOpenPort(in.Value, b.InGetPortCount(in.Value), "x")
	assert.False(t, open.OK)
	assert.NotEmpty(t, open.Message)
	assert.False(t, b.InIsPortOpen(in.Value))

	name := b.OutGetPortName(out.Value, b.OutGetPortCount(out.Value))
	assert.False(t, name.OK)
	assert.Empty(t, name.Value)

	name = b.InGetPortName(in.Value, b.InGetPortCount(in.Value))
	assert.False(t, name.OK)
}

func TestListPortsMatchesNames(t *testing.T) {
	b := newTestBridge(t)
	out := b.OutNew(contracts.APILoopback, "")
	require.True(t, out.OK)

	ports := b.OutListPorts(out.Value)
	require.True(t, ports.OK, ports.Message)
	require.Len(t, ports.Value, int(b.OutGetPortCount(out.Value)))
	for _, p := range ports.Value {
		name := b.OutGetPortName(out.Value, uint(p.Index))
		require.True(t, name.OK)
		assert.Equal(t, p.Name, name.Value)
	}
	assert.Equal(t, contracts.APILoopback, b.OutGetCurrentAPI(out.Value))
}

func TestGetMessageWithNothingQueuedKeepsBuffer(t *testing.T) {
	b := newTestBridge(t)
	in := b.InNew(contracts.APILoopback, "", 0)
	require.True(t, in.OK)
	require.True(t, b.InOpenVirtualPort(in.Value, uniqueName(t, "in")).OK)

	buf := b.BufferNew()
	b.BufferSetBytes(buf, []byte{0xAA, 0xBB})

	res := b.InGetMessage(in.Value, buf)
	require.True(t, res.OK, res.Message)
	assert.EqualValues(t, 2, b.BufferSize(buf))
}

func TestVirtualPortsEndToEnd(t *testing.T) {
	b := newTestBridge(t)

	in := b.InNew(contracts.APILoopback, "", 100)
	require.True(t, in.OK, in.Message)
	require.True(t, b.InOpenVirtualPort(in.Value, "test-in").OK)

	out := b.OutNew(contracts.APILoopback, "")
	require.True(t, out.OK, out.Message)
	require.True(t, b.OutOpenVirtualPort(out.Value, "test-out").OK)
	assert.True(t, b.OutIsPortOpen(out.Value))

	send := b.BufferNew()
	for _, v := range []byte{0x90, 0x3C, 0x7F} {
		b.BufferPushBack(send, v)
	}
	res := b.OutSendMessage(out.Value, send)
	require.True(t, res.OK, res.Message)

	recv := b.BufferNew()
	require.Eventually(t, func() bool {
		r := b.InGetMessage(in.Value, recv)
		return r.OK && !b.BufferEmpty(recv)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0x90, 0x3C, 0x7F}, b.BufferBytes(recv))

	require.True(t, b.OutClosePort(out.Value).OK)
	assert.False(t, b.OutSendMessage(out.Value, send).OK, "closed port refuses to send")
}

func TestEnumeratedPortsEndToEnd(t *testing.T) {
	b := newTestBridge(t)

	in := b.InNew(contracts.APILoopback, "", 100)
	require.True(t, in.OK, in.Message)
	require.NotZero(t, b.InGetPortCount(in.Value))
	require.True(t, b.InOpenPort(in.Value, 0, "through-in").OK)

	out := b.OutNew(contracts.APILoopback, "")
	require.True(t, out.OK, out.Message)
	require.NotZero(t, b.OutGetPortCount(out.Value))
	require.True(t, b.OutOpenPort(out.Value, 0, "through-out").OK)

	send := b.BufferNew()
	b.BufferSetBytes(send, []byte{0x90, 0x3C, 0x7F})
	res := b.OutSendMessage(out.Value, send)
	require.True(t, res.OK, res.Message)

	recv := b.BufferNew()
	require.Eventually(t, func() bool {
		r := b.InGetMessage(in.Value, recv)
		return r.OK && !b.BufferEmpty(recv)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0x90, 0x3C, 0x7F}, b.BufferBytes(recv))

	require.True(t, b.InClosePort(in.Value).OK)
	res = b.OutSendMessage(out.Value, send)
	assert.True(t, res.OK, "sending with no open input is not an error: %s", res.Message)
}

func TestCallbackPassesUserDataAndExcludesPolling(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := New(contracts.WithLogger(logger.NewZapLoggerFromCore(core)))
	defer b.Close()

	in := b.InNew(contracts.APILoopback, "", 0)
	require.True(t, in.OK)
	require.True(t, b.InOpenVirtualPort(in.Value, uniqueName(t, "in")).OK)
	out := b.OutNew(contracts.APILoopback, "")
	require.True(t, out.OK)
	require.True(t, b.OutOpenVirtualPort(out.Value, uniqueName(t, "out")).OK)

	type context struct{ id int }
	got := make(chan any, 1)
	b.InSetCallback(in.Value, func(_ float64, message []byte, userData any) {
		assert.Equal(t, []byte{0x90, 0x3C, 0x7F}, message)
		got <- userData
	}, &context{id: 7})

	send := b.BufferNew()
	b.BufferSetBytes(send, []byte{0x90, 0x3C, 0x7F})
	require.True(t, b.OutSendMessage(out.Value, send).OK)

	select {
	case ud := <-got:
		assert.Equal(t, &context{id: 7}, ud)
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}

	recv := b.BufferNew()
	res := b.InGetMessage(in.Value, recv)
	assert.True(t, res.OK)
	assert.True(t, b.BufferEmpty(recv), "polling is refused while a callback is set")
	assert.Equal(t, 1, logs.FilterMessage("GetMessage called while a user callback is set for this port").Len())

	b.InSetCallback(in.Value, func(float64, []byte, any) {}, nil)
	assert.Equal(t, 1, logs.FilterMessage("a callback function is already set").Len())

	b.InCancelCallback(in.Value)
	require.True(t, b.OutSendMessage(out.Value, send).OK)
	require.Eventually(t, func() bool {
		return b.InGetMessage(in.Value, recv).OK && !b.BufferEmpty(recv)
	}, time.Second, 5*time.Millisecond)
}

func TestCloseReleasesEveryHandle(t *testing.T) {
	b := New(contracts.WithLogger(logger.NewNopLogger()))

	in := b.InNew(contracts.APILoopback, "", 0)
	require.True(t, in.OK)
	require.True(t, b.InOpenVirtualPort(in.Value, uniqueName(t, "in")).OK)
	out := b.OutNew(contracts.APIDummy, "")
	require.True(t, out.OK)
	b.BufferNew()

	require.NoError(t, b.Close())
	assert.Zero(t, b.Live())
	assertViolation(t, func() { b.InGetPortCount(in.Value) })
}

func TestAPINames(t *testing.T) {
	assert.Equal(t, "loopback", APIName(contracts.APILoopback))
	assert.Empty(t, APIName(contracts.API(99)))
	assert.NotEmpty(t, APIDisplayName(contracts.APIDummy))
	assert.Contains(t, CompiledAPIs(), contracts.APIDummy)
}

func TestCancelCallbackWaitsForRunningCallback(t *testing.T) {
	b := newTestBridge(t)

	in := b.InNew(contracts.APILoopback, "", 0)
	require.True(t, in.OK)
	require.True(t, b.InOpenVirtualPort(in.Value, uniqueName(t, "in")).OK)
	out := b.OutNew(contracts.APILoopback, "")
	require.True(t, out.OK)
	require.True(t, b.OutOpenVirtualPort(out.Value, uniqueName(t, "out")).OK)

	entered := make(chan struct{})
	release := make(chan struct{})
	b.InSetCallback(in.Value, func(float64, []byte, any) {
		close(entered)
		<-release
	}, nil)

	send := b.BufferNew()
	b.BufferSetBytes(send, []byte{0x90, 0x3C, 0x7F})
	require.True(t, b.OutSendMessage(out.Value, send).OK)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}

	cancelled := make(chan struct{})
	go func() {
		b.InCancelCallback(in.Value)
		close(cancelled)
	}()

	select {
	case <-cancelled:
		t.Fatal("cancel returned while the callback was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("cancel did not return after the callback finished")
	}
}
