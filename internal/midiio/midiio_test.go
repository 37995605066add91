package midiio

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/midi/driver"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var portSeq atomic.Int64

// uniqueName keeps virtual ports of different tests apart on the shared bus.
func uniqueName(t *testing.T, prefix string) string {
	return fmt.Sprintf("%s-%s-%d", prefix, t.Name(), portSeq.Add(1))
}

// loopbackPair returns an input and an output joined through virtual ports.
func loopbackPair(t *testing.T, queueLimit uint, log contracts.Logger) (*In, *Out) {
	t.Helper()

	in, err := NewIn(contracts.APILoopback, "test-client", queueLimit, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = in.Close() })
	require.NoError(t, in.OpenVirtualPort(uniqueName(t, "in")))

	out, err := NewOut(contracts.APILoopback, "test-client", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = out.Close() })
	require.NoError(t, out.OpenVirtualPort(uniqueName(t, "out")))

	return in, out
}

func TestMessageQueueRing(t *testing.T) {
	q := newMessageQueue(2)
	assert.True(t, q.push(message{data: []byte{1}}))
	assert.True(t, q.push(message{data: []byte{2}}))
	assert.False(t, q.push(message{data: []byte{3}}), "full queue refuses")

	m, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, []byte{1}, m.data)

	assert.True(t, q.push(message{data: []byte{4}}), "wraps around")
	m, _ = q.pop()
	assert.Equal(t, []byte{2}, m.data)
	m, _ = q.pop()
	assert.Equal(t, []byte{4}, m.data)

	_, ok = q.pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.len())
}

func TestIgnoreFlags(t *testing.T) {
	all := ignoreFlags{sysex: true, timing: true, activeSense: true}
	none := ignoreFlags{}

	for _, data := range [][]byte{{0xF0, 0x7E, 0xF7}, {0xF1, 0x10}, {0xF8}, {driver.StatusTick}, {0xFE}} {
		assert.True(t, all.drops(data), "% X", data)
		assert.False(t, none.drops(data), "% X", data)
	}
	assert.False(t, all.drops([]byte{0x90, 0x3C, 0x7F}))
	assert.True(t, none.drops(nil), "empty messages are never delivered")
}

func TestErrorMatchesKindSentinel(t *testing.T) {
	err := errorf(KindInvalidUse, "Out.SendMessage", "no open port")
	assert.ErrorIs(t, err, ErrInvalidUse)
	assert.NotErrorIs(t, err, ErrDriver)
	assert.Equal(t, "midiio.Out.SendMessage: invalid use: no open port", err.Error())
}

func TestNewInRejectsBadAPI(t *testing.T) {
	log := logger.NewNopLogger()

	_, err := NewIn(contracts.API(99), "", 0, log)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = NewOut(contracts.APIWindowsKS, "", log)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Contains(t, err.Error(), "no compiled support")

	_, err = NewIn(contracts.APIUnixJack, "", 0, log)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestUnspecifiedAPIResolvesToCompiledBackend(t *testing.T) {
	out, err := NewOut(contracts.APIUnspecified, "", logger.NewNopLogger())
	require.NoError(t, err)
	defer out.Close()

	assert.NotEqual(t, contracts.APIUnspecified, out.CurrentAPI())
	assert.Contains(t, CompiledAPIs(), out.CurrentAPI())
}

func TestCompiledAPIsAlwaysContainsDummyAndLoopback(t *testing.T) {
	apis := CompiledAPIs()
	assert.Contains(t, apis, contracts.APIDummy)
	assert.Contains(t, apis, contracts.APILoopback)
	assert.NotContains(t, apis, contracts.APIWindowsKS)
}

func TestDummyAPIHasNothingToOpen(t *testing.T) {
	log := logger.NewNopLogger()
	in, err := NewIn(contracts.APIDummy, "", 0, log)
	require.NoError(t, err)
	defer in.Close()

	assert.Zero(t, in.PortCount())
	assert.ErrorIs(t, in.OpenPort(0, "x"), ErrNoDevicesFound)
	assert.ErrorIs(t, in.OpenVirtualPort("x"), ErrInvalidUse)

	_, err = in.PortName(0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestPortIndexOutOfRange(t *testing.T) {
	in, out := loopbackPair(t, 0, logger.NewNopLogger())

	_, err := in.PortName(in.PortCount())
	assert.ErrorIs(t, err, ErrInvalidParameter)

	require.NoError(t, out.ClosePort())
	err = out.OpenPort(out.PortCount(), "x")
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.False(t, out.IsPortOpen())
}

func TestVirtualRoundTripWithDeltaTimes(t *testing.T) {
	in, out := loopbackPair(t, 0, logger.NewNopLogger())

	require.NoError(t, out.SendMessage([]byte{0x90, 0x3C, 0x7F}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, out.SendMessage([]byte{0x80, 0x3C, 0x00}))

	var buf []byte
	delta, err := in.GetMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x3C, 0x7F}, buf)
	assert.Zero(t, delta, "first message after open has no predecessor")

	delta, err = in.GetMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x3C, 0x00}, buf)
	assert.Greater(t, delta, 0.0)
}

func TestEnumeratedPortRoundTrip(t *testing.T) {
	log := logger.NewNopLogger()
	in, err := NewIn(contracts.APILoopback, "through-in", 0, log)
	require.NoError(t, err)
	defer in.Close()
	out, err := NewOut(contracts.APILoopback, "through-out", log)
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, in.OpenPort(0, ""))
	require.NoError(t, out.OpenPort(0, ""))
	require.NoError(t, out.SendMessage([]byte{0x90, 0x3C, 0x7F}))

	var buf []byte
	require.Eventually(t, func() bool {
		_, err := in.GetMessage(&buf)
		return err == nil && len(buf) > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0x90, 0x3C, 0x7F}, buf)

	require.NoError(t, in.ClosePort())
	assert.NoError(t, out.SendMessage([]byte{0x80, 0x3C, 0x00}), "no listener drops silently")
	assert.Zero(t, in.Pending())
}

func TestGetMessageWithNothingPendingLeavesBufferAlone(t *testing.T) {
	in, _ := loopbackPair(t, 0, logger.NewNopLogger())

	buf := []byte{0xAA, 0xBB}
	delta, err := in.GetMessage(&buf)
	require.NoError(t, err)
	assert.Zero(t, delta)
	assert.Equal(t, []byte{0xAA, 0xBB}, buf)

	_, err = in.GetMessage(nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDefaultFilterDropsTimingUntilEnabled(t *testing.T) {
	in, out := loopbackPair(t, 0, logger.NewNopLogger())

	require.NoError(t, out.SendMessage([]byte{0xF8}))
	require.NoError(t, out.SendMessage([]byte{0xF0, 0x7E, 0x7F, 0xF7}))
	require.NoError(t, out.SendMessage([]byte{0xFE}))
	assert.Zero(t, in.Pending())

	in.IgnoreTypes(false, false, false)
	require.NoError(t, out.SendMessage([]byte{0xF8}))
	require.NoError(t, out.SendMessage([]byte{0xF0, 0x7E, 0x7F, 0xF7}))
	require.NoError(t, out.SendMessage([]byte{0xFE}))
	assert.Equal(t, 3, in.Pending())
}

func TestQueueLimitDropsOverflow(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	in, out := loopbackPair(t, 2, logger.NewZapLoggerFromCore(core))

	for i := 0; i < 3; i++ {
		require.NoError(t, out.SendMessage([]byte{0x90, byte(i), 0x40}))
	}
	assert.Equal(t, 2, in.Pending())
	assert.Equal(t, 1, logs.FilterMessage("message queue limit reached; message dropped").Len())
}

func TestCallbackDeliveryAndPollingExclusivity(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	in, out := loopbackPair(t, 0, logger.NewZapLoggerFromCore(core))

	received := make(chan []byte, 4)
	in.SetCallback(func(_ float64, msg []byte) { received <- msg })
	in.SetCallback(func(float64, []byte) {})
	assert.Equal(t, 1, logs.FilterMessage("a callback function is already set").Len())

	require.NoError(t, out.SendMessage([]byte{0x90, 0x3C, 0x7F}))
	require.NoError(t, out.SendMessage([]byte{0x80, 0x3C, 0x00}))

	select {
	case msg := <-received:
		assert.Equal(t, []byte{0x90, 0x3C, 0x7F}, msg)
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
	select {
	case msg := <-received:
		assert.Equal(t, []byte{0x80, 0x3C, 0x00}, msg, "arrival order is kept")
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked for the second message")
	}

	var buf []byte
	delta, err := in.GetMessage(&buf)
	require.NoError(t, err)
	assert.Zero(t, delta)
	assert.Empty(t, buf)
	assert.EqualValues(t, 1, in.RefusedPolls())

	in.CancelCallback()
	require.NoError(t, out.SendMessage([]byte{0x90, 0x40, 0x10}))
	assert.Equal(t, 1, in.Pending(), "polling mode resumes after cancel")

	in.CancelCallback()
	assert.Equal(t, 1, logs.FilterMessage("no callback function was set").Len())
}

func TestSendMessageValidation(t *testing.T) {
	log := logger.NewNopLogger()
	out, err := NewOut(contracts.APILoopback, "", log)
	require.NoError(t, err)
	defer out.Close()

	assert.ErrorIs(t, out.SendMessage(nil), ErrInvalidParameter)
	assert.ErrorIs(t, out.SendMessage([]byte{0x3C, 0x7F}), ErrInvalidParameter)
	assert.ErrorIs(t, out.SendMessage([]byte{0x90, 0x3C, 0x7F}), ErrInvalidUse)
}

func TestClosePortAllowsReopen(t *testing.T) {
	in, out := loopbackPair(t, 0, logger.NewNopLogger())

	require.NoError(t, in.ClosePort())
	require.NoError(t, in.ClosePort(), "closing twice is a no-op")
	assert.False(t, in.IsPortOpen())

	require.NoError(t, out.SendMessage([]byte{0x90, 0x3C, 0x7F}))
	assert.Zero(t, in.Pending(), "closed port receives nothing")

	require.NoError(t, in.OpenVirtualPort(uniqueName(t, "reopened")))
	require.NoError(t, out.SendMessage([]byte{0x90, 0x3C, 0x7F}))
	assert.Equal(t, 1, in.Pending())
}

func TestOpenWhileConnectedWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	in, _ := loopbackPair(t, 0, logger.NewZapLoggerFromCore(core))

	require.NoError(t, in.OpenVirtualPort("ignored"))
	assert.Equal(t, 1, logs.FilterMessage("a valid connection already exists").Len())
}

func TestPortsSnapshot(t *testing.T) {
	in, out := loopbackPair(t, 0, logger.NewNopLogger())

	ports, err := out.Ports()
	require.NoError(t, err)
	require.Len(t, ports, int(out.PortCount()))
	for i, p := range ports {
		assert.Equal(t, i, p.Index)
		name, err := out.PortName(uint(i))
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
	}

	inPorts, err := in.Ports()
	require.NoError(t, err)
	assert.Len(t, inPorts, int(in.PortCount()))
}
