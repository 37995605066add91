package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerFromCore(core)

	log.Info("port opened",
		log.Field().Int("port", 2),
		log.Field().String("name", "test-in"),
		log.Field().Error("error", errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "port opened", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

	ctx := entries[0].ContextMap()
	assert.EqualValues(t, 2, ctx["port"])
	assert.Equal(t, "test-in", ctx["name"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLoggerSetLevelFilters(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerFromCore(core)

	log.SetLevel(contracts.WarnLevel)
	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept")

	assert.Equal(t, 2, logs.Len())

	log.SetLevel(contracts.DebugLevel)
	log.Debug("kept")
	assert.Equal(t, 3, logs.Len())
}

func TestZapLoggerFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")

	log := NewZapLogger()
	log.SetDestination(contracts.FileLog, path)
	log.Info("hello file", log.Field().Bool("ok", true))
	log.SetDestination(contracts.ConsoleLog)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.Contains(t, string(data), `"ok":true`)
}

func TestParseLogLevel(t *testing.T) {
	lvl, ok := contracts.ParseLogLevel("warn")
	require.True(t, ok)
	assert.Equal(t, contracts.WarnLevel, lvl)

	_, ok = contracts.ParseLogLevel("loud")
	assert.False(t, ok)
}
