package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	Set(zap.New(core))
	t.Cleanup(func() {
		Set(nil)
		mu.Lock()
		enabled = nil
		mu.Unlock()
	})
	return logs
}

func TestCategoriesAreNamedLoggers(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	Runner("staged %d files", 2)
	DetectorDebug("args=%v", []string{"D", "-d", "src"})
	StoreError("write failed: %s", "disk full")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "runner", entries[0].LoggerName)
	assert.Equal(t, "staged 2 files", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "detector", entries[1].LoggerName)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestLevelFiltering(t *testing.T) {
	logs := observe(t, zapcore.WarnLevel)

	RunnerDebug("hidden")
	Runner("hidden too")
	RunnerWarn("shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestCategoryToggle(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)
	mu.Lock()
	enabled = map[string]bool{"parser": false}
	mu.Unlock()
	Set(L())

	ParserWarn("muted")
	Watch("audible")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "watch", logs.All()[0].LoggerName)
}

func TestRequestLoggerFields(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	WithRequestID(CategoryDispatch, "job-42").WithField("file", "a.toml").Info("done")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "job-42", ctx["req"])
	assert.Equal(t, "a.toml", ctx["file"])
}

func TestTimerLogging(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	timer := StartTimer(CategoryRunner, "stage")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Millisecond)

	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.True(t, strings.HasPrefix(logs.All()[0].Message, "stage took"))
}

func TestNoopBeforeInitialize(t *testing.T) {
	Set(nil)
	assert.NotPanics(t, func() {
		Boot("nothing is written")
		Get(CategoryStore).Error("still nothing")
	})
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hugin.log")
	t.Cleanup(func() { Set(nil) })

	require.NoError(t, Initialize(Config{Level: "info", Format: "json", File: path}))
	Session("loaded %s", "session.toml")
	Dispatch("dispatching")
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"session"`)
	assert.Contains(t, string(data), "loaded session.toml")
}

func TestInitializeRejectsUnknownSettings(t *testing.T) {
	assert.Error(t, Initialize(Config{Level: "loud"}))
	assert.Error(t, Initialize(Config{Level: "info", Format: "xml"}))
}
