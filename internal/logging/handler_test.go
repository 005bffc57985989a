package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(initialLevel slog.Level) (*sink, *bytes.Buffer) {
	level := new(slog.LevelVar)
	level.Set(initialLevel)
	buf := &bytes.Buffer{}
	return newSink(level, slog.NewTextHandler(buf, nil)), buf
}

func TestSink_LevelGating(t *testing.T) {
	s, buf := newTestSink(slog.LevelInfo)
	logger := slog.New(s)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	s.level.Set(slog.LevelDebug)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSink_SwapRetargetsRootLogger(t *testing.T) {
	s, before := newTestSink(slog.LevelInfo)
	logger := slog.New(s)

	logger.Info("first")
	require.Contains(t, before.String(), "first")

	after := &bytes.Buffer{}
	s.swap(slog.NewTextHandler(after, nil))

	logger.Info("second")
	assert.NotContains(t, before.String(), "second")
	assert.Contains(t, after.String(), "second")
}

func TestSink_DerivedLoggerFollowsSwap(t *testing.T) {
	s, before := newTestSink(slog.LevelInfo)

	// Component loggers are derived before the destination changes.
	component := slog.New(s).With("component", "scheduler")

	component.Info("first")
	require.Contains(t, before.String(), "component=scheduler")

	after := &bytes.Buffer{}
	s.swap(slog.NewTextHandler(after, nil))

	component.Info("second")
	assert.NotContains(t, before.String(), "second")
	assert.Contains(t, after.String(), "second")
	assert.Contains(t, after.String(), "component=scheduler")
}

func TestSink_GroupChainSurvivesSwap(t *testing.T) {
	s, _ := newTestSink(slog.LevelInfo)

	grouped := slog.New(s).WithGroup("display").With("variant", "black")

	after := &bytes.Buffer{}
	s.swap(slog.NewTextHandler(after, nil))

	grouped.Info("sent")
	assert.Contains(t, after.String(), "display.variant=black")
}

func TestManager_UpgradeCarriesDerivedLoggers(t *testing.T) {
	m := NewManager()
	t.Cleanup(func() { _ = m.Close() })

	component := m.Logger().With("component", "breaker")

	logFile := t.TempDir() + "/daemon.log"
	require.NoError(t, m.Upgrade(logFile, slog.LevelDebug))

	// The level change applies to loggers created before the upgrade.
	assert.True(t, component.Enabled(t.Context(), slog.LevelDebug))
}
