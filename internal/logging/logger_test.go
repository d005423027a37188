package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewBuildsBothModes(t *testing.T) {
	t.Parallel()

	for _, dev := range []bool{true, false} {
		logger, err := New(dev)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("logger ready", zap.Bool("development", dev))
		_ = Sync(logger)
	}
}

func TestNewProductionDisablesDebug(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zap.DebugLevel))

	dev, err := New(true)
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(zap.DebugLevel))
}

func TestSyncNop(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	logger.Info("flush me")
	require.NoError(t, Sync(logger))
	require.Equal(t, 1, logs.Len())
}
