package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerHonorsConfiguredLevel(t *testing.T) {
	ctx := context.Background()

	logger := NewLogger(&Config{LogLevel: "warn"})
	require.False(t, logger.Enabled(ctx, slog.LevelInfo))
	require.True(t, logger.Enabled(ctx, slog.LevelWarn))

	logger = NewLogger(&Config{LogLevel: "debug", LogFormat: "json"})
	require.True(t, logger.Enabled(ctx, slog.LevelDebug))

	logger = NewLogger(&Config{LogLevel: "nonsense"})
	require.True(t, logger.Enabled(ctx, slog.LevelInfo), "unknown level falls back to info")
	require.False(t, logger.Enabled(ctx, slog.LevelDebug))

	logger = NewLogger(nil)
	require.True(t, logger.Enabled(ctx, slog.LevelInfo))
}
