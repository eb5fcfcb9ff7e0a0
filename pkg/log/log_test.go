package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetup(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	Setup("error", "json")
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))

	Setup("debug", "text")
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}
