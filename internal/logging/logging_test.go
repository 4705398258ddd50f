package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flasharb/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	for _, maxAge := range []int{0, 7} {
		path := filepath.Join(t.TempDir(), "flasharb.log")
		logger, closer, err := New(config.LoggingConfig{Level: "warn", Format: "json", Output: path, MaxAgeDays: maxAge})
		require.NoError(t, err)

		logger.Info("hidden")
		logger.Warn("Feed reconnecting", "exchange", "bybit")
		require.NoError(t, closer.Close())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "hidden")
		assert.Contains(t, string(raw), `"msg":"Feed reconnecting"`)
		assert.Contains(t, string(raw), `"exchange":"bybit"`)
	}
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(config.LoggingConfig{Level: "info", Format: "xml", Output: "stdout"})
	assert.Error(t, err)

	_, _, err = New(config.LoggingConfig{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestNew_Stdout(t *testing.T) {
	logger, closer, err := New(config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}
