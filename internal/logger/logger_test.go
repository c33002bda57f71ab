package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"trace":   zerolog.TraceLevel,
		" fatal ": zerolog.FatalLevel,
		"":        zerolog.InfoLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "json", &buf)
	log.Info().Str("component", "test").Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "test", line["component"])
	assert.Contains(t, line, "time")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "console", &buf)
	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestOpen(t *testing.T) {
	out, closeFn, err := Open(&config.LoggingConfig{})
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, out)
	require.NoError(t, closeFn())

	path := filepath.Join(t.TempDir(), "logs", "client.log")
	out, closeFn, err = Open(&config.LoggingConfig{File: path})
	require.NoError(t, err)

	fileLog := New("info", "json", out)
	fileLog.Info().Msg("to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
