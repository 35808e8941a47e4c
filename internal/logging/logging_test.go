package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"  info  ", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestConfigure(t *testing.T) {
	logger := Configure(Config{Level: "debug", Handler: "stderr"})
	assert.NotNil(t, logger)
	assert.Same(t, logger, slog.Default())

	// json handler
	assert.NotNil(t, Configure(Config{Level: "info", Handler: "json"}))

	// udp handler falls back to stderr when the socket fails; either
	// way a usable logger comes back
	assert.NotNil(t, Configure(Config{Level: "info", Handler: "udp", Hostname: "127.0.0.1", Port: 2222}))
}
