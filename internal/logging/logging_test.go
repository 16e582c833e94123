package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactingHandlerMasksKeysAndValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{"api_key key", "api_key", "abc", true},
		{"uppercase authorization", "Authorization", "xyz", true},
		{"keyword in key", "refresh_token", "abc", true},
		{"bearer value", "header", "Bearer abc.def", true},
		{"google key value", "value", "AIzaSyA1234567890abcdefghijklmnopqrstu", true},
		{"key in url", "url", "https://host/v1beta/models/m:generateContent?key=abc123", true},
		{"plain text", "document", "msa.pdf", false},
		{"chunk digest", "chunk", "3f2a9c0b1d4e", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := New(&buf, "info", "text")
			logger.Info("msg", tt.key, tt.value)
			out := buf.String()
			if tt.wantMask {
				assert.Contains(t, out, MaskValue)
				assert.NotContains(t, out, tt.value)
			} else {
				assert.Contains(t, out, tt.value)
				assert.NotContains(t, out, MaskValue)
			}
		})
	}
}

func TestRedactingHandlerGroupsAndWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, "debug", "json").With("api_key", "s3cr3t")
	logger.Debug("call", slog.Group("provider", slog.String("name", "gemini"), slog.String("token", "t0k")))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, MaskValue, rec["api_key"])
	group, ok := rec["provider"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gemini", group["name"])
	assert.Equal(t, MaskValue, group["token"])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.Contains(buf.String(), "shown"))
}
