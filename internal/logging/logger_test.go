package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "secret is redacted",
			input:    "bXktcHJpdmF0ZS1rZXk=",
			expected: "[REDACTED]",
		},
		{
			name:     "empty secret is still redacted",
			input:    "",
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Secret(tt.input).String())
			assert.Equal(t, tt.expected, Secret(tt.input).GoString())
		})
	}
}

func TestLoggerRedactsSecretsInOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)

	logger.Info("generated key %s", Secret("private-material"))
	logger.Debug("details %#v", Secret("private-material"))

	assert.NotContains(t, buf.String(), "private-material")
	assert.Contains(t, buf.String(), "✓ generated key [REDACTED]")
	assert.Contains(t, buf.String(), "[DEBUG] details [REDACTED]")
}

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("info %d", 1)
	logger.Warn("warn %d", 2)
	logger.Error("error %d", 3)
	logger.Debug("hidden %d", 4)

	assert.Equal(t, "✓ info 1\n⚠ warn 2\n✗ error 3\n", buf.String())
	assert.False(t, logger.DebugEnabled())
}

func TestSetDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)
	logger.SetDebug(true)
	logger.Debug("shown")

	assert.True(t, logger.DebugEnabled())
	assert.Equal(t, "[DEBUG] shown\n", buf.String())
}

func TestLoggerColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, false)
	logger.Error("flush failed")

	assert.Equal(t, "\033[31m✗\033[0m flush failed\n", buf.String())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SEALCFG_DEBUG", "1")
	assert.True(t, FromEnv().DebugEnabled())

	t.Setenv("SEALCFG_DEBUG", "0")
	assert.False(t, FromEnv().DebugEnabled())
}
