package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/sealcfg/internal/logging"
)

// lockedBuffer serializes writes and reads of the captured output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// TestLogger captures the output of a real *logging.Logger for validation
// in tests.
//
// Example usage:
//
//	logger := NewTestLogger(t)
//	manager := keys.NewManager(store, keys.WithLogger(logger.Logger()))
//
//	logger.AssertContains(t, "generated keypair")
//	logger.AssertNotContains(t, privateKeyBase64)
type TestLogger struct {
	out    *lockedBuffer
	logger *logging.Logger
}

// NewTestLogger creates a TestLogger with debug output disabled.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return NewTestLoggerWithDebug(t, false)
}

// NewTestLoggerWithDebug creates a TestLogger that also captures Debug
// messages when debug is true.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	out := &lockedBuffer{}
	return &TestLogger{
		out:    out,
		logger: logging.NewWithWriter(out, debug, true),
	}
}

// Logger returns the logger to hand to the code under test.
func (l *TestLogger) Logger() *logging.Logger {
	return l.logger
}

// GetOutput returns the captured log output.
func (l *TestLogger) GetOutput() string {
	return l.out.String()
}

// Clear clears the captured log output.
func (l *TestLogger) Clear() {
	l.out.Reset()
}

// AssertContains asserts that the log output contains substr.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains asserts that the log output does NOT contain substr.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr, "Expected log output to NOT contain %q", substr)
}

// AssertLogCount asserts that a log level appears count times.
//
// Level markers:
//   - info: "✓"
//   - warn: "⚠"
//   - error: "✗"
//   - debug: "[DEBUG]"
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	var marker string
	switch level {
	case "info":
		marker = "✓"
	case "warn":
		marker = "⚠"
	case "error":
		marker = "✗"
	case "debug":
		marker = "[DEBUG]"
	default:
		t.Fatalf("Unknown log level: %s", level)
	}

	actual := 0
	for _, line := range strings.Split(l.GetOutput(), "\n") {
		if strings.HasPrefix(line, marker+" ") {
			actual++
		}
	}
	assert.Equal(t, count, actual, "Expected %d %s messages, found %d", count, level, actual)
}
