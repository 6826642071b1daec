package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertSecretRedacted verifies that a secret value does not appear in a
// string and that the [REDACTED] marker does.
//
// Example usage:
//
//	logger.Info("token %s", logging.Secret(token))
//	AssertSecretRedacted(t, logger.GetOutput(), token)
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNotLeaked verifies that none of the secrets appear in data, which
// is typically the raw bytes of a sealed file.
func AssertNotLeaked(t *testing.T, data []byte, secrets ...string) {
	t.Helper()

	for _, secret := range secrets {
		assert.False(t, strings.Contains(string(data), secret),
			"Secret %q appears in plain form", secret)
	}
}

// AssertFileMode verifies that path exists with exactly the given
// permission bits.
func AssertFileMode(t *testing.T, path string, mode os.FileMode) {
	t.Helper()

	info, err := os.Stat(path)
	require.NoError(t, err, "File should exist: %s", path)
	assert.Equal(t, mode, info.Mode().Perm(), "Unexpected permissions on %s", path)
}

// AssertFileContents verifies that a file exists and holds expected.
func AssertFileContents(t *testing.T, path string, expected string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read file %s", path)
	assert.Equal(t, expected, string(data), "Unexpected contents in %s", path)
}
