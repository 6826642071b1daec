package errors_test

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/sealcfg/internal/errors"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

func TestUserErrorFallsBackToCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("root cause")
	err := errors.UserError{Err: cause}

	assert.Equal(t, "root cause", err.Error())
	assert.ErrorIs(t, err, cause)
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "secret_manager.type",
		Value:      "vault",
		Message:    "unknown backend",
		Suggestion: "Use keyring, memory or aws-secretsmanager",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "secret_manager.type")
	assert.Contains(t, errMsg, "vault")
	assert.Contains(t, errMsg, "unknown backend")
	assert.Contains(t, errMsg, "aws-secretsmanager")
}

func TestPresent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		message    string
		suggestion string
	}{
		{
			name:       "key store",
			err:        cfgerrors.KeyStore("get", "app", stderrors.New("dbus closed")),
			message:    "Secret manager unavailable",
			suggestion: "--backend",
		},
		{
			name:       "key format",
			err:        cfgerrors.KeyFormat("app", stderrors.New("bad json")),
			message:    "Stored key material is unreadable",
			suggestion: "keys delete",
		},
		{
			name:       "decrypt",
			err:        cfgerrors.Decrypt("secret.bin", nil),
			message:    "Could not decrypt file",
			suggestion: "namespace",
		},
		{
			name:       "serialization",
			err:        cfgerrors.Serialization("decode", "a.json", stderrors.New("unexpected EOF")),
			message:    "File contents do not match",
			suggestion: "syntax errors",
		},
		{
			name:       "permission",
			err:        cfgerrors.IO("write", "/etc/x", fs.ErrPermission),
			message:    "Permission denied",
			suggestion: "permissions",
		},
		{
			name:       "io",
			err:        cfgerrors.IO("write", "/tmp/x", stderrors.New("disk full")),
			message:    "File operation failed",
			suggestion: "writable directory",
		},
		{
			name:       "not found",
			err:        cfgerrors.NotFound("load", "a.json"),
			message:    "Not found",
			suggestion: "spelled correctly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			presented := errors.Present(tt.err)

			var userErr errors.UserError
			require.ErrorAs(t, presented, &userErr)
			assert.Contains(t, userErr.Message, tt.message)
			assert.Contains(t, userErr.Suggestion, tt.suggestion)
			assert.ErrorIs(t, presented, cfgerrors.Kind(tt.err), "the failure class survives presentation")
		})
	}
}

func TestPresentPassesThrough(t *testing.T) {
	t.Parallel()

	assert.NoError(t, errors.Present(nil))

	userErr := errors.UserError{Message: "already friendly"}
	assert.Equal(t, userErr, errors.Present(userErr))

	wrapped := fmt.Errorf("load: %w", errors.ConfigError{Message: "bad"})
	assert.Equal(t, wrapped, errors.Present(wrapped))

	plain := stderrors.New("something else")
	assert.Equal(t, plain, errors.Present(plain))
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	yamlErr := fmt.Errorf("parse: %w", stderrors.New("yaml: line 3: mapping values are not allowed"))
	var configErr errors.ConfigError
	require.ErrorAs(t, errors.SimplifyError(yamlErr), &configErr)
	assert.Equal(t, "Invalid YAML format", configErr.Message)

	missing := stderrors.New("open x: no such file or directory")
	var userErr errors.UserError
	require.ErrorAs(t, errors.SimplifyError(missing), &userErr)
	assert.Equal(t, "File or directory not found", userErr.Message)

	assert.Nil(t, errors.SimplifyError(nil))
}
