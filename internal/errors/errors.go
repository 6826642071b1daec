package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a settings file error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
	Err        error
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

func (e ConfigError) Unwrap() error {
	return e.Err
}

// Present turns a library error into a UserError carrying a suggestion for
// its failure class. Errors that are already user-facing pass through.
func Present(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var configErr ConfigError
	if errors.As(err, &configErr) {
		return err
	}

	switch cfgerrors.Kind(err) {
	case cfgerrors.ErrKeyStore:
		return UserError{
			Message:    "Secret manager unavailable",
			Suggestion: "Unlock your OS keyring, or select another backend with --backend or secret_manager.type",
			Err:        err,
		}
	case cfgerrors.ErrKeyFormat:
		return UserError{
			Message:    "Stored key material is unreadable",
			Details:    "Files sealed with this namespace cannot be opened until the key is restored",
			Suggestion: "Restore the key from a backup, or run 'sealcfg keys delete <namespace>' to start over",
			Err:        err,
		}
	case cfgerrors.ErrDecrypt:
		return UserError{
			Message:    "Could not decrypt file",
			Suggestion: "Check the namespace matches the one used to seal the file",
			Err:        err,
		}
	case cfgerrors.ErrSerialization:
		return UserError{
			Message:    "File contents do not match the expected format",
			Suggestion: "Check the file for syntax errors or fields the program does not know",
			Err:        err,
		}
	case cfgerrors.ErrIO:
		if errors.Is(err, fs.ErrPermission) {
			return UserError{
				Message:    "Permission denied",
				Suggestion: "Check file permissions or run with appropriate privileges",
				Err:        err,
			}
		}
		return UserError{
			Message:    "File operation failed",
			Suggestion: "Verify the path exists and its parent is a writable directory",
			Err:        err,
		}
	case cfgerrors.ErrNotFound:
		return UserError{
			Message:    "Not found",
			Suggestion: "Verify the path or namespace is spelled correctly",
			Err:        err,
		}
	case cfgerrors.ErrTypeNotRegistered:
		return UserError{
			Message: "Type is not registered for this operation",
			Err:     err,
		}
	}

	return SimplifyError(err)
}

// SimplifyError simplifies common technical errors that fall outside the
// library taxonomy.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
