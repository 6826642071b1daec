// Package cfgerrors defines the error taxonomy shared by every sealcfg package.
//
// Each failure class has a sentinel error so callers can branch with
// errors.Is without depending on the concrete type:
//
//	kp, err := manager.GetOrCreate("app")
//	if errors.Is(err, cfgerrors.ErrKeyFormat) {
//	    // stored key is unreadable; existing ciphertext cannot be recovered
//	}
//
// Concrete failures are reported as *Error, which matches both its Kind and
// the wrapped cause.
package cfgerrors

import (
	"errors"
	"fmt"
)

// Failure classes.
var (
	// ErrKeyStore indicates the secret manager is unavailable or denied access.
	ErrKeyStore = errors.New("secret manager unavailable")

	// ErrKeyFormat indicates stored key material could not be decoded.
	ErrKeyFormat = errors.New("stored key material is malformed")

	// ErrDecrypt indicates malformed ciphertext or the wrong keypair.
	ErrDecrypt = errors.New("decryption failed")

	// ErrSerialization indicates a codec encode or decode failure.
	ErrSerialization = errors.New("serialization failed")

	// ErrIO indicates a filesystem failure.
	ErrIO = errors.New("file operation failed")

	// ErrTypeNotRegistered indicates a cache access for a type with no
	// reachable capability implementation, or a failed downcast.
	ErrTypeNotRegistered = errors.New("type not registered")

	// ErrNotFound indicates an expected record is absent. Not an error when a
	// default exists.
	ErrNotFound = errors.New("not found")
)

// Error wraps a failure with the operation and subject it concerns.
type Error struct {
	Kind    error  // one of the Err* sentinels
	Op      string // operation: "load", "save", "get", "set", "decrypt", ...
	Subject string // path, namespace or type name
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Subject != "" {
		msg += fmt.Sprintf(" (%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, subject string, err error) error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// KeyStore reports a secret manager failure for a namespace.
func KeyStore(op, namespace string, err error) error {
	return newError(ErrKeyStore, op, namespace, err)
}

// KeyFormat reports unreadable key material stored under a namespace.
func KeyFormat(namespace string, err error) error {
	return newError(ErrKeyFormat, "decode key", namespace, err)
}

// Decrypt reports a ciphertext that could not be opened.
func Decrypt(subject string, err error) error {
	return newError(ErrDecrypt, "decrypt", subject, err)
}

// Serialization reports a codec failure.
func Serialization(op, subject string, err error) error {
	return newError(ErrSerialization, op, subject, err)
}

// IO reports a filesystem failure.
func IO(op, path string, err error) error {
	return newError(ErrIO, op, path, err)
}

// TypeNotRegistered reports a cache access for an unknown or mismatched type.
func TypeNotRegistered(typeName string, err error) error {
	return newError(ErrTypeNotRegistered, "lookup", typeName, err)
}

// NotFound reports an absent record.
func NotFound(op, subject string) error {
	return newError(ErrNotFound, op, subject, nil)
}

// Kind returns the failure class of err, or nil when err does not belong to
// the taxonomy.
func Kind(err error) error {
	for _, kind := range []error{
		ErrKeyStore, ErrKeyFormat, ErrDecrypt, ErrSerialization,
		ErrIO, ErrTypeNotRegistered, ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
