// Package persist reads and writes configuration values on disk, encrypting
// them for a namespace when required.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/cipher"
	"github.com/systmms/sealcfg/pkg/keys"
)

// File and directory modes used for everything the engine writes.
const (
	FileMode = 0600
	DirMode  = 0700
)

// Cipher operation names reported to a Recorder.
const (
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
)

// Location describes where a value lives. A non-empty Namespace means the
// file is encrypted to that namespace's keypair. A nil Codec selects the
// engine default.
type Location struct {
	Path      string
	Namespace string
	Codec     Codec
}

// Encrypted reports whether the location holds an encrypted record.
func (l Location) Encrypted() bool {
	return l.Namespace != ""
}

// Recorder observes cipher operations.
type Recorder interface {
	RecordCipher(op string, err error)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRecorder sets the engine's metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// Engine moves values between memory and disk.
type Engine struct {
	codec    Codec
	keys     *keys.Manager
	recorder Recorder
}

// NewEngine creates an engine. codec may be nil for JSON. keyManager is only
// required for encrypted locations.
func NewEngine(codec Codec, keyManager *keys.Manager, opts ...EngineOption) *Engine {
	if codec == nil {
		codec = JSONCodec{}
	}
	e := &Engine{codec: codec, keys: keyManager}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Codec returns the engine's default codec.
func (e *Engine) Codec() Codec {
	return e.codec
}

// Keys returns the engine's key manager, which may be nil.
func (e *Engine) Keys() *keys.Manager {
	return e.keys
}

// Load decodes the value stored at loc into v. An absent file yields an
// error matching cfgerrors.ErrNotFound; a file that exists but cannot be
// decrypted or decoded is always an error.
func (e *Engine) Load(loc Location, v interface{}) error {
	data, err := e.ReadBytes(loc)
	if err != nil {
		return err
	}
	if err := e.codecFor(loc).Unmarshal(data, v); err != nil {
		return cfgerrors.Serialization("decode", loc.Path, err)
	}
	return nil
}

// Store encodes v and writes it to loc atomically.
func (e *Engine) Store(loc Location, v interface{}) error {
	data, err := e.codecFor(loc).Marshal(v)
	if err != nil {
		return cfgerrors.Serialization("encode", loc.Path, err)
	}
	return e.WriteBytes(loc, data)
}

// ReadBytes returns the plaintext bytes stored at loc.
func (e *Engine) ReadBytes(loc Location) ([]byte, error) {
	data, err := os.ReadFile(loc.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cfgerrors.NotFound("read", loc.Path)
		}
		return nil, cfgerrors.IO("read", loc.Path, err)
	}
	if !loc.Encrypted() {
		return data, nil
	}

	kp, err := e.keypair(loc.Namespace)
	if err != nil {
		return nil, err
	}
	plaintext, err := cipher.Decrypt(kp, data)
	e.record(OpDecrypt, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc.Path, err)
	}
	return plaintext, nil
}

// WriteBytes writes plaintext to loc, encrypting it first when loc is
// encrypted.
func (e *Engine) WriteBytes(loc Location, plaintext []byte) error {
	data := plaintext
	if loc.Encrypted() {
		kp, err := e.keypair(loc.Namespace)
		if err != nil {
			return err
		}
		data, err = cipher.Encrypt(kp, plaintext)
		e.record(OpEncrypt, err)
		if err != nil {
			return cfgerrors.Serialization("encrypt", loc.Path, err)
		}
	}
	return WriteFileAtomic(loc.Path, data)
}

// Exists reports whether a file is present at loc.
func (e *Engine) Exists(loc Location) bool {
	_, err := os.Stat(loc.Path)
	return err == nil
}

func (e *Engine) codecFor(loc Location) Codec {
	if loc.Codec != nil {
		return loc.Codec
	}
	return e.codec
}

func (e *Engine) keypair(namespace string) (*keys.Keypair, error) {
	if e.keys == nil {
		return nil, cfgerrors.KeyStore("resolve", namespace, errors.New("no key manager configured"))
	}
	return e.keys.GetOrCreate(namespace)
}

func (e *Engine) record(op string, err error) {
	if e.recorder != nil {
		e.recorder.RecordCipher(op, err)
	}
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory followed by a rename, so readers never observe a partial file.
// Missing parent directories are created with DirMode; the file gets FileMode.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return cfgerrors.IO("create directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return cfgerrors.IO("create temp file", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName) // best effort cleanup
	}

	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		cleanup()
		return cfgerrors.IO("chmod", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return cfgerrors.IO("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return cfgerrors.IO("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return cfgerrors.IO("close", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return cfgerrors.IO("rename", path, err)
	}
	return nil
}
