// Package testutil provides test utilities and helpers for sealcfg tests.
//
// This package contains shared test infrastructure: a settings file builder,
// a log-capturing logger and assertions for secrets and file modes.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/sealcfg/internal/config"
	"github.com/systmms/sealcfg/pkg/keystore"
)

// TestSettingsBuilder provides a fluent API for building sealcfg.yaml files.
//
// The builder starts from the default settings with the in-memory secret
// manager, so tests never touch the OS keyring unless they ask for it.
//
// Example usage:
//
//	path := NewTestSettings(t).
//	    WithCodec("yaml").
//	    WithServicePrefix("myapp").
//	    Write()
//
//	cfg := &config.Config{Path: path}
type TestSettingsBuilder struct {
	settings *config.Settings
	tempDir  string
	t        *testing.T
}

// NewTestSettings creates a new TestSettingsBuilder.
func NewTestSettings(t *testing.T) *TestSettingsBuilder {
	t.Helper()

	settings := config.DefaultSettings()
	settings.SecretManager.Type = keystore.BackendMemory

	return &TestSettingsBuilder{
		settings: settings,
		tempDir:  t.TempDir(),
		t:        t,
	}
}

// WithBackend selects the secret manager backend.
func (b *TestSettingsBuilder) WithBackend(backend string) *TestSettingsBuilder {
	b.settings.SecretManager.Type = backend
	return b
}

// WithServicePrefix sets the secret manager name prefix.
func (b *TestSettingsBuilder) WithServicePrefix(prefix string) *TestSettingsBuilder {
	b.settings.SecretManager.ServicePrefix = prefix
	return b
}

// WithCodec sets the plaintext codec.
func (b *TestSettingsBuilder) WithCodec(codec string) *TestSettingsBuilder {
	b.settings.Codec = codec
	return b
}

// WithConfigDir sets the directory for relative storage paths.
func (b *TestSettingsBuilder) WithConfigDir(dir string) *TestSettingsBuilder {
	b.settings.ConfigDir = dir
	return b
}

// WithDebug enables debug logging.
func (b *TestSettingsBuilder) WithDebug(debug bool) *TestSettingsBuilder {
	b.settings.Debug = debug
	return b
}

// Build returns the settings without writing them.
func (b *TestSettingsBuilder) Build() *config.Settings {
	return b.settings
}

// Write writes sealcfg.yaml into the builder's temporary directory and
// returns its path.
func (b *TestSettingsBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.settings)
	if err != nil {
		b.t.Fatalf("Failed to marshal test settings: %v", err)
	}
	return WriteTestSettings(b.t, string(data))
}

// WriteTestSettings writes a hand-written sealcfg.yaml into a temporary
// directory and returns its path.
func WriteTestSettings(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.FileName)
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write test settings: %v", err)
	}
	return path
}
