package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	sferrors "github.com/systmms/sealcfg/internal/errors"
	"github.com/systmms/sealcfg/internal/logging"
	"github.com/systmms/sealcfg/pkg/keystore"
	"github.com/systmms/sealcfg/pkg/persist"
	"github.com/systmms/sealcfg/pkg/sealcfg"
)

// FileName is the settings file looked up in the config directory.
const FileName = "sealcfg.yaml"

// CurrentVersion is the only settings version this build understands.
const CurrentVersion = 1

const defaultTimeoutMs = 30000

//go:embed schema.json
var schema string

// Config holds the runtime configuration
type Config struct {
	Path     string
	Logger   *logging.Logger
	Settings *Settings

	// Backend overrides secret_manager.type when set.
	Backend string

	// SecretStore, when set, is returned by Store instead of building a
	// backend from the settings.
	SecretStore keystore.Store
}

// Settings represents the sealcfg.yaml structure
type Settings struct {
	Version       int                   `yaml:"version"`
	ConfigDir     string                `yaml:"config_dir,omitempty"`
	Codec         string                `yaml:"codec,omitempty"`
	Debug         bool                  `yaml:"debug,omitempty"`
	SecretManager SecretManagerSettings `yaml:"secret_manager"`
}

// SecretManagerSettings selects and configures the keypair backend.
type SecretManagerSettings struct {
	Type          string `yaml:"type"`
	ServicePrefix string `yaml:"service_prefix,omitempty"`
	Region        string `yaml:"region,omitempty"`
	Endpoint      string `yaml:"endpoint,omitempty"`
	Project       string `yaml:"project,omitempty"`
	TimeoutMs     int    `yaml:"timeout_ms,omitempty"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	return &Settings{
		Version: CurrentVersion,
		Codec:   persist.CodecJSON,
		SecretManager: SecretManagerSettings{
			Type:      keystore.BackendKeyring,
			TimeoutMs: defaultTimeoutMs,
		},
	}
}

// DefaultPath returns sealcfg.yaml inside the default config directory.
func DefaultPath() string {
	return filepath.Join(sealcfg.DefaultConfigDir(), FileName)
}

// Load reads and validates the settings file. A missing file is not an
// error: defaults apply.
func (c *Config) Load() error {
	if c.Path == "" {
		c.Path = DefaultPath()
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.Logger != nil {
				c.Logger.Debug("No settings file at %s, using defaults", c.Path)
			}
			c.Settings = DefaultSettings()
			return nil
		}
		return sferrors.UserError{
			Message:    "Failed to read settings file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	settings, err := Parse(data)
	if err != nil {
		return err
	}
	c.Settings = settings
	return nil
}

// Parse validates data against the settings schema and decodes it, filling
// unset fields with defaults.
func Parse(data []byte) (*Settings, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, sferrors.ConfigError{
			Message:    "invalid YAML syntax in settings file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
			Err:        err,
		}
	}
	if raw == nil {
		return DefaultSettings(), nil
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, sferrors.ConfigError{
			Message: "settings do not match the expected structure",
			Err:     err,
		}
	}
	return settings, nil
}

// validate checks the decoded document against the embedded JSON schema.
func validate(raw map[string]interface{}) error {
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return sferrors.ConfigError{
			Message: "settings cannot be represented as JSON for validation",
			Err:     err,
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return sferrors.ConfigError{
			Message: "schema validation error",
			Err:     err,
		}
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	first := result.Errors()[0]
	return sferrors.ConfigError{
		Field:      first.Field(),
		Value:      first.Value(),
		Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
		Suggestion: "Supported keys: version, config_dir, codec, debug, secret_manager",
	}
}

// ConfigDir returns the configured directory for relative storage paths.
func (c *Config) ConfigDir() string {
	if c.Settings != nil && c.Settings.ConfigDir != "" {
		return c.Settings.ConfigDir
	}
	return sealcfg.DefaultConfigDir()
}

// Store builds the configured secret manager backend.
func (c *Config) Store() (keystore.Store, error) {
	if c.SecretStore != nil {
		return c.SecretStore, nil
	}

	sm := c.settings().SecretManager
	if c.Backend != "" {
		sm.Type = c.Backend
	}
	store, err := keystore.New(sm.Type, keystore.Options{
		ServicePrefix: sm.ServicePrefix,
		Region:        sm.Region,
		Endpoint:      sm.Endpoint,
		Project:       sm.Project,
		TimeoutMs:     sm.TimeoutMs,
	})
	if err != nil {
		return nil, backendError(sm, err)
	}
	return store, nil
}

func backendError(sm SecretManagerSettings, err error) error {
	configErr := sferrors.ConfigError{
		Field:      "secret_manager.type",
		Value:      sm.Type,
		Message:    err.Error(),
		Suggestion: "Use one of: keyring, memory, aws-secretsmanager, azure-keyvault, gcp-secretmanager",
		Err:        err,
	}
	if errors.Is(err, keystore.ErrUnknownBackend) {
		return configErr
	}

	switch sm.Type {
	case keystore.BackendAzure:
		configErr.Field, configErr.Value = "secret_manager.endpoint", sm.Endpoint
		configErr.Suggestion = "Set endpoint to the vault URL, e.g. https://my-vault.vault.azure.net/"
	case keystore.BackendGCP:
		configErr.Field, configErr.Value = "secret_manager.project", sm.Project
		configErr.Suggestion = "Set project or the GOOGLE_CLOUD_PROJECT environment variable"
	default:
		configErr.Suggestion = "Check the secret manager credentials and region"
	}
	return configErr
}

// Codec returns the configured plaintext codec.
func (c *Config) Codec() (persist.Codec, error) {
	name := c.settings().Codec
	codec, err := persist.CodecByName(name)
	if err != nil {
		return nil, sferrors.ConfigError{
			Field:      "codec",
			Value:      name,
			Message:    err.Error(),
			Suggestion: "Use json or yaml",
			Err:        err,
		}
	}
	return codec, nil
}

func (c *Config) settings() *Settings {
	if c.Settings == nil {
		c.Settings = DefaultSettings()
	}
	return c.Settings
}
