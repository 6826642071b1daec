package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/sealcfg/internal/config"
	sferrors "github.com/systmms/sealcfg/internal/errors"
	"github.com/systmms/sealcfg/internal/logging"
	"github.com/systmms/sealcfg/pkg/keystore"
	"github.com/systmms/sealcfg/pkg/persist"
	"github.com/systmms/sealcfg/tests/testutil"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Path:   filepath.Join(t.TempDir(), "absent.yaml"),
		Logger: logging.New(false, true),
	}
	require.NoError(t, cfg.Load())

	assert.Equal(t, config.DefaultSettings(), cfg.Settings)
	assert.Equal(t, keystore.BackendKeyring, cfg.Settings.SecretManager.Type)
	assert.Equal(t, 30000, cfg.Settings.SecretManager.TimeoutMs)
}

func TestLoadFullSettings(t *testing.T) {
	t.Parallel()

	path := testutil.WriteTestSettings(t, `version: 1
config_dir: /var/lib/app
codec: yaml
debug: true
secret_manager:
  type: aws-secretsmanager
  service_prefix: myapp
  region: eu-west-1
  endpoint: http://localhost:4566
  timeout_ms: 5000
`)

	cfg := &config.Config{Path: path}
	require.NoError(t, cfg.Load())

	assert.Equal(t, &config.Settings{
		Version:   1,
		ConfigDir: "/var/lib/app",
		Codec:     "yaml",
		Debug:     true,
		SecretManager: config.SecretManagerSettings{
			Type:          "aws-secretsmanager",
			ServicePrefix: "myapp",
			Region:        "eu-west-1",
			Endpoint:      "http://localhost:4566",
			TimeoutMs:     5000,
		},
	}, cfg.Settings)
	assert.Equal(t, "/var/lib/app", cfg.ConfigDir())
}

func TestLoadPartialSettingsKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: testutil.WriteTestSettings(t, "version: 1\nsecret_manager:\n  type: memory\n")}
	require.NoError(t, cfg.Load())

	assert.Equal(t, "memory", cfg.Settings.SecretManager.Type)
	assert.Equal(t, 30000, cfg.Settings.SecretManager.TimeoutMs)
	assert.Equal(t, persist.CodecJSON, cfg.Settings.Codec)
}

func TestLoadWrittenSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	builder := testutil.NewTestSettings(t).
		WithCodec(persist.CodecYAML).
		WithServicePrefix("myapp").
		WithConfigDir("/srv/app").
		WithDebug(true)

	cfg := &config.Config{Path: builder.Write()}
	require.NoError(t, cfg.Load())

	assert.Equal(t, builder.Build(), cfg.Settings)
	assert.Equal(t, keystore.BackendMemory, cfg.Settings.SecretManager.Type)
}

func TestParseEmptyDocument(t *testing.T) {
	t.Parallel()

	settings, err := config.Parse([]byte("# nothing here\n"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), settings)
}

func TestParseRejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name:    "unsupported version",
			content: "version: 2\n",
			field:   "version",
		},
		{
			name:    "unknown codec",
			content: "version: 1\ncodec: toml\n",
			field:   "codec",
		},
		{
			name:    "unknown backend",
			content: "version: 1\nsecret_manager:\n  type: vault\n",
			field:   "secret_manager.type",
		},
		{
			name:    "non-positive timeout",
			content: "version: 1\nsecret_manager:\n  timeout_ms: 0\n",
			field:   "secret_manager.timeout_ms",
		},
		{
			name:    "unknown key",
			content: "version: 1\nproviders: {}\n",
			field:   "(root)",
		},
		{
			name:    "wrong type",
			content: "version: 1\ndebug: sometimes\n",
			field:   "debug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Parse([]byte(tt.content))
			require.Error(t, err)

			var configErr sferrors.ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tt.field, configErr.Field)
			assert.Contains(t, configErr.Message, "schema validation failed")
		})
	}
}

func TestParseRejectsBrokenYAML(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte("version: [1\n"))

	var configErr sferrors.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, configErr.Message, "invalid YAML")
}

func TestLoadUnreadableFile(t *testing.T) {
	t.Parallel()

	// A directory cannot be read as a file.
	cfg := &config.Config{Path: t.TempDir()}
	err := cfg.Load()

	var userErr sferrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Failed to read settings file", userErr.Message)
}

func TestStore(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Settings: config.DefaultSettings()}
	cfg.Settings.SecretManager.Type = keystore.BackendMemory
	store, err := cfg.Store()
	require.NoError(t, err)
	assert.IsType(t, &keystore.Memory{}, store)

	cfg.Settings.SecretManager.Type = keystore.BackendKeyring
	store, err = cfg.Store()
	require.NoError(t, err)
	assert.IsType(t, &keystore.Keyring{}, store)

	cfg.Settings.SecretManager.Type = "vault"
	_, err = cfg.Store()
	var configErr sferrors.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "secret_manager.type", configErr.Field)
}

func TestStoreReportsMissingCloudSettings(t *testing.T) {
	// t.Setenv rules out t.Parallel
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	tests := []struct {
		backend string
		field   string
	}{
		{backend: keystore.BackendAzure, field: "secret_manager.endpoint"},
		{backend: keystore.BackendGCP, field: "secret_manager.project"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &config.Config{Settings: config.DefaultSettings(), Backend: tt.backend}
			_, err := cfg.Store()

			var configErr sferrors.ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tt.field, configErr.Field)
			assert.NotEmpty(t, configErr.Suggestion)
		})
	}
}

func TestStoreBackendOverride(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Settings: config.DefaultSettings(), Backend: keystore.BackendMemory}
	store, err := cfg.Store()
	require.NoError(t, err)
	assert.IsType(t, &keystore.Memory{}, store)
	assert.Equal(t, keystore.BackendKeyring, cfg.Settings.SecretManager.Type, "settings are not rewritten")

	injected := keystore.NewMemory()
	cfg.SecretStore = injected
	store, err = cfg.Store()
	require.NoError(t, err)
	assert.Same(t, injected, store)
}

func TestCodec(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	codec, err := cfg.Codec()
	require.NoError(t, err)
	assert.Equal(t, persist.CodecJSON, codec.Name())

	cfg.Settings.Codec = "yml"
	codec, err = cfg.Codec()
	require.NoError(t, err)
	assert.Equal(t, persist.CodecYAML, codec.Name())

	cfg.Settings.Codec = "ini"
	_, err = cfg.Codec()
	assert.Error(t, err)
}
