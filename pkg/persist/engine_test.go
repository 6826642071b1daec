package persist_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/sealcfg/internal/logging"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/cipher"
	"github.com/systmms/sealcfg/pkg/keys"
	"github.com/systmms/sealcfg/pkg/persist"
	"github.com/systmms/sealcfg/tests/fakes"
)

type settings struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

type cipherRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *cipherRecorder) RecordCipher(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.calls = append(r.calls, op+":"+outcome)
}

func newEngine(t *testing.T, opts ...persist.EngineOption) (*persist.Engine, *fakes.FakeSecretStore) {
	t.Helper()

	store := fakes.NewFakeSecretStore()
	m := keys.NewManager(store, keys.WithLogger(logging.New(false, true)))
	return persist.NewEngine(nil, m, opts...), store
}

func TestPlaintextRoundTrip(t *testing.T) {
	t.Parallel()

	engine, store := newEngine(t)
	loc := persist.Location{Path: filepath.Join(t.TempDir(), "nested", "dir", "settings.json")}

	require.NoError(t, engine.Store(loc, settings{Name: "svc", Count: 3}))

	var got settings
	require.NoError(t, engine.Load(loc, &got))
	assert.Equal(t, settings{Name: "svc", Count: 3}, got)
	assert.Zero(t, store.Sets(), "plaintext values never touch the secret manager")

	raw, err := os.ReadFile(loc.Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name": "svc"`)
}

func TestEncryptedRoundTrip(t *testing.T) {
	t.Parallel()

	rec := &cipherRecorder{}
	engine, store := newEngine(t, persist.WithRecorder(rec))
	loc := persist.Location{Path: filepath.Join(t.TempDir(), "secret.bin"), Namespace: "app"}

	require.NoError(t, engine.Store(loc, settings{Name: "hunter2", Count: 1}))

	raw, err := os.ReadFile(loc.Path)
	require.NoError(t, err)
	assert.True(t, cipher.IsEncrypted(raw))
	assert.False(t, strings.Contains(string(raw), "hunter2"))

	// The plaintext codec cannot read the encrypted file.
	var viaPlain settings
	err = engine.Load(persist.Location{Path: loc.Path}, &viaPlain)
	assert.ErrorIs(t, err, cfgerrors.ErrSerialization)

	var got settings
	require.NoError(t, engine.Load(loc, &got))
	assert.Equal(t, "hunter2", got.Name)
	assert.Equal(t, 1, store.Sets())
	assert.Equal(t, []string{"encrypt:ok", "decrypt:ok"}, rec.calls)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	engine, store := newEngine(t)

	for _, loc := range []persist.Location{
		{Path: filepath.Join(t.TempDir(), "absent.json")},
		{Path: filepath.Join(t.TempDir(), "absent.bin"), Namespace: "app"},
	} {
		var got settings
		err := engine.Load(loc, &got)
		require.Error(t, err)
		assert.ErrorIs(t, err, cfgerrors.ErrNotFound)
		assert.False(t, engine.Exists(loc))
	}
	assert.Zero(t, store.Gets(), "an absent secret file must not resolve a keypair")
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content []byte
		loc     func(path string) persist.Location
		wantErr error
	}{
		{
			name:    "invalid_json",
			content: []byte("{not json"),
			loc:     func(p string) persist.Location { return persist.Location{Path: p} },
			wantErr: cfgerrors.ErrSerialization,
		},
		{
			name:    "unknown_field",
			content: []byte(`{"name":"x","extra":true}`),
			loc:     func(p string) persist.Location { return persist.Location{Path: p} },
			wantErr: cfgerrors.ErrSerialization,
		},
		{
			name:    "concatenated_values",
			content: []byte(`{"name":"a"} {"name":"b"}`),
			loc:     func(p string) persist.Location { return persist.Location{Path: p} },
			wantErr: cfgerrors.ErrSerialization,
		},
		{
			name:    "trailing_garbage",
			content: []byte(`{"name":"a"}` + "\ngarbage"),
			loc:     func(p string) persist.Location { return persist.Location{Path: p} },
			wantErr: cfgerrors.ErrSerialization,
		},
		{
			name:    "plaintext_in_secret_location",
			content: []byte(`{"name":"x"}`),
			loc:     func(p string) persist.Location { return persist.Location{Path: p, Namespace: "app"} },
			wantErr: cfgerrors.ErrDecrypt,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine, _ := newEngine(t)
			path := filepath.Join(t.TempDir(), "value")
			require.NoError(t, os.WriteFile(path, tt.content, 0600))

			var got settings
			err := engine.Load(tt.loc(path), &got)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSecretDecodeFailureIsAnError(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t)
	loc := persist.Location{Path: filepath.Join(t.TempDir(), "secret.bin"), Namespace: "app"}

	// Decrypts fine but does not decode into settings.
	require.NoError(t, engine.WriteBytes(loc, []byte(`["not", "an", "object"]`)))

	var got settings
	err := engine.Load(loc, &got)
	assert.ErrorIs(t, err, cfgerrors.ErrSerialization)
}

func TestEncryptedLocationWithoutKeyManager(t *testing.T) {
	t.Parallel()

	engine := persist.NewEngine(persist.JSONCodec{}, nil)
	loc := persist.Location{Path: filepath.Join(t.TempDir(), "secret.bin"), Namespace: "app"}

	err := engine.Store(loc, settings{})
	assert.ErrorIs(t, err, cfgerrors.ErrKeyStore)
	assert.NoFileExists(t, loc.Path)
}

func TestKeyStoreFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	engine, store := newEngine(t)
	store.GetErr = fakes.ErrFakeAccessDenied
	loc := persist.Location{Path: filepath.Join(t.TempDir(), "secret.bin"), Namespace: "app"}

	err := engine.Store(loc, settings{Name: "x"})
	assert.ErrorIs(t, err, cfgerrors.ErrKeyStore)
	assert.NoFileExists(t, loc.Path)
}

func TestPerLocationCodec(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t)
	loc := persist.Location{Path: filepath.Join(t.TempDir(), "settings.yaml"), Codec: persist.YAMLCodec{}}

	require.NoError(t, engine.Store(loc, settings{Name: "svc", Count: 2}))

	raw, err := os.ReadFile(loc.Path)
	require.NoError(t, err)
	assert.Equal(t, "name: svc\ncount: 2\n", string(raw))

	var got settings
	require.NoError(t, engine.Load(loc, &got))
	assert.Equal(t, settings{Name: "svc", Count: 2}, got)
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cfg")
	path := filepath.Join(dir, "value.json")

	require.NoError(t, persist.WriteFileAtomic(path, []byte("first")))
	require.NoError(t, persist.WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(persist.FileMode), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(persist.DirMode), dirInfo.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteFileAtomicIntoFile(t *testing.T) {
	t.Parallel()

	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0600))

	err := persist.WriteFileAtomic(filepath.Join(parent, "child.json"), []byte("{}"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, cfgerrors.ErrIO))
}

func TestCodecByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: persist.CodecJSON},
		{name: "json", want: persist.CodecJSON},
		{name: "yaml", want: persist.CodecYAML},
		{name: "yml", want: persist.CodecYAML},
		{name: "toml", wantErr: true},
	}

	for _, tt := range tests {
		codec, err := persist.CodecByName(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, codec.Name())
	}
}

func TestJSONCodecRejectsTrailingData(t *testing.T) {
	t.Parallel()

	var got settings
	require.NoError(t, persist.JSONCodec{}.Unmarshal([]byte("{\"name\":\"a\"}\n\n"), &got))
	assert.Equal(t, "a", got.Name)

	err := persist.JSONCodec{}.Unmarshal([]byte(`{"name":"a"} {"name":"b"} garbage`), &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected data after JSON value")

	assert.Error(t, persist.JSONCodec{}.Unmarshal([]byte(`{"name":"a"}}`), &got))
}
