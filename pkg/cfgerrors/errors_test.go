package cfgerrors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	t.Parallel()

	err := IO("read", "/tmp/app.json", fs.ErrPermission)

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.NotErrorIs(t, err, ErrDecrypt)

	var typed *Error
	assert.True(t, errors.As(err, &typed))
	assert.Equal(t, "read", typed.Op)
	assert.Equal(t, "/tmp/app.json", typed.Subject)
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "with_cause",
			err:  KeyStore("get", "app", errors.New("dbus unavailable")),
			want: "get: secret manager unavailable (app): dbus unavailable",
		},
		{
			name: "without_cause",
			err:  NotFound("load", "/etc/app.json"),
			want: "load: not found (/etc/app.json)",
		},
		{
			name: "decrypt",
			err:  Decrypt("secret.bin", errors.New("bad chunk")),
			want: "decrypt: decryption failed (secret.bin): bad chunk",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrKeyFormat, Kind(KeyFormat("ns", errors.New("short key"))))
	assert.Equal(t, ErrSerialization, Kind(Serialization("decode", "a.json", nil)))
	assert.Equal(t, ErrTypeNotRegistered, Kind(TypeNotRegistered("main.Foo", nil)))
	assert.Nil(t, Kind(errors.New("unrelated")))
	assert.Nil(t, Kind(nil))
}
