package keystore

import (
	"encoding/base64"
	"errors"
	"os"
	"os/user"

	"github.com/zalando/go-keyring"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// KeyringClient abstracts the OS keyring calls for testing.
type KeyringClient interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
	Delete(service, account string) error
}

// osKeyring forwards to go-keyring, which picks the platform implementation.
type osKeyring struct{}

func (osKeyring) Get(service, account string) (string, error) {
	return keyring.Get(service, account)
}

func (osKeyring) Set(service, account, secret string) error {
	return keyring.Set(service, account, secret)
}

func (osKeyring) Delete(service, account string) error {
	return keyring.Delete(service, account)
}

// Keyring stores payloads in the OS secret manager. The namespace becomes the
// keyring service and the current user the account.
type Keyring struct {
	servicePrefix string
	account       string
	client        KeyringClient
}

// NewKeyring creates a keyring backend using the platform secret manager.
func NewKeyring(servicePrefix string) *Keyring {
	return NewKeyringWithClient(servicePrefix, osKeyring{})
}

// NewKeyringWithClient creates a keyring backend with a custom client.
func NewKeyringWithClient(servicePrefix string, client KeyringClient) *Keyring {
	return &Keyring{
		servicePrefix: servicePrefix,
		account:       currentAccount(),
		client:        client,
	}
}

// Account returns the keyring account entries are stored under.
func (k *Keyring) Account() string {
	return k.account
}

// Get implements Store.
func (k *Keyring) Get(name string) ([]byte, error) {
	service := applyPrefix(k.servicePrefix, name)
	encoded, err := k.client.Get(service, k.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, cfgerrors.NotFound("keyring get", service)
		}
		return nil, cfgerrors.KeyStore("keyring get", service, err)
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, cfgerrors.KeyFormat(service, err)
	}
	return payload, nil
}

// Set implements Store.
func (k *Keyring) Set(name string, payload []byte) error {
	service := applyPrefix(k.servicePrefix, name)
	encoded := base64.StdEncoding.EncodeToString(payload)
	if err := k.client.Set(service, k.account, encoded); err != nil {
		return cfgerrors.KeyStore("keyring set", service, err)
	}
	return nil
}

// Delete implements Store.
func (k *Keyring) Delete(name string) error {
	service := applyPrefix(k.servicePrefix, name)
	if err := k.client.Delete(service, k.account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return cfgerrors.KeyStore("keyring delete", service, err)
	}
	return nil
}

func currentAccount() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "sealcfg"
}

// Ensure Keyring implements Store
var _ Store = (*Keyring)(nil)
