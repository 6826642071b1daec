package fakes

import (
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/systmms/sealcfg/pkg/keystore"
)

// FakeKeyringClient is a test double for keystore.KeyringClient
type FakeKeyringClient struct {
	mu sync.Mutex

	// Secrets is a map of service -> account -> value
	Secrets map[string]map[string]string

	// Err is returned by every call if set
	Err error
}

// NewFakeKeyringClient creates a new fake keyring client
func NewFakeKeyringClient() *FakeKeyringClient {
	return &FakeKeyringClient{Secrets: make(map[string]map[string]string)}
}

// Get retrieves a secret from the fake keyring
func (f *FakeKeyringClient) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}
	if accounts, ok := f.Secrets[service]; ok {
		if value, ok := accounts[account]; ok {
			return value, nil
		}
	}
	return "", keyring.ErrNotFound
}

// Set stores a secret in the fake keyring
func (f *FakeKeyringClient) Set(service, account, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string]string)
	}
	f.Secrets[service][account] = secret
	return nil
}

// Delete removes a secret from the fake keyring
func (f *FakeKeyringClient) Delete(service, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.Secrets[service][account]; !ok {
		return keyring.ErrNotFound
	}
	delete(f.Secrets[service], account)
	return nil
}

// Ensure FakeKeyringClient implements keystore.KeyringClient
var _ keystore.KeyringClient = (*FakeKeyringClient)(nil)
