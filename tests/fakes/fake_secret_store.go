package fakes

import (
	"errors"
	"sync"
	"time"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/keystore"
)

// ErrFakeAccessDenied simulates a denied consent prompt.
var ErrFakeAccessDenied = errors.New("fake secret manager: access denied")

// FakeSecretStore is a test double for keystore.Store
type FakeSecretStore struct {
	mu sync.Mutex

	// Entries maps names to stored payloads
	Entries map[string][]byte

	// GetErr is returned by Get() if set (overrides Entries lookup)
	GetErr error

	// SetErr is returned by Set() if set
	SetErr error

	// DeleteErr is returned by Delete() if set
	DeleteErr error

	// GetDelay is slept inside Get() to widen race windows in tests
	GetDelay time.Duration

	gets int
	sets int
}

// NewFakeSecretStore creates an empty fake store
func NewFakeSecretStore() *FakeSecretStore {
	return &FakeSecretStore{Entries: make(map[string][]byte)}
}

// Put seeds a payload without counting it as a Set call
func (f *FakeSecretStore) Put(name string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entries[name] = payload
}

// Get implements keystore.Store
func (f *FakeSecretStore) Get(name string) ([]byte, error) {
	if f.GetDelay > 0 {
		time.Sleep(f.GetDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++

	if f.GetErr != nil {
		return nil, cfgerrors.KeyStore("fake get", name, f.GetErr)
	}
	payload, ok := f.Entries[name]
	if !ok {
		return nil, cfgerrors.NotFound("fake get", name)
	}
	return append([]byte(nil), payload...), nil
}

// Set implements keystore.Store
func (f *FakeSecretStore) Set(name string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetErr != nil {
		return cfgerrors.KeyStore("fake set", name, f.SetErr)
	}
	f.Entries[name] = append([]byte(nil), payload...)
	f.sets++
	return nil
}

// Delete implements keystore.Store
func (f *FakeSecretStore) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DeleteErr != nil {
		return cfgerrors.KeyStore("fake delete", name, f.DeleteErr)
	}
	delete(f.Entries, name)
	return nil
}

// Gets returns the number of Get calls
func (f *FakeSecretStore) Gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// Sets returns the number of successful Set calls
func (f *FakeSecretStore) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// Ensure FakeSecretStore implements keystore.Store
var _ keystore.Store = (*FakeSecretStore)(nil)
