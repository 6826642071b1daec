package secure

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// KeySize is the size of every key held by this package.
const KeySize = 32

// ErrDestroyed is returned when opening a destroyed Key.
var ErrDestroyed = errors.New("secure key destroyed")

// Key holds a fixed-size private key inside a memguard enclave.
type Key struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy() calls and rejects use after destroy
	destroyed bool
}

// NewKey moves raw into a protected enclave. raw is wiped by memguard once
// copied, so callers must not reuse it.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("secure key must be %d bytes, got %d", KeySize, len(raw))
	}
	return &Key{enclave: memguard.NewEnclave(raw)}, nil
}

// Open decrypts the key into a locked buffer. The caller MUST call Destroy()
// on the returned buffer when done.
func (k *Key) Open() (*memguard.LockedBuffer, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return nil, ErrDestroyed
	}
	return k.enclave.Open()
}

// Destroy drops the enclave. Calling it more than once is safe.
func (k *Key) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.destroyed {
		return
	}
	// The enclave ciphertext is collected with the struct; memguard.Purge()
	// at process exit wipes its session key.
	k.enclave = nil
	k.destroyed = true
}

// Wipe zeroes b. Use it on plaintext and key material that was copied out of
// an enclave.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
