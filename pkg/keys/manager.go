package keys

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/sync/singleflight"

	"github.com/systmms/sealcfg/internal/logging"
	"github.com/systmms/sealcfg/internal/secure"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/keystore"
)

// Keypair resolution outcomes reported to a Recorder.
const (
	OutcomeLoaded    = "loaded"
	OutcomeGenerated = "generated"
	OutcomeFailed    = "failed"
)

// Logger receives key lifecycle messages. Key material is never logged.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
}

// Recorder observes keypair resolutions.
type Recorder interface {
	RecordKeypair(outcome string)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithRecorder sets the manager's metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

// Manager resolves one keypair per namespace, generating and storing it on
// first use. It is safe for concurrent use: concurrent first callers for a
// namespace share a single resolution, so a namespace never ends up with two
// generated keypairs in one process.
type Manager struct {
	store    keystore.Store
	logger   Logger
	recorder Recorder

	mu       sync.RWMutex
	keypairs map[string]*Keypair
	group    singleflight.Group
}

// NewManager creates a key manager backed by store.
func NewManager(store keystore.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		logger:   logging.FromEnv(),
		keypairs: make(map[string]*Keypair),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate returns the keypair for namespace. Stored key material is read
// once; when the secret manager has nothing under namespace a new keypair is
// generated and stored. Malformed stored material fails with
// cfgerrors.ErrKeyFormat and is never overwritten.
func (m *Manager) GetOrCreate(namespace string) (*Keypair, error) {
	if namespace == "" {
		return nil, cfgerrors.KeyStore("resolve", namespace, errors.New("namespace must not be empty"))
	}
	if kp := m.cached(namespace); kp != nil {
		return kp, nil
	}

	v, err, _ := m.group.Do(namespace, func() (interface{}, error) {
		// A flight that finished before this one started has already
		// published its keypair.
		if kp := m.cached(namespace); kp != nil {
			return kp, nil
		}

		kp, outcome, err := m.resolve(namespace)
		m.record(outcome)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.keypairs[namespace] = kp
		m.mu.Unlock()
		return kp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Keypair), nil
}

// Load returns the stored keypair for namespace without generating one.
// A namespace with nothing stored fails with cfgerrors.ErrNotFound.
func (m *Manager) Load(namespace string) (*Keypair, error) {
	if namespace == "" {
		return nil, cfgerrors.KeyStore("load", namespace, errors.New("namespace must not be empty"))
	}
	if kp := m.cached(namespace); kp != nil {
		return kp, nil
	}

	v, err, _ := m.group.Do("load:"+namespace, func() (interface{}, error) {
		if kp := m.cached(namespace); kp != nil {
			return kp, nil
		}

		kp, err := m.read(namespace)
		if err != nil {
			if !errors.Is(err, cfgerrors.ErrNotFound) {
				m.record(OutcomeFailed)
			}
			return nil, err
		}
		m.record(OutcomeLoaded)

		m.mu.Lock()
		defer m.mu.Unlock()
		// A concurrent GetOrCreate may have published first.
		if existing := m.keypairs[namespace]; existing != nil {
			return existing, nil
		}
		m.keypairs[namespace] = kp
		return kp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Keypair), nil
}

func (m *Manager) cached(namespace string) *Keypair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keypairs[namespace]
}

func (m *Manager) resolve(namespace string) (*Keypair, string, error) {
	kp, err := m.read(namespace)
	if err == nil {
		m.logger.Debug("loaded keypair for namespace %s (%s)", namespace, kp.Fingerprint()[:12])
		return kp, OutcomeLoaded, nil
	}
	if !errors.Is(err, cfgerrors.ErrNotFound) {
		return nil, OutcomeFailed, err
	}

	kp, err = m.generate(namespace)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	m.logger.Info("generated keypair for namespace %s (%s)", namespace, kp.Fingerprint()[:12])
	return kp, OutcomeGenerated, nil
}

// read decodes the record stored under namespace. Absence is reported as
// cfgerrors.ErrNotFound, never as a key store failure.
func (m *Manager) read(namespace string) (*Keypair, error) {
	payload, err := m.store.Get(namespace)
	if err != nil {
		if errors.Is(err, cfgerrors.ErrNotFound) || errors.Is(err, cfgerrors.ErrKeyStore) ||
			errors.Is(err, cfgerrors.ErrKeyFormat) {
			return nil, err
		}
		return nil, cfgerrors.KeyStore("get", namespace, err)
	}
	defer secure.Wipe(payload)
	return decodeRecord(namespace, payload)
}

func (m *Manager) generate(namespace string) (*Keypair, error) {
	public, private, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}

	payload, err := encodeRecord(public, private)
	if err != nil {
		return nil, cfgerrors.Serialization("encode key", namespace, err)
	}
	defer secure.Wipe(payload)

	if err := m.store.Set(namespace, payload); err != nil {
		if errors.Is(err, cfgerrors.ErrKeyStore) {
			return nil, err
		}
		return nil, cfgerrors.KeyStore("set", namespace, err)
	}

	kp := &Keypair{namespace: namespace, public: *public}
	kp.private, err = secure.NewKey(private[:])
	if err != nil {
		return nil, err
	}
	return kp, nil
}

func (m *Manager) record(outcome string) {
	if m.recorder != nil {
		m.recorder.RecordKeypair(outcome)
	}
}

// Invalidate drops the in-process copy for namespace. The next GetOrCreate
// re-reads the secret manager.
func (m *Manager) Invalidate(namespace string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keypairs, namespace)
}

// Reset drops every in-process keypair.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keypairs = make(map[string]*Keypair)
}

// Delete removes the stored private key for namespace and its cached copy.
// Data encrypted for the namespace becomes unreadable.
func (m *Manager) Delete(namespace string) error {
	if err := m.store.Delete(namespace); err != nil {
		return err
	}
	m.Invalidate(namespace)
	m.logger.Info("deleted keypair for namespace %s", namespace)
	return nil
}

// Namespaces returns the namespaces with a materialized keypair, sorted.
func (m *Manager) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.keypairs))
	for name := range m.keypairs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
