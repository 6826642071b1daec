package sealcfg

import (
	"github.com/systmms/sealcfg/internal/logging"
	"github.com/systmms/sealcfg/pkg/keys"
	"github.com/systmms/sealcfg/pkg/keystore"
	"github.com/systmms/sealcfg/pkg/persist"
)

// Logger receives Config diagnostics. *logging.Logger satisfies it.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Metrics observes loads and flushes per durability class. A Metrics value
// that also implements keys.Recorder or persist.Recorder receives keypair and
// cipher events too.
type Metrics interface {
	RecordLoad(class, outcome string)
	RecordFlush(class, outcome string)
}

// Load and flush outcomes.
const (
	OutcomeLoaded  = "loaded"
	OutcomeDefault = "default"
	OutcomeError   = "error"
	OutcomeWritten = "written"
)

// FlushErrorHandler receives every flush failure observed by Close.
type FlushErrorHandler func(key string, err error)

type options struct {
	keys         *keys.Manager
	store        keystore.Store
	codec        persist.Codec
	logger       Logger
	metrics      Metrics
	onFlushError FlushErrorHandler
}

// Option configures a Config.
type Option func(*options)

// WithKeyManager sets the key manager used for SecretSource values.
func WithKeyManager(m *keys.Manager) Option {
	return func(o *options) {
		o.keys = m
	}
}

// WithSecretStore builds the key manager on store. Ignored when
// WithKeyManager is also given.
func WithSecretStore(store keystore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCodec sets the default plaintext codec. JSON is used otherwise.
func WithCodec(codec persist.Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithFlushErrorHandler registers a handler for flush failures at Close.
func WithFlushErrorHandler(h FlushErrorHandler) Option {
	return func(o *options) {
		o.onFlushError = h
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordLoad(string, string)  {}
func (noopMetrics) RecordFlush(string, string) {}

func (o *options) build() (*keys.Manager, *persist.Engine) {
	if o.logger == nil {
		o.logger = logging.FromEnv()
	}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}

	manager := o.keys
	if manager == nil {
		store := o.store
		if store == nil {
			store = keystore.NewKeyring("")
		}
		keyOpts := []keys.Option{keys.WithLogger(o.logger)}
		if r, ok := o.metrics.(keys.Recorder); ok {
			keyOpts = append(keyOpts, keys.WithRecorder(r))
		}
		manager = keys.NewManager(store, keyOpts...)
	}

	var engineOpts []persist.EngineOption
	if r, ok := o.metrics.(persist.Recorder); ok {
		engineOpts = append(engineOpts, persist.WithRecorder(r))
	}
	return manager, persist.NewEngine(o.codec, manager, engineOpts...)
}
