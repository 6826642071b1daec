package sealcfg

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/systmms/sealcfg/internal/cache"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/keys"
	"github.com/systmms/sealcfg/pkg/persist"
)

// ErrClosed is returned by every operation on a closed Config.
var ErrClosed = errors.New("sealcfg: config is closed")

// Config is a typed cache of configuration values. It is safe for concurrent
// use. Close must be called to write dirty values back; Run does so on every
// exit path.
type Config struct {
	cache   *cache.Cache
	engine  *persist.Engine
	keys    *keys.Manager
	logger  Logger
	metrics Metrics
	onFlush FlushErrorHandler

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	mu        sync.Mutex
	flushErrs []error
}

// New creates an empty Config. Nothing is read until a value is requested.
func New(opts ...Option) *Config {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	manager, engine := o.build()

	return &Config{
		cache:   cache.New(),
		engine:  engine,
		keys:    manager,
		logger:  o.logger,
		metrics: o.metrics,
		onFlush: o.onFlushError,
	}
}

// Keys returns the key manager used for SecretSource values.
func (c *Config) Keys() *keys.Manager {
	return c.keys
}

// Len returns the number of cached values.
func (c *Config) Len() int {
	return c.cache.Len()
}

// Get returns a copy of T's current value, loading it on first access. The
// copy is shallow: maps and slices inside T are shared with the cache and
// must only be changed through GetMut or Update.
func Get[T any](c *Config) (T, error) {
	var zero T
	slot, _, err := slotOf[T](c)
	if err != nil {
		return zero, err
	}

	slot.RLock()
	defer slot.RUnlock()
	v, err := cache.Value[T](slot)
	if err != nil {
		return zero, err
	}
	return *v, nil
}

// Update runs fn with exclusive access to T's value and marks it dirty.
func Update[T any](c *Config, fn func(*T) error) error {
	g, err := GetMut[T](c)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(g.Value())
}

// Save writes v to T's storage immediately and replaces the cached value.
// The slot is clean afterwards.
func Save[T any](c *Config, v T) error {
	d, err := describeOpen[T](c)
	if err != nil {
		return err
	}

	created := false
	slot, err := c.cache.Slot(d.typ, func() (*cache.Slot, error) {
		if err := write(c, d, &v); err != nil {
			return nil, err
		}
		created = true
		value := v
		return newSlot(c, d, &value), nil
	})
	if err != nil {
		return err
	}
	if created {
		return nil
	}

	if err := c.lockOpen(slot); err != nil {
		return err
	}
	defer slot.Unlock()
	cur, err := cache.Value[T](slot)
	if err != nil {
		return err
	}
	if err := write(c, d, &v); err != nil {
		return err
	}
	*cur = v
	slot.MarkClean()
	return nil
}

// WriteFile writes v to T's storage without touching the cache. A cached
// value for T keeps its contents and dirty state, and is written over v at
// Close if dirty.
func WriteFile[T any](c *Config, v T) error {
	d, err := describeOpen[T](c)
	if err != nil {
		return err
	}
	if !d.persisted() {
		return cfgerrors.TypeNotRegistered(d.key, errors.New("type has no storage path"))
	}
	return write(c, d, &v)
}

// Take removes T from the cache and returns its value. Pending changes are
// not written. When T is not cached its stored value or default is returned.
func Take[T any](c *Config) (T, error) {
	var zero T
	d, err := describeOpen[T](c)
	if err != nil {
		return zero, err
	}

	slot, ok := c.cache.Remove(d.typ)
	if !ok {
		return load(c, d)
	}

	slot.Lock()
	defer slot.Unlock()
	v, err := cache.Value[T](slot)
	if err != nil {
		return zero, err
	}
	if slot.Dirty() {
		c.logger.Debug("discarding unsaved changes to %s", d.key)
	}
	return *v, nil
}

// Close writes every dirty persisted value back to disk, once, in the order
// the values were first loaded. Each write holds the value's lock. Failures
// are logged, passed to the flush error handler and returned joined. Later
// calls return the same result.
func (c *Config) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		var errs []error
		for _, slot := range c.cache.Slots() {
			if !slot.Flushable() {
				continue
			}

			slot.Lock()
			attempted, err := slot.Flush()
			slot.Unlock()
			if !attempted {
				continue
			}

			if err != nil {
				c.metrics.RecordFlush(slot.Class(), OutcomeError)
				c.logger.Error("failed to save %s: %v", slot.Key(), err)
				if c.onFlush != nil {
					c.onFlush(slot.Key(), err)
				}
				errs = append(errs, fmt.Errorf("flush %s: %w", slot.Key(), err))
				continue
			}
			c.metrics.RecordFlush(slot.Class(), OutcomeWritten)
			c.logger.Debug("saved %s", slot.Key())
		}

		c.mu.Lock()
		c.flushErrs = errs
		c.mu.Unlock()
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// Closed reports whether Close has been called.
func (c *Config) Closed() bool {
	return c.closed.Load()
}

// FlushErrors returns the failures collected by Close.
func (c *Config) FlushErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.flushErrs...)
}

// Run creates a Config, passes it to fn and closes it on every exit path,
// including a panic in fn. Flush failures are joined to fn's error.
func Run(fn func(*Config) error, opts ...Option) (err error) {
	c := New(opts...)
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(c)
}

// describeOpen checks the Config is open and describes T.
func describeOpen[T any](c *Config) (descriptor[T], error) {
	if c.closed.Load() {
		return descriptor[T]{}, ErrClosed
	}
	return describe[T]()
}

// lockOpen write-locks slot. It fails with ErrClosed once Close has started,
// so every slot changed under this lock is in the set Close flushes.
func (c *Config) lockOpen(slot *cache.Slot) error {
	slot.Lock()
	if c.closed.Load() {
		slot.Unlock()
		return ErrClosed
	}
	return nil
}

// slotOf returns T's slot, loading the value on first access.
func slotOf[T any](c *Config) (*cache.Slot, descriptor[T], error) {
	d, err := describeOpen[T](c)
	if err != nil {
		return nil, d, err
	}
	slot, err := c.cache.Slot(d.typ, func() (*cache.Slot, error) {
		v, err := load(c, d)
		if err != nil {
			return nil, err
		}
		return newSlot(c, d, &v), nil
	})
	return slot, d, err
}

func newSlot[T any](c *Config, d descriptor[T], value *T) *cache.Slot {
	var flush cache.FlushFunc
	if d.persisted() {
		flush = func(v interface{}) error {
			return c.engine.Store(d.loc, v)
		}
	}
	return cache.NewSlot(d.key, d.typ, d.class, value, flush)
}

// load reads T from storage, falling back to its default when nothing is
// stored. A stored value that cannot be read is an error.
func load[T any](c *Config, d descriptor[T]) (T, error) {
	if !d.persisted() {
		c.metrics.RecordLoad(d.class, OutcomeDefault)
		return d.def(), nil
	}

	var v T
	err := c.engine.Load(d.loc, &v)
	switch {
	case err == nil:
		c.metrics.RecordLoad(d.class, OutcomeLoaded)
		c.logger.Debug("loaded %s from %s", d.key, d.loc.Path)
		return v, nil
	case errors.Is(err, cfgerrors.ErrNotFound):
		c.metrics.RecordLoad(d.class, OutcomeDefault)
		c.logger.Debug("no stored value for %s, using default", d.key)
		return d.def(), nil
	default:
		c.metrics.RecordLoad(d.class, OutcomeError)
		var zero T
		return zero, fmt.Errorf("load %s: %w", d.key, err)
	}
}

// write stores v at T's location. Ephemeral values have nowhere to go.
func write[T any](c *Config, d descriptor[T], v *T) error {
	if !d.persisted() {
		return nil
	}
	if err := c.engine.Store(d.loc, v); err != nil {
		c.metrics.RecordFlush(d.class, OutcomeError)
		return err
	}
	c.metrics.RecordFlush(d.class, OutcomeWritten)
	return nil
}
