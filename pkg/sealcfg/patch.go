package sealcfg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/systmms/sealcfg/internal/cache"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// ErrPatchApplied is returned when a Patch is applied a second time.
var ErrPatchApplied = errors.New("sealcfg: patch already applied")

// Patch is a staged replacement for one value. Nothing changes until Apply.
type Patch[T any] struct {
	key   string
	value T

	mu      sync.Mutex
	applied bool
}

// Upgrade stages v as the next value of the config key key.
func Upgrade[T any](key string, v T) *Patch[T] {
	return &Patch[T]{key: key, value: v}
}

// UpgradeWith stages the value fn computes from a snapshot of T's current
// value. No lock is held while fn runs.
func UpgradeWith[T any](c *Config, key string, fn func(current T) (T, error)) (*Patch[T], error) {
	current, err := Get[T](c)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	return Upgrade(key, next), nil
}

// Key returns the config key the patch targets.
func (p *Patch[T]) Key() string {
	return p.key
}

// Value returns the staged value.
func (p *Patch[T]) Value() T {
	return p.value
}

// Apply replaces T's value in c and marks it dirty. It fails with
// cfgerrors.ErrTypeNotRegistered when the patch key is not T's config key.
func (p *Patch[T]) Apply(c *Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applied {
		return ErrPatchApplied
	}

	slot, d, err := slotOf[T](c)
	if err != nil {
		return err
	}
	if d.key != p.key {
		return cfgerrors.TypeNotRegistered(p.key, fmt.Errorf("%v is registered as %q", d.typ, d.key))
	}

	if err := c.lockOpen(slot); err != nil {
		return err
	}
	defer slot.Unlock()
	v, err := cache.Value[T](slot)
	if err != nil {
		return err
	}
	*v = p.value
	slot.MarkDirty()
	p.applied = true
	return nil
}
