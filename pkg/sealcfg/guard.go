package sealcfg

import (
	"sync"

	"github.com/systmms/sealcfg/internal/cache"
)

// MutGuard is exclusive access to one cached value. Only T's slot is locked;
// other types stay available. Release must be called exactly once; extra
// calls are ignored.
type MutGuard[T any] struct {
	slot  *cache.Slot
	value *T
	once  sync.Once
}

// GetMut locks T's value for writing, loading it on first access, and marks
// it dirty.
func GetMut[T any](c *Config) (*MutGuard[T], error) {
	slot, _, err := slotOf[T](c)
	if err != nil {
		return nil, err
	}

	if err := c.lockOpen(slot); err != nil {
		return nil, err
	}
	v, err := cache.Value[T](slot)
	if err != nil {
		slot.Unlock()
		return nil, err
	}
	slot.MarkDirty()
	return &MutGuard[T]{slot: slot, value: v}, nil
}

// Value returns the cached value. It must not be used after Release.
func (g *MutGuard[T]) Value() *T {
	return g.value
}

// Release unlocks the value.
func (g *MutGuard[T]) Release() {
	g.once.Do(g.slot.Unlock)
}
