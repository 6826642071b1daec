// Package cache holds exactly one boxed value per Go type.
package cache

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// FlushFunc writes a slot's value back to durable storage. It is called with
// the slot's write lock held.
type FlushFunc func(value interface{}) error

// Slot is the single cache entry for one type. Its lock serializes access to
// the value; the cache's own lock only guards the index.
type Slot struct {
	mu sync.RWMutex

	key   string
	typ   reflect.Type
	class string
	seq   uint64
	flush FlushFunc

	value interface{}
	dirty bool
}

// NewSlot creates a slot holding value. flush may be nil for values that are
// never written back.
func NewSlot(key string, typ reflect.Type, class string, value interface{}, flush FlushFunc) *Slot {
	return &Slot{key: key, typ: typ, class: class, value: value, flush: flush}
}

// Key returns the slot's config key.
func (s *Slot) Key() string { return s.key }

// Type returns the type stored in the slot.
func (s *Slot) Type() reflect.Type { return s.typ }

// Class returns the durability class of the slot's type.
func (s *Slot) Class() string { return s.class }

// Seq returns the creation order of the slot within its cache.
func (s *Slot) Seq() uint64 { return s.seq }

// Lock acquires the slot for writing.
func (s *Slot) Lock() { s.mu.Lock() }

// Unlock releases a write acquisition.
func (s *Slot) Unlock() { s.mu.Unlock() }

// RLock acquires the slot for reading.
func (s *Slot) RLock() { s.mu.RLock() }

// RUnlock releases a read acquisition.
func (s *Slot) RUnlock() { s.mu.RUnlock() }

// Value returns the boxed value. The caller must hold the slot lock.
func (s *Slot) Value() interface{} { return s.value }

// Set replaces the boxed value. The caller must hold the write lock.
func (s *Slot) Set(value interface{}) { s.value = value }

// Dirty reports whether the value changed since it was last written. The
// caller must hold the slot lock.
func (s *Slot) Dirty() bool { return s.dirty }

// MarkDirty flags the value for write-back. The caller must hold the write
// lock.
func (s *Slot) MarkDirty() { s.dirty = true }

// MarkClean clears the dirty flag. The caller must hold the write lock.
func (s *Slot) MarkClean() { s.dirty = false }

// Flushable reports whether the slot has a write-back function.
func (s *Slot) Flushable() bool { return s.flush != nil }

// Flush writes the value back when it is dirty and clears the flag on
// success. The caller must hold the write lock. It reports whether a write
// was attempted.
func (s *Slot) Flush() (bool, error) {
	if s.flush == nil || !s.dirty {
		return false, nil
	}
	if err := s.flush(s.value); err != nil {
		return true, err
	}
	s.dirty = false
	return true, nil
}

// Value performs a checked downcast of the slot's value to *T. The caller
// must hold the slot lock.
func Value[T any](s *Slot) (*T, error) {
	v, ok := s.value.(*T)
	if !ok {
		return nil, cfgerrors.TypeNotRegistered(s.key,
			fmt.Errorf("slot holds %T, not %v", s.value, reflect.TypeOf((*T)(nil)).Elem()))
	}
	return v, nil
}

// CreateFunc builds the slot for a type on first access.
type CreateFunc func() (*Slot, error)

type pending struct {
	done chan struct{}
	slot *Slot
	err  error
}

// Cache indexes slots by type.
type Cache struct {
	mu      sync.Mutex
	slots   map[reflect.Type]*Slot
	keys    map[string]*Slot
	pending map[reflect.Type]*pending
	seq     uint64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		slots:   make(map[reflect.Type]*Slot),
		keys:    make(map[string]*Slot),
		pending: make(map[reflect.Type]*pending),
	}
}

// Lookup returns the slot for typ if one exists.
func (c *Cache) Lookup(typ reflect.Type) (*Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[typ]
	return s, ok
}

// ByKey returns the slot registered under key.
func (c *Cache) ByKey(key string) (*Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.keys[key]
	return s, ok
}

// Slot returns the slot for typ, running create when none exists. create runs
// at most once per type at a time: concurrent callers for the same type wait
// for it and share its result, while other types proceed independently. A
// failed creation is not cached.
func (c *Cache) Slot(typ reflect.Type, create CreateFunc) (*Slot, error) {
	c.mu.Lock()
	if s, ok := c.slots[typ]; ok {
		c.mu.Unlock()
		return s, nil
	}
	if p, ok := c.pending[typ]; ok {
		c.mu.Unlock()
		<-p.done
		return p.slot, p.err
	}
	p := &pending{done: make(chan struct{})}
	c.pending[typ] = p
	c.mu.Unlock()

	defer func() {
		if p.slot == nil && p.err == nil {
			// create panicked
			p.err = fmt.Errorf("creating slot for %v did not complete", typ)
		}
		c.mu.Lock()
		delete(c.pending, typ)
		c.mu.Unlock()
		close(p.done)
	}()

	s, err := create()
	if err != nil {
		p.err = err
		return nil, err
	}
	if s.typ != typ {
		p.err = cfgerrors.TypeNotRegistered(s.key, fmt.Errorf("slot for %v created for %v", typ, s.typ))
		return nil, p.err
	}

	if err := c.Insert(s); err != nil {
		p.err = err
		return nil, err
	}
	p.slot = s
	return s, nil
}

// Insert adds s to the cache. It fails when its type or key is already
// present.
func (c *Cache) Insert(s *Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.slots[s.typ]; ok {
		return fmt.Errorf("cache already holds %v", s.typ)
	}
	if other, ok := c.keys[s.key]; ok {
		return fmt.Errorf("config key %q already used by %v", s.key, other.typ)
	}
	c.seq++
	s.seq = c.seq
	c.slots[s.typ] = s
	c.keys[s.key] = s
	return nil
}

// Remove drops the slot for typ and returns it.
func (c *Cache) Remove(typ reflect.Type) (*Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[typ]
	if !ok {
		return nil, false
	}
	delete(c.slots, typ)
	delete(c.keys, s.key)
	return s, true
}

// Slots returns every slot in creation order.
func (c *Cache) Slots() []*Slot {
	c.mu.Lock()
	slots := make([]*Slot, 0, len(c.slots))
	for _, s := range c.slots {
		slots = append(slots, s)
	}
	c.mu.Unlock()

	sort.Slice(slots, func(i, j int) bool { return slots[i].seq < slots[j].seq })
	return slots
}

// Len returns the number of slots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
