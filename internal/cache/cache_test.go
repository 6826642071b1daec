package cache_test

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/sealcfg/internal/cache"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

type alpha struct{ N int }
type beta struct{ S string }

var (
	alphaType = reflect.TypeOf(alpha{})
	betaType  = reflect.TypeOf(beta{})
)

func slotFor[T any](key string, value T, flush cache.FlushFunc) *cache.Slot {
	return cache.NewSlot(key, reflect.TypeOf(value), "persist", &value, flush)
}

func TestSlotCreatedOnce(t *testing.T) {
	t.Parallel()

	c := cache.New()
	var calls atomic.Int32
	create := func() (*cache.Slot, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return slotFor("alpha", alpha{N: 1}, nil), nil
	}

	const workers = 20
	slots := make([]*cache.Slot, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Slot(alphaType, create)
			assert.NoError(t, err)
			slots[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, s := range slots {
		assert.Same(t, slots[0], s)
	}
	assert.Equal(t, 1, c.Len())
}

func TestSlotCreationDoesNotBlockOtherTypes(t *testing.T) {
	t.Parallel()

	c := cache.New()
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = c.Slot(alphaType, func() (*cache.Slot, error) {
			close(started)
			<-release
			return slotFor("alpha", alpha{}, nil), nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Slot(betaType, func() (*cache.Slot, error) {
			return slotFor("beta", beta{}, nil), nil
		})
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("creating beta waited for alpha")
	}
	close(release)
}

func TestFailedCreationIsNotCached(t *testing.T) {
	t.Parallel()

	c := cache.New()
	boom := errors.New("boom")

	_, err := c.Slot(alphaType, func() (*cache.Slot, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	s, err := c.Slot(alphaType, func() (*cache.Slot, error) {
		return slotFor("alpha", alpha{N: 2}, nil), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alpha", s.Key())
}

func TestSlotRejectsMismatchedType(t *testing.T) {
	t.Parallel()

	c := cache.New()
	_, err := c.Slot(alphaType, func() (*cache.Slot, error) {
		return slotFor("beta", beta{}, nil), nil
	})
	assert.ErrorIs(t, err, cfgerrors.ErrTypeNotRegistered)
	assert.Zero(t, c.Len())
}

func TestInsertRejectsDuplicates(t *testing.T) {
	t.Parallel()

	c := cache.New()
	require.NoError(t, c.Insert(slotFor("alpha", alpha{}, nil)))

	assert.Error(t, c.Insert(slotFor("other", alpha{}, nil)), "same type")
	assert.Error(t, c.Insert(slotFor("alpha", beta{}, nil)), "same key")
	assert.Equal(t, 1, c.Len())
}

func TestLookupByKeyAndRemove(t *testing.T) {
	t.Parallel()

	c := cache.New()
	require.NoError(t, c.Insert(slotFor("alpha", alpha{N: 7}, nil)))

	s, ok := c.ByKey("alpha")
	require.True(t, ok)
	assert.Equal(t, alphaType, s.Type())

	removed, ok := c.Remove(alphaType)
	require.True(t, ok)
	assert.Same(t, s, removed)

	_, ok = c.Lookup(alphaType)
	assert.False(t, ok)
	_, ok = c.ByKey("alpha")
	assert.False(t, ok)
	_, ok = c.Remove(alphaType)
	assert.False(t, ok)
}

func TestSlotsInCreationOrder(t *testing.T) {
	t.Parallel()

	c := cache.New()
	require.NoError(t, c.Insert(slotFor("beta", beta{}, nil)))
	require.NoError(t, c.Insert(slotFor("alpha", alpha{}, nil)))

	slots := c.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, "beta", slots[0].Key())
	assert.Equal(t, "alpha", slots[1].Key())
	assert.Less(t, slots[0].Seq(), slots[1].Seq())
}

func TestValueDowncast(t *testing.T) {
	t.Parallel()

	s := slotFor("alpha", alpha{N: 5}, nil)
	s.RLock()
	defer s.RUnlock()

	v, err := cache.Value[alpha](s)
	require.NoError(t, err)
	assert.Equal(t, 5, v.N)

	_, err = cache.Value[beta](s)
	assert.ErrorIs(t, err, cfgerrors.ErrTypeNotRegistered)
}

func TestFlush(t *testing.T) {
	t.Parallel()

	var written []int
	fail := false
	s := slotFor("alpha", alpha{N: 1}, func(v interface{}) error {
		if fail {
			return errors.New("disk full")
		}
		written = append(written, v.(*alpha).N)
		return nil
	})

	s.Lock()
	defer s.Unlock()

	attempted, err := s.Flush()
	require.NoError(t, err)
	assert.False(t, attempted, "clean slots are not written")

	s.MarkDirty()
	fail = true
	attempted, err = s.Flush()
	assert.True(t, attempted)
	assert.Error(t, err)
	assert.True(t, s.Dirty(), "a failed flush keeps the slot dirty")

	fail = false
	attempted, err = s.Flush()
	require.NoError(t, err)
	assert.True(t, attempted)
	assert.False(t, s.Dirty())
	assert.Equal(t, []int{1}, written)
}

func TestFlushWithoutWriteBack(t *testing.T) {
	t.Parallel()

	s := slotFor("alpha", alpha{}, nil)
	s.Lock()
	defer s.Unlock()

	s.MarkDirty()
	assert.False(t, s.Flushable())
	attempted, err := s.Flush()
	assert.NoError(t, err)
	assert.False(t, attempted)
}
