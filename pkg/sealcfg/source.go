package sealcfg

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/persist"
)

// Source is implemented by every configuration type. Values of a type that
// only implements Source live in memory and are never written to disk.
type Source[T any] interface {
	Default() T
}

// PersistSource is a Source stored as plaintext at StoragePath.
type PersistSource[T any] interface {
	Source[T]
	StoragePath() string
}

// SecretSource is a PersistSource encrypted at rest to the keypair of
// Namespace.
type SecretSource[T any] interface {
	PersistSource[T]
	Namespace() string
}

// Keyed lets a type choose its config key. Without it the key is the type's
// package path and name.
type Keyed interface {
	ConfigKey() string
}

// Coded lets a type override the Config's codec.
type Coded interface {
	Codec() persist.Codec
}

// Durability classes.
const (
	ClassEphemeral = "ephemeral"
	ClassPersist   = "persist"
	ClassSecret    = "secret"
)

// descriptor is everything Config needs to know about T, read once from its
// capability methods.
type descriptor[T any] struct {
	typ   reflect.Type
	key   string
	class string
	loc   persist.Location
	def   func() T
}

func (d descriptor[T]) persisted() bool {
	return d.class != ClassEphemeral
}

// describe dispatches on the capability interfaces T implements, through
// value or pointer receivers.
func describe[T any]() (descriptor[T], error) {
	var zero T
	typ := reflect.TypeOf(&zero).Elem()

	src, ok := as[Source[T]](&zero)
	if !ok {
		return descriptor[T]{}, cfgerrors.TypeNotRegistered(typ.String(),
			fmt.Errorf("%v does not implement sealcfg.Source[%v]", typ, typ))
	}

	d := descriptor[T]{
		typ:   typ,
		key:   defaultKey(typ),
		class: ClassEphemeral,
		def:   src.Default,
	}
	if k, ok := as[Keyed](&zero); ok {
		d.key = k.ConfigKey()
	}
	if c, ok := as[Coded](&zero); ok {
		d.loc.Codec = c.Codec()
	}

	if p, ok := as[PersistSource[T]](&zero); ok {
		d.class = ClassPersist
		d.loc.Path = p.StoragePath()
		if d.loc.Path == "" {
			return descriptor[T]{}, cfgerrors.TypeNotRegistered(d.key, errors.New("empty storage path"))
		}
		d.loc.Path = Location(d.loc.Path)
	}
	if s, ok := as[SecretSource[T]](&zero); ok {
		d.class = ClassSecret
		d.loc.Namespace = s.Namespace()
		if d.loc.Namespace == "" {
			return descriptor[T]{}, cfgerrors.TypeNotRegistered(d.key, errors.New("empty namespace"))
		}
	}
	return d, nil
}

// as reports whether T or *T implements I.
func as[I any, T any](zero *T) (I, bool) {
	if i, ok := interface{}(*zero).(I); ok {
		return i, true
	}
	i, ok := interface{}(zero).(I)
	return i, ok
}

func defaultKey(typ reflect.Type) string {
	if typ.Name() == "" || typ.PkgPath() == "" {
		return typ.String()
	}
	return typ.PkgPath() + "." + typ.Name()
}
