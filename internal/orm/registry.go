// Package orm is the mapped-object layer of the record store.
//
// Entity types stay plain structs. Their storage mapping (table, column
// values, row loading, primary key) is declared separately as a Mapping and
// wired through an explicit Registry. A Session is a unit of work over one
// connection: Add queues objects, Commit flushes them in one transaction,
// and Query rebuilds objects from rows.
package orm

import (
	"fmt"
	"reflect"

	"github.com/deppfellow/countstore/internal/core"
	"github.com/deppfellow/countstore/internal/errs"
)

// Mapping connects the plain type T to a table.
type Mapping[T any] struct {
	Table *core.Table

	// Values returns the column values to insert for obj, primary key excluded.
	// Columns left out fall back to their defaults.
	Values func(obj *T) core.Values

	// Load copies a stored row into obj, primary key included.
	Load func(obj *T, row core.Row)

	// ID returns obj's primary key; zero means the engine has not assigned one.
	ID func(obj *T) int64
}

// entityMapper is the type-erased view of a Mapping used by Session.
type entityMapper interface {
	table() *core.Table
	values(obj any) core.Values
	load(obj any, row core.Row)
	id(obj any) int64
}

type mapper[T any] struct {
	m Mapping[T]
}

func (p *mapper[T]) table() *core.Table { return p.m.Table }
func (p *mapper[T]) values(obj any) core.Values { return p.m.Values(obj.(*T)) }
func (p *mapper[T]) load(obj any, row core.Row)  { p.m.Load(obj.(*T), row) }
func (p *mapper[T]) id(obj any) int64 { return p.m.ID(obj.(*T)) }

// Registry holds the mappings known to sessions, keyed by *T.
type Registry struct {
	mappers map[reflect.Type]entityMapper
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{mappers: make(map[reflect.Type]entityMapper)}
}

// Register adds the mapping for T.
//
// Registering T again against the same table replaces the mapping; against
// a different table it fails with *errs.SchemaError.
func Register[T any](r *Registry, m Mapping[T]) error {
	key := reflect.TypeFor[*T]()

	if m.Table == nil {
		return errs.NewSchemaError("", fmt.Sprintf("mapping for %s has no table", key))
	}
	if m.Values == nil || m.Load == nil || m.ID == nil {
		return errs.NewSchemaError(m.Table.Name(), fmt.Sprintf("mapping for %s is incomplete", key))
	}
	if _, ok := m.Table.PrimaryKey(); !ok {
		return errs.NewSchemaError(m.Table.Name(), "mapped tables need a primary key")
	}

	if existing, ok := r.mappers[key]; ok && existing.table() != m.Table {
		return errs.NewSchemaError(m.Table.Name(),
			fmt.Sprintf("%s is already mapped to table %q", key, existing.table().Name()))
	}

	r.mappers[key] = &mapper[T]{m: m}
	return nil
}

// MappingFor returns the mapping registered for T.
func MappingFor[T any](r *Registry) (Mapping[T], error) {
	key := reflect.TypeFor[*T]()
	em, ok := r.mappers[key]
	if !ok {
		return Mapping[T]{}, errs.NewSchemaError("", fmt.Sprintf("%s is not mapped", key))
	}
	return em.(*mapper[T]).m, nil
}

func (r *Registry) lookup(obj any) (entityMapper, error) {
	if obj == nil {
		return nil, errs.NewSchemaError("", "cannot map a nil object")
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, errs.NewSchemaError("", fmt.Sprintf("mapped objects are passed by pointer, got %T", obj))
	}
	em, ok := r.mappers[v.Type()]
	if !ok {
		return nil, errs.NewSchemaError("", fmt.Sprintf("%T is not mapped", obj))
	}
	return em, nil
}
