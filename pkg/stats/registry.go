package stats

import (
	"slices"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/trainstats/internal/libs/serializer"
	"github.com/hyp3rd/trainstats/internal/sentinel"
)

// Registry maps schema names to schemas so that snapshots received from
// workers can be turned back into sets. Register every schema before the
// registry is shared between goroutines.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry creates a registry holding the given schemas and their nested schemas.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	registry := &Registry{
		schemas: make(map[string]*Schema),
	}

	for _, schema := range schemas {
		err := registry.Register(schema)
		if err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Register adds schema and, recursively, its nested schemas.
// Registering a different schema under a name already taken fails with sentinel.ErrTypeMismatch.
func (r *Registry) Register(schema *Schema) error {
	for ; schema != nil; schema = schema.nested {
		existing, ok := r.schemas[schema.name]
		if ok && !existing.Compatible(schema) {
			return ewrap.Wrapf(sentinel.ErrTypeMismatch, "schema %q already registered with another shape", schema.name)
		}

		r.schemas[schema.name] = schema
	}

	return nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, error) {
	if name == "" {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "name")
	}

	schema, ok := r.schemas[name]
	if !ok {
		return nil, ewrap.Wrap(sentinel.ErrSchemaNotFound, name)
	}

	return schema, nil
}

// Names returns the registered schema names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Restore rebuilds a set from a snapshot, checking it against the registered schema.
func (r *Registry) Restore(snap *Snapshot) (*Set, error) {
	if snap == nil {
		return nil, sentinel.ErrNilContainer
	}

	schema, err := r.Lookup(snap.Schema)
	if err != nil {
		return nil, err
	}

	return restore(schema, snap)
}

// Decode unmarshals data with ser and restores the snapshot it holds.
func (r *Registry) Decode(ser serializer.ISerializer, data []byte) (*Set, error) {
	var snap Snapshot

	err := ser.Unmarshal(data, &snap)
	if err != nil {
		return nil, ewrap.Wrap(err, "decode snapshot")
	}

	return r.Restore(&snap)
}
