// Package stats implements key-indexed statistics containers for distributed
// training runs. A container holds the measurements of one collection scope
// (a job, a worker task), merges with like-typed containers produced by peer
// workers, may own one nested container gathered at another layer of the
// pipeline, and renders itself for humans.
//
// Containers take no locks. A container is either being read or being merged,
// never both at once; the owner that reduces per-worker containers provides
// that guarantee.
package stats

import (
	"fmt"
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/trainstats/internal/constants"
	"github.com/hyp3rd/trainstats/internal/sentinel"
)

// Container is the accessor and merge contract shared by every kind of training statistics.
type Container interface {
	// Keys returns every key Get can resolve.
	Keys() []string
	// Get returns the value stored for key, or an error wrapping sentinel.ErrKeyNotFound.
	Get(key string) (Value, error)
	// Merge combines other into the receiver in place.
	Merge(other Container) error
	// Nested returns the nested container, or nil for a leaf.
	Nested() Container
	// String renders the container, see Render.
	String() string
}

// Set is the schema-driven Container.
type Set struct {
	schema  *Schema
	entries map[string]Value
	nested  *Set
}

// New returns an empty set for schema. schema must not be nil.
func New(schema *Schema) *Set {
	return &Set{
		schema:  schema,
		entries: make(map[string]Value, len(schema.fields)),
	}
}

// Schema returns the schema of the set.
func (s *Set) Schema() *Schema { return s.schema }

// Name returns the schema name; used by Render to label nested sections.
func (s *Set) Name() string { return s.schema.name }

// Len returns the number of recorded keys.
func (s *Set) Len() int { return len(s.entries) }

// Keys returns the recorded keys in schema order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.entries))

	for _, f := range s.schema.fields {
		if _, ok := s.entries[f.Key]; ok {
			keys = append(keys, f.Key)
		}
	}

	return keys
}

// Get returns a copy of the value stored for key.
func (s *Set) Get(key string) (Value, error) {
	v, ok := s.entries[key]
	if !ok {
		return Value{}, ewrap.Wrapf(sentinel.ErrKeyNotFound, "%q in %s", key, s.schema.name)
	}

	return v.clone(), nil
}

// Record adds a measurement. A key seen before is combined with the new value by the key's rule.
func (s *Set) Record(key string, v Value) error {
	field, ok := s.schema.Field(key)
	if !ok {
		return ewrap.Wrapf(sentinel.ErrKeyNotFound, "%q is not part of %s", key, s.schema.name)
	}

	if v.Kind != field.Kind {
		return ewrap.Wrapf(sentinel.ErrTypeMismatch, "%q expects %s, got %s", key, field.Kind, v.Kind)
	}

	v = v.normalize()

	existing, ok := s.entries[key]
	if !ok {
		s.entries[key] = v.clone()

		return nil
	}

	merged, err := combine(existing, v, field.Rule)
	if err != nil {
		return ewrap.Wrapf(err, "record %q", key)
	}

	s.entries[key] = merged

	return nil
}

// Nested returns the nested container, or nil.
func (s *Set) Nested() Container {
	if s.nested == nil {
		return nil
	}

	return s.nested
}

// NestedSet returns the nested set, or nil.
func (s *Set) NestedSet() *Set { return s.nested }

// SetNested attaches child as the nested container. Its schema must be the one
// the receiver's schema declares as nested.
func (s *Set) SetNested(child *Set) error {
	if child == nil {
		return sentinel.ErrNilContainer
	}

	if !s.schema.nested.Compatible(child.schema) {
		return ewrap.Wrapf(sentinel.ErrTypeMismatch, "%s cannot nest %s", s.schema.name, child.schema.name)
	}

	s.nested = child

	return nil
}

// Merge combines other into s. other must be a *Set of a compatible schema.
// The combined state is computed before anything is written, so a failed merge leaves s unchanged.
func (s *Set) Merge(other Container) error {
	if other == nil {
		return sentinel.ErrNilContainer
	}

	o, ok := other.(*Set)
	if !ok {
		return ewrap.Wrapf(sentinel.ErrTypeMismatch, "cannot merge %T into %s", other, s.schema.name)
	}

	if o == nil {
		return sentinel.ErrNilContainer
	}

	merged, err := s.combined(o)
	if err != nil {
		return err
	}

	s.commit(merged)

	return nil
}

// Clone returns a deep copy of s.
func (s *Set) Clone() *Set {
	out := &Set{
		schema:  s.schema,
		entries: make(map[string]Value, len(s.entries)),
	}

	for k, v := range s.entries {
		out.entries[k] = v.clone()
	}

	if s.nested != nil {
		out.nested = s.nested.Clone()
	}

	return out
}

// String renders the set.
func (s *Set) String() string { return Render(s) }

// combined returns the state s would have after merging o, without touching s.
func (s *Set) combined(o *Set) (*Set, error) {
	if !s.schema.Compatible(o.schema) {
		return nil, ewrap.Wrapf(sentinel.ErrTypeMismatch, "cannot merge %s into %s", o.schema.name, s.schema.name)
	}

	out := &Set{
		schema:  s.schema,
		entries: make(map[string]Value, len(s.entries)+len(o.entries)),
	}

	for k, v := range s.entries {
		out.entries[k] = v
	}

	for k, v := range o.entries {
		existing, ok := out.entries[k]
		if !ok {
			out.entries[k] = v.clone()

			continue
		}

		field, _ := s.schema.Field(k)

		merged, err := combine(existing, v, field.Rule)
		if err != nil {
			return nil, ewrap.Wrapf(err, "merge %q", k)
		}

		out.entries[k] = merged
	}

	switch {
	case o.nested == nil:
		out.nested = s.nested
	case s.nested == nil:
		if !s.schema.nested.Compatible(o.nested.schema) {
			return nil, ewrap.Wrapf(sentinel.ErrTypeMismatch, "%s cannot nest %s", s.schema.name, o.nested.schema.name)
		}

		out.nested = o.nested.Clone()
	default:
		nested, err := s.nested.combined(o.nested)
		if err != nil {
			return nil, ewrap.Wrapf(err, "nested %s", s.nested.schema.name)
		}

		out.nested = nested
	}

	return out, nil
}

// commit installs a state computed by combined, keeping existing nested sets in place.
func (s *Set) commit(m *Set) {
	s.entries = m.entries

	switch {
	case m.nested == nil:
		s.nested = nil
	case s.nested == nil || s.nested == m.nested:
		s.nested = m.nested
	default:
		s.nested.commit(m.nested)
	}
}

// Render produces the human-readable form of c: one line per key, the key
// left-justified to constants.PrintIndent columns followed by the value, then
// the nested container under a "-- name --" delimiter, indented.
// An empty container renders as "".
func Render(c Container) string {
	if c == nil {
		return ""
	}

	var sb strings.Builder

	for _, key := range c.Keys() {
		v, err := c.Get(key)
		if err != nil {
			continue
		}

		fmt.Fprintf(&sb, "%-*s%s\n", constants.PrintIndent, key, v)
	}

	nested := c.Nested()
	if nested == nil {
		return sb.String()
	}

	name := "nested"
	if named, ok := nested.(interface{ Name() string }); ok {
		name = named.Name()
	}

	fmt.Fprintf(&sb, "-- %s --\n", name)

	for line := range strings.Lines(Render(nested)) {
		sb.WriteString(constants.NestedIndent)
		sb.WriteString(line)
	}

	return sb.String()
}
