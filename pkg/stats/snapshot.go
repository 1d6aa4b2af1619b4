package stats

import (
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/trainstats/internal/libs/serializer"
	"github.com/hyp3rd/trainstats/internal/sentinel"
)

// Snapshot is the exported form of a set, suitable for any serializer.
type Snapshot struct {
	Schema      string    `json:"schema"`
	Fingerprint uint64    `json:"fingerprint"`
	Entries     []Entry   `json:"entries,omitempty"`
	Nested      *Snapshot `json:"nested,omitempty"`
}

// Entry is one key of a snapshot.
type Entry struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Snapshot exports s, entries in schema order.
func (s *Set) Snapshot() *Snapshot {
	snap := &Snapshot{
		Schema:      s.schema.name,
		Fingerprint: s.schema.fingerprint,
		Entries:     make([]Entry, 0, len(s.entries)),
	}

	for _, key := range s.Keys() {
		snap.Entries = append(snap.Entries, Entry{Key: key, Value: s.entries[key].clone()})
	}

	if s.nested != nil {
		snap.Nested = s.nested.Snapshot()
	}

	return snap
}

// Encode marshals the snapshot of s with ser.
func Encode(ser serializer.ISerializer, s *Set) ([]byte, error) {
	if s == nil {
		return nil, sentinel.ErrNilContainer
	}

	data, err := ser.Marshal(s.Snapshot())
	if err != nil {
		return nil, ewrap.Wrapf(err, "encode %s", s.schema.name)
	}

	return data, nil
}

func restore(schema *Schema, snap *Snapshot) (*Set, error) {
	if snap.Schema != schema.name || snap.Fingerprint != schema.fingerprint {
		return nil, ewrap.Wrapf(sentinel.ErrTypeMismatch, "snapshot %q (%x) does not match schema %q (%x)",
			snap.Schema, snap.Fingerprint, schema.name, schema.fingerprint)
	}

	set := New(schema)

	for _, entry := range snap.Entries {
		err := set.Record(entry.Key, entry.Value)
		if err != nil {
			return nil, ewrap.Wrapf(err, "restore %s", schema.name)
		}
	}

	if snap.Nested == nil {
		return set, nil
	}

	if schema.nested == nil {
		return nil, ewrap.Wrapf(sentinel.ErrTypeMismatch, "%s does not nest %s", schema.name, snap.Nested.Schema)
	}

	nested, err := restore(schema.nested, snap.Nested)
	if err != nil {
		return nil, err
	}

	set.nested = nested

	return set, nil
}
