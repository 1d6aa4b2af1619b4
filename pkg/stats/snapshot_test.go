package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/trainstats/internal/libs/serializer"
	"github.com/hyp3rd/trainstats/internal/sentinel"
)

func sampleNestedSet(t *testing.T) (*Registry, *Set) {
	t.Helper()

	leaf := leafSchema(t, "leaf")
	parent := parentSchema(t, leaf)

	registry, err := NewRegistry(parent)
	assert.NoError(t, err)

	set := New(parent)
	assert.NoError(t, set.Record("rounds", Int(4)))

	child := New(leaf)
	assert.NoError(t, child.Record("count", Int(12)))
	assert.NoError(t, child.Record("avgMs", Float(3.25)))
	assert.NoError(t, child.Record("machines", Strings("host-b", "host-a")))
	assert.NoError(t, child.Record("peak", Elapsed(1500*time.Millisecond)))
	assert.NoError(t, child.Record("fitTimesMs", Events(
		Event{MachineID: "host-a", WorkerID: "0", Start: time.UnixMilli(1700000000000).UTC(), Duration: 120 * time.Millisecond},
		Event{MachineID: "host-b", WorkerID: "1", Start: time.UnixMilli(1700000000500).UTC(), Duration: 80 * time.Millisecond},
	)))
	assert.NoError(t, set.SetNested(child))

	return registry, set
}

func TestSnapshot_RoundTripEveryCodec(t *testing.T) {
	registry, set := sampleNestedSet(t)
	serializers := serializer.NewSerializerRegistry()

	for _, name := range []string{"json", "msgpack", "cbor"} {
		t.Run(name, func(t *testing.T) {
			ser, err := serializers.New(name)
			assert.NoError(t, err)

			data, err := Encode(ser, set)
			assert.NoError(t, err)

			restored, err := registry.Decode(ser, data)
			assert.NoError(t, err)
			assert.Equal(t, set.String(), restored.String())
			assert.Equal(t, set.Keys(), restored.Keys())
			assert.Equal(t, set.NestedSet().Keys(), restored.NestedSet().Keys())
		})
	}
}

func TestRegistry_RestoreRejectsTamperedFingerprint(t *testing.T) {
	registry, set := sampleNestedSet(t)

	snap := set.Snapshot()
	snap.Fingerprint++

	_, err := registry.Restore(snap)
	assert.True(t, errors.Is(err, sentinel.ErrTypeMismatch))

	snap = set.Snapshot()
	snap.Nested.Fingerprint++

	_, err = registry.Restore(snap)
	assert.True(t, errors.Is(err, sentinel.ErrTypeMismatch))
}

func TestRegistry_RestoreRejectsWrongValueKind(t *testing.T) {
	registry, set := sampleNestedSet(t)

	snap := set.Snapshot()
	snap.Entries[0].Value = Text("four")

	_, err := registry.Restore(snap)
	assert.True(t, errors.Is(err, sentinel.ErrTypeMismatch))
}

func TestRegistry_Lookup(t *testing.T) {
	registry, _ := sampleNestedSet(t)

	assert.Equal(t, []string{"leaf", "parent"}, registry.Names())

	_, err := registry.Lookup("missing")
	assert.True(t, errors.Is(err, sentinel.ErrSchemaNotFound))

	_, err = registry.Lookup("")
	assert.True(t, errors.Is(err, sentinel.ErrParamCannotBeEmpty))

	_, err = registry.Restore(nil)
	assert.True(t, errors.Is(err, sentinel.ErrNilContainer))
}

func TestRegistry_RegisterConflict(t *testing.T) {
	registry, err := NewRegistry(leafSchema(t, "leaf"))
	assert.NoError(t, err)

	other, err := NewSchema("leaf", nil, Field{Key: "x", Kind: KindInt, Rule: RuleSum})
	assert.NoError(t, err)

	err = registry.Register(other)
	assert.True(t, errors.Is(err, sentinel.ErrTypeMismatch))
}
