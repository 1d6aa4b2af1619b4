package stats

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/trainstats/internal/sentinel"
)

func leafSchema(t *testing.T, name string) *Schema {
	t.Helper()

	schema, err := NewSchema(name, nil,
		Field{Key: "count", Kind: KindInt, Rule: RuleSum},
		Field{Key: "avgMs", Kind: KindFloat, Rule: RuleSum},
		Field{Key: "fitTimesMs", Kind: KindEvents, Rule: RuleConcat},
		Field{Key: "machines", Kind: KindStrings, Rule: RuleUnion},
		Field{Key: "peak", Kind: KindDuration, Rule: RuleMax},
	)
	assert.NoError(t, err)

	return schema
}

func parentSchema(t *testing.T, nested *Schema) *Schema {
	t.Helper()

	schema, err := NewSchema("parent", nested,
		Field{Key: "rounds", Kind: KindInt, Rule: RuleSum},
	)
	assert.NoError(t, err)

	return schema
}

func ms(n int) Event { return Event{Duration: time.Duration(n) * time.Millisecond} }

func TestSet_GetSucceedsIffKeyIsListed(t *testing.T) {
	set := New(leafSchema(t, "leaf"))
	assert.NoError(t, set.Record("count", Int(3)))
	assert.NoError(t, set.Record("avgMs", Float(12.5)))

	assert.Equal(t, []string{"count", "avgMs"}, set.Keys())

	for _, key := range set.Keys() {
		_, err := set.Get(key)
		assert.NoError(t, err)
	}

	for _, key := range []string{"fitTimesMs", "machines", "doesNotExist"} {
		_, err := set.Get(key)
		assert.True(t, errors.Is(err, sentinel.ErrKeyNotFound))
	}
}

func TestSet_RecordRejectsUnknownKeyAndWrongKind(t *testing.T) {
	set := New(leafSchema(t, "leaf"))

	err := set.Record("nope", Int(1))
	assert.True(t, errors.Is(err, sentinel.ErrKeyNotFound))

	err = set.Record("count", Text("three"))
	assert.True(t, errors.Is(err, sentinel.ErrTypeMismatch))
	assert.Equal(t, 0, set.Len())
}

func TestSet_RecordCombinesByRule(t *testing.T) {
	set := New(leafSchema(t, "leaf"))

	assert.NoError(t, set.Record("count", Int(2)))
	assert.NoError(t, set.Record("count", Int(5)))
	assert.NoError(t, set.Record("peak", Elapsed(time.Second)))
	assert.NoError(t, set.Record("peak", Elapsed(time.Millisecond)))
	assert.NoError(t, set.Record("machines", Strings("b", "a")))
	assert.NoError(t, set.Record("machines", Strings("a", "c")))

	v, err := set.Get("count")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), v.Int)

	v, err = set.Get("peak")
	assert.NoError(t, err)
	assert.Equal(t, time.Second, v.Duration)

	v, err = set.Get("machines")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v.Strings)
}

func TestSet_GetReturnsCopy(t *testing.T) {
	set := New(leafSchema(t, "leaf"))
	assert.NoError(t, set.Record("fitTimesMs", Events(ms(1), ms(2))))

	v, err := set.Get("fitTimesMs")
	assert.NoError(t, err)

	v.Events[0].Duration = time.Hour

	again, _ := set.Get("fitTimesMs")
	assert.Equal(t, time.Millisecond, again.Events[0].Duration)
}

func TestSet_MergeSumsSharedKeysAndAddsMissingOnes(t *testing.T) {
	schema := leafSchema(t, "leaf")

	a := New(schema)
	assert.NoError(t, a.Record("count", Int(3)))
	assert.NoError(t, a.Record("fitTimesMs", Events(ms(10))))

	b := New(schema)
	assert.NoError(t, b.Record("count", Int(4)))
	assert.NoError(t, b.Record("avgMs", Float(1.5)))
	assert.NoError(t, b.Record("fitTimesMs", Events(ms(20), ms(30))))

	assert.NoError(t, a.Merge(b))

	for _, key := range b.Keys() {
		_, err := a.Get(key)
		assert.NoError(t, err)
	}

	count, _ := a.Get("count")
	assert.Equal(t, int64(7), count.Int)

	fits, _ := a.Get("fitTimesMs")
	assert.Equal(t, "10,20,30", fits.String())

	// b is untouched and shares nothing with a.
	bFits, _ := b.Get("fitTimesMs")
	assert.Equal(t, "20,30", bFits.String())
}

func TestSet_MergeEmptyIsIdentity(t *testing.T) {
	schema := leafSchema(t, "leaf")

	a := New(schema)
	assert.NoError(t, a.Record("count", Int(3)))
	assert.NoError(t, a.Record("machines", Strings("m1")))

	before := a.String()
	assert.NoError(t, a.Merge(New(schema)))
	assert.Equal(t, before, a.String())
}

func TestSet_MergeIsAssociativeForAdditiveSchemas(t *testing.T) {
	schema := leafSchema(t, "leaf")

	mk := func(n int64, machine string) *Set {
		s := New(schema)
		assert.NoError(t, s.Record("count", Int(n)))
		assert.NoError(t, s.Record("avgMs", Float(float64(n)/2)))
		assert.NoError(t, s.Record("machines", Strings(machine)))

		return s
	}

	// (a+b)+c
	left := mk(1, "a")
	assert.NoError(t, left.Merge(mk(2, "b")))
	assert.NoError(t, left.Merge(mk(3, "c")))

	// a+(b+c)
	bc := mk(2, "b")
	assert.NoError(t, bc.Merge(mk(3, "c")))

	right := mk(1, "a")
	assert.NoError(t, right.Merge(bc))

	assert.Equal(t, left.String(), right.String())

	count, _ := left.Get("count")
	assert.Equal(t, int64(6), count.Int)
}

func TestSet_MergeTypeMismatchLeavesReceiverUnchanged(t *testing.T) {
	a := New(leafSchema(t, "schemaA"))
	assert.NoError(t, a.Record("count", Int(1)))

	b := New(leafSchema(t, "schemaB"))
	assert.NoError(t, b.Record("count", Int(2)))

	before := a.String()

	err := a.Merge(b)
	assert.True(t, errors.Is(err, sentinel.ErrTypeMismatch))
	assert.Equal(t, before, a.String())

	err = a.Merge(nil)
	assert.True(t, errors.Is(err, sentinel.ErrNilContainer))

	var typedNil *Set

	err = a.Merge(typedNil)
	assert.True(t, errors.Is(err, sentinel.ErrNilContainer))
}

func TestSet_MergeRejectsDifferentNestedShape(t *testing.T) {
	leafA := leafSchema(t, "leafA")
	leafB := leafSchema(t, "leafB")

	pa := New(parentSchema(t, leafA))
	assert.NoError(t, pa.Record("rounds", Int(1)))

	childA := New(leafA)
	assert.NoError(t, childA.Record("count", Int(1)))
	assert.NoError(t, pa.SetNested(childA))

	// Same parent name and fields, different nested shape: the fingerprints differ.
	pb := New(parentSchema(t, leafB))
	assert.NoError(t, pb.Record("rounds", Int(5)))

	before := pa.String()

	err := pa.Merge(pb)
	assert.True(t, errors.Is(err, sentinel.ErrTypeMismatch))
	assert.Equal(t, before, pa.String())
}

func TestSet_MergeNestedRecursively(t *testing.T) {
	leaf := leafSchema(t, "leaf")
	parent := parentSchema(t, leaf)

	a := New(parent)
	assert.NoError(t, a.Record("rounds", Int(1)))

	aChild := New(leaf)
	assert.NoError(t, aChild.Record("count", Int(2)))
	assert.NoError(t, a.SetNested(aChild))

	b := New(parent)
	assert.NoError(t, b.Record("rounds", Int(1)))

	bChild := New(leaf)
	assert.NoError(t, bChild.Record("count", Int(3)))
	assert.NoError(t, b.SetNested(bChild))

	assert.NoError(t, a.Merge(b))

	// The receiver keeps its nested set and merges into it.
	assert.True(t, a.NestedSet() == aChild)

	count, err := aChild.Get("count")
	assert.NoError(t, err)
	assert.Equal(t, int64(5), count.Int)
}

func TestSet_MergeAdoptsNestedFromOther(t *testing.T) {
	leaf := leafSchema(t, "leaf")
	parent := parentSchema(t, leaf)

	a := New(parent)

	b := New(parent)
	bChild := New(leaf)
	assert.NoError(t, bChild.Record("count", Int(9)))
	assert.NoError(t, b.SetNested(bChild))

	assert.NoError(t, a.Merge(b))
	assert.NotNil(t, a.Nested())
	assert.False(t, a.NestedSet() == bChild)

	count, err := a.Nested().Get("count")
	assert.NoError(t, err)
	assert.Equal(t, int64(9), count.Int)
}

func TestSet_SetNestedChecksSchema(t *testing.T) {
	leaf := leafSchema(t, "leaf")

	err := New(leaf).SetNested(New(leaf))
	assert.True(t, errors.Is(err, sentinel.ErrTypeMismatch))

	err = New(parentSchema(t, leaf)).SetNested(nil)
	assert.True(t, errors.Is(err, sentinel.ErrNilContainer))

	assert.Nil(t, New(leaf).Nested())
}

func TestRender_PadsKeysToPrintIndent(t *testing.T) {
	set := New(leafSchema(t, "leaf"))
	assert.NoError(t, set.Record("count", Int(3)))
	assert.NoError(t, set.Record("avgMs", Float(12.5)))

	out := set.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Equal(t, 2, len(lines))
	assert.Equal(t, "count"+strings.Repeat(" ", 50)+"3", lines[0])
	assert.Equal(t, "avgMs"+strings.Repeat(" ", 50)+"12.5", lines[1])
}

func TestRender_NestedIsDelimitedAndIndented(t *testing.T) {
	leaf := leafSchema(t, "leaf")

	parent := New(parentSchema(t, leaf))
	assert.NoError(t, parent.Record("rounds", Int(2)))

	child := New(leaf)
	assert.NoError(t, child.Record("count", Int(3)))
	assert.NoError(t, parent.SetNested(child))

	out := parent.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	assert.Equal(t, 3, len(lines))
	assert.True(t, strings.HasPrefix(lines[0], "rounds "))
	assert.Equal(t, "-- leaf --", lines[1])
	assert.Equal(t, "  "+strings.TrimSuffix(child.String(), "\n"), lines[2])
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", New(leafSchema(t, "leaf")).String())
	assert.Equal(t, "", Render(nil))
}

func TestSet_CloneIsDeep(t *testing.T) {
	leaf := leafSchema(t, "leaf")

	parent := New(parentSchema(t, leaf))
	child := New(leaf)
	assert.NoError(t, child.Record("fitTimesMs", Events(ms(1))))
	assert.NoError(t, parent.SetNested(child))

	clone := parent.Clone()
	assert.NoError(t, child.Record("fitTimesMs", Events(ms(2))))

	v, err := clone.Nested().Get("fitTimesMs")
	assert.NoError(t, err)
	assert.Equal(t, "1", v.String())
}
