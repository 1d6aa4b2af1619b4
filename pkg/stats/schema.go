package stats

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/trainstats/internal/sentinel"
)

// Rule is the merge rule a schema declares for one key.
type Rule uint8

const (
	// RuleSum adds the two values.
	RuleSum Rule = iota + 1
	// RuleMin keeps the smaller value.
	RuleMin
	// RuleMax keeps the larger value.
	RuleMax
	// RuleFirst keeps the receiver's value.
	RuleFirst
	// RuleLast keeps the incoming value.
	RuleLast
	// RuleUnion takes the union of two string sets.
	RuleUnion
	// RuleConcat appends the incoming events after the receiver's.
	RuleConcat
)

// String returns the string representation of a Rule.
func (r Rule) String() string {
	switch r {
	case RuleSum:
		return "sum"
	case RuleMin:
		return "min"
	case RuleMax:
		return "max"
	case RuleFirst:
		return "first"
	case RuleLast:
		return "last"
	case RuleUnion:
		return "union"
	case RuleConcat:
		return "concat"
	default:
		return "rule(" + strconv.Itoa(int(r)) + ")"
	}
}

// AppliesTo reports whether the rule can combine values of kind k.
func (r Rule) AppliesTo(k Kind) bool {
	switch r {
	case RuleFirst, RuleLast:
		return k != KindInvalid && k <= KindEvents
	case RuleSum, RuleMin, RuleMax:
		return k == KindInt || k == KindFloat || k == KindDuration
	case RuleUnion:
		return k == KindStrings
	case RuleConcat:
		return k == KindEvents
	default:
		return false
	}
}

// Field declares one key of a schema.
type Field struct {
	Key  string
	Kind Kind
	Rule Rule
	// Help is a one-line description, shown by the CLI.
	Help string
}

// Schema is the fixed, ordered set of keys and merge rules of one kind of
// statistics collector, plus the schema of the container it may nest.
type Schema struct {
	name        string
	fields      []Field
	index       map[string]int
	nested      *Schema
	fingerprint uint64
}

// NewSchema validates and builds a schema. Field order is the rendering order.
// nested may be nil for a leaf schema.
func NewSchema(name string, nested *Schema, fields ...Field) (*Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "name")
	}

	schema := &Schema{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
		nested: nested,
	}

	for _, field := range fields {
		if strings.TrimSpace(field.Key) == "" {
			return nil, ewrap.Wrapf(sentinel.ErrParamCannotBeEmpty, "field key in schema %q", name)
		}

		if _, dup := schema.index[field.Key]; dup {
			return nil, ewrap.Wrapf(sentinel.ErrDuplicateKey, "%q in schema %q", field.Key, name)
		}

		if !field.Rule.AppliesTo(field.Kind) {
			return nil, ewrap.Wrapf(sentinel.ErrInvalidRule, "%s on %s field %q", field.Rule, field.Kind, field.Key)
		}

		schema.index[field.Key] = len(schema.fields)
		schema.fields = append(schema.fields, field)
	}

	schema.fingerprint = schema.computeFingerprint()

	return schema, nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Fields returns a copy of the schema fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)

	return out
}

// Field returns the declaration of key.
func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}

	return s.fields[i], true
}

// Nested returns the schema of the nested container, or nil for a leaf schema.
func (s *Schema) Nested() *Schema { return s.nested }

// Fingerprint identifies the shape of the schema: its name, fields, rules and nested schema.
func (s *Schema) Fingerprint() uint64 { return s.fingerprint }

// Compatible reports whether containers of the two schemas may be merged.
func (s *Schema) Compatible(other *Schema) bool {
	if s == nil || other == nil {
		return false
	}

	return s == other || s.fingerprint == other.fingerprint
}

func (s *Schema) computeFingerprint() uint64 {
	var sb strings.Builder

	sb.WriteString(s.name)

	for _, f := range s.fields {
		sb.WriteByte(0)
		sb.WriteString(f.Key)
		sb.WriteByte(byte(f.Kind))
		sb.WriteByte(byte(f.Rule))
	}

	if s.nested != nil {
		sb.WriteByte(0)
		sb.WriteString(strconv.FormatUint(s.nested.fingerprint, 16))
	}

	return xxhash.Sum64String(sb.String())
}
