package stats

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/trainstats/internal/sentinel"
)

// Kind tags the case a Value holds.
type Kind uint8

const (
	// KindInvalid is the zero Kind. No schema field may use it.
	KindInvalid Kind = iota
	// KindInt holds a count or other integral measurement.
	KindInt
	// KindFloat holds a real-valued measurement such as a score.
	KindFloat
	// KindString holds free text.
	KindString
	// KindDuration holds a single elapsed time.
	KindDuration
	// KindStrings holds a set of strings, kept sorted and unique.
	KindStrings
	// KindEvents holds an ordered list of timed events.
	KindEvents
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDuration:
		return "duration"
	case KindStrings:
		return "strings"
	case KindEvents:
		return "events"
	case KindInvalid:
		return "invalid"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Event is one timed occurrence recorded by a worker or the coordinator,
// e.g. a single fit call or a parameter broadcast.
type Event struct {
	MachineID string        `json:"machineId,omitempty"`
	ProcessID string        `json:"processId,omitempty"`
	WorkerID  string        `json:"workerId,omitempty"`
	Start     time.Time     `json:"start"`
	Duration  time.Duration `json:"duration"`
}

// Value is a tagged variant holding one statistic. Only the field matching Kind is meaningful.
type Value struct {
	Kind     Kind          `json:"kind"`
	Int      int64         `json:"int,omitempty"`
	Float    float64       `json:"float,omitempty"`
	Str      string        `json:"str,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Strings  []string      `json:"strings,omitempty"`
	Events   []Event       `json:"events,omitempty"`
}

// Int returns an integral Value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Float returns a real-valued Value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Text returns a string Value.
func Text(s string) Value { return Value{Kind: KindString, Str: s} }

// Elapsed returns a duration Value.
func Elapsed(d time.Duration) Value { return Value{Kind: KindDuration, Duration: d} }

// Strings returns a string-set Value. Duplicates are dropped.
func Strings(items ...string) Value {
	return Value{Kind: KindStrings, Strings: normalizeSet(items)}
}

// Events returns an event-list Value preserving the given order.
func Events(events ...Event) Value {
	return Value{Kind: KindEvents, Events: slices.Clone(events)}
}

// Durations returns the elapsed times held by the value: every event duration
// for KindEvents, the single duration for KindDuration, nil otherwise.
func (v Value) Durations() []time.Duration {
	switch v.Kind {
	case KindEvents:
		out := make([]time.Duration, len(v.Events))
		for i, ev := range v.Events {
			out[i] = ev.Duration
		}

		return out
	case KindDuration:
		return []time.Duration{v.Duration}
	case KindInvalid, KindInt, KindFloat, KindString, KindStrings:
		return nil
	default:
		return nil
	}
}

// String renders the value for humans. Event lists render as comma separated milliseconds.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindString:
		return v.Str
	case KindDuration:
		return v.Duration.String()
	case KindStrings:
		if len(v.Strings) == 0 {
			return "-"
		}

		return strings.Join(v.Strings, ",")
	case KindEvents:
		if len(v.Events) == 0 {
			return "-"
		}

		parts := make([]string, len(v.Events))
		for i, ev := range v.Events {
			parts[i] = strconv.FormatInt(ev.Duration.Milliseconds(), 10)
		}

		return strings.Join(parts, ",")
	case KindInvalid:
		return "<invalid>"
	default:
		return "<invalid>"
	}
}

// clone returns a copy that shares no backing arrays with v.
func (v Value) clone() Value {
	out := v
	out.Strings = slices.Clone(v.Strings)
	out.Events = slices.Clone(v.Events)

	return out
}

// normalize brings a value constructed by hand into canonical form.
func (v Value) normalize() Value {
	if v.Kind == KindStrings {
		v.Strings = normalizeSet(v.Strings)
	}

	return v
}

// combine merges b into a following rule. Both values must share a Kind the rule applies to.
//
//nolint:cyclop
func combine(a, b Value, rule Rule) (Value, error) {
	if a.Kind != b.Kind {
		return Value{}, ewrap.Wrapf(sentinel.ErrTypeMismatch, "cannot combine %s with %s", b.Kind, a.Kind)
	}

	if !rule.AppliesTo(a.Kind) {
		return Value{}, ewrap.Wrapf(sentinel.ErrInvalidRule, "%s on %s", rule, a.Kind)
	}

	switch rule {
	case RuleFirst:
		return a.clone(), nil
	case RuleLast:
		return b.clone(), nil
	case RuleSum:
		out := a
		out.Int += b.Int
		out.Float += b.Float
		out.Duration += b.Duration

		return out, nil
	case RuleMin:
		return pick(a, b, -1), nil
	case RuleMax:
		return pick(a, b, 1), nil
	case RuleUnion:
		return Value{Kind: a.Kind, Strings: normalizeSet(append(slices.Clone(a.Strings), b.Strings...))}, nil
	case RuleConcat:
		events := make([]Event, 0, len(a.Events)+len(b.Events))
		events = append(events, a.Events...)
		events = append(events, b.Events...)

		return Value{Kind: a.Kind, Events: events}, nil
	default:
		return Value{}, ewrap.Wrapf(sentinel.ErrInvalidRule, "%s", rule)
	}
}

// pick returns a when it compares to b with the wanted sign (or they are equal), b otherwise.
func pick(a, b Value, sign int) Value {
	var c int

	switch a.Kind {
	case KindInt:
		c = cmp.Compare(a.Int, b.Int)
	case KindFloat:
		c = cmp.Compare(a.Float, b.Float)
	case KindDuration:
		c = cmp.Compare(a.Duration, b.Duration)
	case KindInvalid, KindString, KindStrings, KindEvents:
		return a
	}

	if c == 0 || c == sign {
		return a
	}

	return b
}

func normalizeSet(items []string) []string {
	if len(items) == 0 {
		return nil
	}

	out := slices.Clone(items)
	slices.Sort(out)

	return slices.Compact(out)
}
