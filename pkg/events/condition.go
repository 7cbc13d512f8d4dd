package events

import (
	"encoding/json"
	"fmt"
)

// ConditionOp selects how a Condition is evaluated.
type ConditionOp string

const (
	// OpAlways matches every event.
	OpAlways ConditionOp = "always"
	// OpNever matches nothing. Rules loaded without a condition get it.
	OpNever ConditionOp = "never"
	// OpEvent matches when the event kind equals Value.
	OpEvent ConditionOp = "event"
	// OpEquals matches when Field equals Value.
	OpEquals ConditionOp = "equals"
	// OpIn matches when Field equals any of Values.
	OpIn ConditionOp = "in"
)

// EventField is the key under which the event kind appears in the rule view.
const EventField = "event"

// Condition is a serializable predicate over the rule view
// {event: kind, ...payload}. Evaluation has no side effects.
type Condition struct {
	Op     ConditionOp `json:"op"`
	Field  string      `json:"field,omitempty"`
	Value  any         `json:"value,omitempty"`
	Values []any       `json:"values,omitempty"`
}

// Always returns a condition matching every event.
func Always() Condition { return Condition{Op: OpAlways} }

// OnEvent returns a condition matching a single event kind.
func OnEvent(kind Kind) Condition { return Condition{Op: OpEvent, Value: string(kind)} }

// FieldEquals returns a condition matching field == value.
func FieldEquals(field string, value any) Condition {
	return Condition{Op: OpEquals, Field: field, Value: value}
}

// FieldIn returns a condition matching field ∈ values.
func FieldIn(field string, values ...any) Condition {
	return Condition{Op: OpIn, Field: field, Values: values}
}

// Validate checks the condition is well formed.
func (c Condition) Validate() error {
	switch c.Op {
	case OpAlways, OpNever:
		return nil
	case OpEvent:
		s, ok := c.Value.(string)
		if !ok || !Kind(s).Valid() {
			return fmt.Errorf("event condition: unknown kind %v", c.Value)
		}
		return nil
	case OpEquals:
		if c.Field == "" {
			return fmt.Errorf("equals condition: field is required")
		}
		return nil
	case OpIn:
		if c.Field == "" {
			return fmt.Errorf("in condition: field is required")
		}
		if len(c.Values) == 0 {
			return fmt.Errorf("in condition: values are required")
		}
		return nil
	default:
		return fmt.Errorf("unknown condition op %q", c.Op)
	}
}

// Match evaluates the condition against a rule view.
func (c Condition) Match(view map[string]any) bool {
	switch c.Op {
	case OpAlways:
		return true
	case OpEvent:
		return valuesEqual(view[EventField], c.Value)
	case OpEquals:
		v, ok := view[c.Field]
		return ok && valuesEqual(v, c.Value)
	case OpIn:
		v, ok := view[c.Field]
		if !ok {
			return false
		}
		for _, candidate := range c.Values {
			if valuesEqual(v, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// valuesEqual compares payload values loosely: Kind and string compare as
// strings, and numbers compare by value whatever their Go type, so a condition
// decoded from JSON (float64) still matches an int payload.
func valuesEqual(a, b any) bool {
	if as, ok := asString(a); ok {
		bs, ok := asString(b)
		return ok && as == bs
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return a == nil && b == nil
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case Kind:
		return string(s), true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
