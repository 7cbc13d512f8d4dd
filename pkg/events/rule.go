package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Built-in action identifiers.
const (
	ActionScoreLead   = "score_lead"
	ActionNotifyAdmin = "notify_admin"
)

// Rule pairs a condition with an action identifier. Rules are evaluated in
// list order on every emitted event.
type Rule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Condition Condition `json:"condition"`
	Action    string    `json:"action"`
}

// Validate checks the rule is well formed.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Action == "" {
		return fmt.Errorf("rule %s: action is required", r.ID)
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// UnmarshalJSON accepts snapshots written without a condition. Such rules
// get the matching default condition when the id is a default rule, and
// OpNever otherwise.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	var raw struct {
		plain
		Condition *Condition `json:"condition"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Rule(raw.plain)
	switch {
	case raw.Condition != nil:
		r.Condition = *raw.Condition
	default:
		r.Condition = Condition{Op: OpNever}
		for _, d := range DefaultRules() {
			if d.ID == r.ID {
				r.Condition = d.Condition
				break
			}
		}
	}
	return nil
}

// DefaultRules returns the rules installed by Initialize.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:        "auto_score_new_leads",
			Name:      "Auto score new leads",
			Condition: OnEvent(LeadAdded),
			Action:    ActionScoreLead,
		},
		{
			ID:        "notify_admin_on_hot_lead",
			Name:      "Notify admin on hot lead",
			Condition: FieldEquals("stage", "hot"),
			Action:    ActionNotifyAdmin,
		},
	}
}

// ActionFunc executes a rule action for the event that matched.
type ActionFunc func(ctx context.Context, rule Rule, kind Kind, payload Payload) error
