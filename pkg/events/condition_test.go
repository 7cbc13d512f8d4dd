package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondition_Match(t *testing.T) {
	view := map[string]any{
		EventField: LeadStageChanged,
		"stage":    "hot",
		"score":    85,
		"vip":      true,
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"always", Always(), true},
		{"never", Condition{Op: OpNever}, false},
		{"event matches", OnEvent(LeadStageChanged), true},
		{"event differs", OnEvent(LeadAdded), false},
		{"equals string", FieldEquals("stage", "hot"), true},
		{"equals string differs", FieldEquals("stage", "cold"), false},
		{"equals number across types", FieldEquals("score", 85.0), true},
		{"equals bool", FieldEquals("vip", true), true},
		{"missing field", FieldEquals("owner", "admin"), false},
		{"in set", FieldIn("stage", "negotiating", "hot"), true},
		{"not in set", FieldIn("stage", "new", "lost"), false},
		{"in on missing field", FieldIn("owner", "admin"), false},
		{"unknown op", Condition{Op: "regex"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Match(view))
		})
	}
}

func TestCondition_Validate(t *testing.T) {
	assert.NoError(t, Always().Validate())
	assert.NoError(t, OnEvent(LeadAdded).Validate())
	assert.Error(t, Condition{Op: OpEvent, Value: "nope"}.Validate())
	assert.Error(t, Condition{Op: OpEquals}.Validate())
	assert.Error(t, Condition{Op: OpIn, Field: "stage"}.Validate())
	assert.Error(t, Condition{Op: "xor"}.Validate())
}

func TestCondition_SurvivesJSON(t *testing.T) {
	rule := Rule{ID: "r", Name: "r", Condition: FieldIn("score", 70, 85), Action: "a"}
	data, err := json.Marshal(rule)
	require.NoError(t, err)

	var decoded Rule
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Condition.Match(map[string]any{"score": 85}))
	assert.False(t, decoded.Condition.Match(map[string]any{"score": 10}))
}

func TestKind_Valid(t *testing.T) {
	assert.Len(t, AllKinds(), 25)
	for _, k := range AllKinds() {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, Kind("lead_exploded").Valid())
}
