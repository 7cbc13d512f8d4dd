// Package events implements the process event bus: a typed publish/subscribe
// channel with a declarative rule engine, a bounded history and a persisted
// state snapshot.
package events

import (
	"context"
	"time"
)

// Kind identifies a system event. The set is closed.
type Kind string

const (
	LeadAdded        Kind = "lead_added"
	LeadUpdated      Kind = "lead_updated"
	LeadDeleted      Kind = "lead_deleted"
	LeadStageChanged Kind = "lead_stage_changed"
	LeadDistributed  Kind = "lead_distributed"
	LeadScored       Kind = "lead_scored"

	CampaignCreated   Kind = "campaign_created"
	CampaignStarted   Kind = "campaign_started"
	CampaignStopped   Kind = "campaign_stopped"
	CampaignCompleted Kind = "campaign_completed"

	MessageSent     Kind = "message_sent"
	MessageReceived Kind = "message_received"
	ChatMessage     Kind = "chat_message"
	ChatResponse    Kind = "chat_response"

	AILearning     Kind = "ai_learning"
	AIStyleChange  Kind = "ai_style_change"
	PatternLearned Kind = "pattern_learned"

	AdminModification Kind = "admin_modification"
	AdminCommand      Kind = "admin_command"
	AdminTeach        Kind = "admin_teach"

	ConversionSuccess Kind = "conversion_success"
	ConversionFailed  Kind = "conversion_failed"

	SystemError    Kind = "system_error"
	SystemReady    Kind = "system_ready"
	SystemShutdown Kind = "system_shutdown"
)

var allKinds = []Kind{
	LeadAdded, LeadUpdated, LeadDeleted, LeadStageChanged, LeadDistributed, LeadScored,
	CampaignCreated, CampaignStarted, CampaignStopped, CampaignCompleted,
	MessageSent, MessageReceived, ChatMessage, ChatResponse,
	AILearning, AIStyleChange, PatternLearned,
	AdminModification, AdminCommand, AdminTeach,
	ConversionSuccess, ConversionFailed,
	SystemError, SystemReady, SystemShutdown,
}

var kindSet = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(allKinds))
	for _, k := range allKinds {
		m[k] = struct{}{}
	}
	return m
}()

// AllKinds returns every known event kind.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	_, ok := kindSet[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// Payload is the free-form event data.
type Payload map[string]any

// Clone returns a shallow copy of p.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Record is one entry of the event history.
type Record struct {
	Kind      Kind      `json:"event"`
	Payload   Payload   `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives events. A returned error is logged and does not affect other handlers.
type Handler func(ctx context.Context, kind Kind, payload Payload) error
