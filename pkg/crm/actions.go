package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/storage"
)

// ActionRegistry is where built-in rule actions are installed. *events.Bus
// satisfies it.
type ActionRegistry interface {
	RegisterAction(name string, fn events.ActionFunc)
}

// RegisterActions installs the score_lead and notify_admin actions.
func RegisterActions(reg ActionRegistry, store storage.Store, scorer *Scorer, bus Bus, log logger.Logger) {
	reg.RegisterAction(events.ActionScoreLead, ScoreLeadAction(store, scorer, bus))
	reg.RegisterAction(events.ActionNotifyAdmin, NotifyAdminAction(bus, log, time.Now))
}

// ScoreLeadAction scores the lead named by the payload's lead_id, saves the
// score and emits lead_scored.
func ScoreLeadAction(store storage.Store, scorer *Scorer, bus Bus) events.ActionFunc {
	return func(ctx context.Context, rule events.Rule, kind events.Kind, payload events.Payload) error {
		id, _ := payload["lead_id"].(string)
		if id == "" {
			return fmt.Errorf("%s: payload has no lead_id", events.ActionScoreLead)
		}
		lead, err := store.GetLead(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", events.ActionScoreLead, err)
		}

		sc := scorer.Score(lead)
		if sc.Score != lead.Score {
			lead.Score = sc.Score
			if err := store.UpdateLead(ctx, lead); err != nil {
				return fmt.Errorf("%s: save lead %s: %w", events.ActionScoreLead, id, err)
			}
		}

		return bus.Emit(ctx, events.LeadScored, events.Payload{
			"lead_id": id,
			"user_id": lead.OwnerID,
			"score":   sc.Score,
			"grade":   sc.Grade,
			"rule_id": rule.ID,
		})
	}
}

// NotifyAdminAction logs the triggering event and records it in bus state
// under last_admin_notification.
func NotifyAdminAction(bus Bus, log logger.Logger, now func() time.Time) events.ActionFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(ctx context.Context, rule events.Rule, kind events.Kind, payload events.Payload) error {
		log.Info("admin notification", "rule", rule.ID, "event", kind, "lead_id", payload["lead_id"])
		bus.UpdateState(ctx, StateLastAdminNotification, map[string]any{
			"rule":    rule.ID,
			"event":   string(kind),
			"lead_id": payload["lead_id"],
			"at":      now().UTC().Format(time.RFC3339),
		})
		return nil
	}
}
