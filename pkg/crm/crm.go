// Package crm implements the user wallet and lead pipeline services on top
// of storage, reporting lifecycle changes to the process event bus.
package crm

import (
	"context"
	"errors"

	"github.com/brilliox/brilliox/pkg/events"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrWrongPassword       = errors.New("old password is incorrect")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLeadNotFound        = errors.New("lead not found")
	ErrNotOwner            = errors.New("lead belongs to another user")
	ErrInvalidStatus       = errors.New("invalid lead status")
	ErrEmptyLead           = errors.New("lead needs a name or a phone")
)

// Bus is the part of the event bus the services use. *events.Bus
// satisfies it.
type Bus interface {
	Emit(ctx context.Context, kind events.Kind, payload events.Payload) error
	UpdateState(ctx context.Context, key string, value any)
	IncrementState(ctx context.Context, key string, delta int) int
}

// Bus state keys maintained by the services.
const (
	StateActiveUsers           = "active_users"
	StateTotalLeads            = "total_leads"
	StateLastAdminNotification = "last_admin_notification"
)

// Lead pipeline stages.
const (
	StatusNew         = "new"
	StatusBaitSent    = "bait_sent"
	StatusReplied     = "replied"
	StatusInterested  = "interested"
	StatusNegotiating = "negotiating"
	StatusHot         = "hot"
	StatusClosed      = "closed"
	StatusLost        = "lost"
)

var statuses = []string{
	StatusNew, StatusBaitSent, StatusReplied, StatusInterested,
	StatusNegotiating, StatusHot, StatusClosed, StatusLost,
}

// Statuses returns the pipeline stages in order.
func Statuses() []string {
	return append([]string(nil), statuses...)
}

// ValidStatus reports whether s is a pipeline stage.
func ValidStatus(s string) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

type nopBus struct{}

func (nopBus) Emit(context.Context, events.Kind, events.Payload) error { return nil }
func (nopBus) UpdateState(context.Context, string, any)                {}
func (nopBus) IncrementState(context.Context, string, int) int         { return 0 }

// emit drops the error; the bus only rejects unknown kinds.
func emit(ctx context.Context, bus Bus, kind events.Kind, payload events.Payload) {
	_ = bus.Emit(ctx, kind, payload)
}
