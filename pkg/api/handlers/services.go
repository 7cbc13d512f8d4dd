package handlers

import (
	"context"

	"github.com/brilliox/brilliox/pkg/ai"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/storage"
)

// Users is the account service used by the handlers. *crm.UserService
// satisfies it.
type Users interface {
	GetOrCreate(ctx context.Context, username string) (*storage.User, error)
	Login(ctx context.Context, username, password string) (*storage.User, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	IsAdmin(username string) bool
	Deduct(ctx context.Context, username string, amount int) (int, error)
	CanAfford(ctx context.Context, username string, amount int) (bool, int, error)
	Balance(ctx context.Context, username string) (int, error)
}

// Leads is the lead pipeline used by the handlers. *crm.LeadService
// satisfies it.
type Leads interface {
	AddLead(ctx context.Context, owner string, in crm.LeadInput) (*storage.Lead, error)
	Leads(ctx context.Context, owner, status string) ([]*storage.Lead, error)
	UpdateLead(ctx context.Context, id string, patch crm.LeadPatch) (*storage.Lead, error)
	DeleteLead(ctx context.Context, id string) error
	ShareLead(ctx context.Context, owner, shareWith, leadID, status, notes string) (*storage.Share, error)
	Stats(ctx context.Context, owner string) (crm.LeadStats, error)
	Import(ctx context.Context, owner string, rows []crm.LeadInput) (crm.ImportResult, error)
}

// Scorer rates leads. *crm.Scorer satisfies it.
type Scorer interface {
	ScoreBatch(leads []*storage.Lead) []crm.ScoredLead
	Insights(leads []*storage.Lead, lang string) crm.Insights
}

// Generator produces AI text. *ai.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, req ai.Request) ai.Result
	HuntQuery(ctx context.Context, profession, location, extra string) (string, ai.Result)
	AdCopy(ctx context.Context, product, description, audience, platform, lang string) ai.AdCopy
	Providers() map[string]bool
}

// SystemBus is the administrative surface of the process bus. *events.Bus
// satisfies it.
type SystemBus interface {
	Ready() bool
	Stats() map[string]any
	History(n int) []events.Record
	Rules() []events.Rule
	AddRule(ctx context.Context, rule events.Rule) error
	RemoveRule(ctx context.Context, id string) error
	Patterns() []events.Pattern
	LearnPattern(ctx context.Context, p events.Pattern) error
}
