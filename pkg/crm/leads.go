package crm

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/security"
	"github.com/brilliox/brilliox/pkg/storage"
)

// Lead sources.
const (
	SourceManual = "manual"
	SourceImport = "import"
)

// LeadInput is user supplied lead data.
type LeadInput struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Status   string `json:"status"`
	Notes    string `json:"notes"`
	Source   string `json:"source"`
	Campaign string `json:"campaign"`
}

// LeadPatch changes selected lead fields. Nil fields are left alone.
type LeadPatch struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	Status   *string `json:"status"`
	Notes    *string `json:"notes"`
	Campaign *string `json:"campaign"`
}

// LeadStats summarizes a user's pipeline.
type LeadStats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ConversionRate float64        `json:"conversion_rate"`
}

// ImportResult counts the outcome of a bulk import.
type ImportResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// LeadService manages the lead pipeline.
type LeadService struct {
	store     storage.Store
	bus       Bus
	sanitizer *security.Sanitizer
	logger    logger.Logger
	now       func() time.Time
}

// NewLeadService creates a LeadService. bus and sanitizer may be nil.
func NewLeadService(store storage.Store, bus Bus, sanitizer *security.Sanitizer, log logger.Logger) *LeadService {
	if bus == nil {
		bus = nopBus{}
	}
	if sanitizer == nil {
		sanitizer = security.NewSanitizer(0)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LeadService{store: store, bus: bus, sanitizer: sanitizer, logger: log, now: time.Now}
}

func (s *LeadService) clean(v string) string {
	return s.sanitizer.Clean(strings.TrimSpace(v))
}

// AddLead stores a new lead for owner and emits lead_added.
func (s *LeadService) AddLead(ctx context.Context, owner string, in LeadInput) (*storage.Lead, error) {
	lead := &storage.Lead{
		Name:      s.clean(in.Name),
		Phone:     s.clean(in.Phone),
		Email:     s.clean(in.Email),
		Status:    strings.TrimSpace(in.Status),
		Notes:     s.clean(in.Notes),
		Source:    strings.TrimSpace(in.Source),
		Campaign:  s.clean(in.Campaign),
		CreatedAt: s.now().UTC(),
	}
	if lead.Status == "" {
		lead.Status = StatusNew
	}
	if !ValidStatus(lead.Status) {
		return nil, ErrInvalidStatus
	}
	if lead.Source == "" {
		lead.Source = SourceManual
	}

	id, err := s.store.AddLead(ctx, owner, lead)
	if err != nil {
		return nil, err
	}

	s.bus.IncrementState(ctx, StateTotalLeads, 1)
	emit(ctx, s.bus, events.LeadAdded, events.Payload{
		"lead_id": id,
		"user_id": owner,
		"source":  lead.Source,
		"name":    lead.Name,
	})
	return s.GetLead(ctx, id)
}

// GetLead returns a lead by id.
func (s *LeadService) GetLead(ctx context.Context, id string) (*storage.Lead, error) {
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return lead, nil
}

// Leads returns owner's leads, optionally limited to one status.
func (s *LeadService) Leads(ctx context.Context, owner, status string) ([]*storage.Lead, error) {
	leads, err := s.store.GetLeads(ctx, owner)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return leads, nil
	}
	filtered := leads[:0]
	for _, l := range leads {
		if l.Status == status {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

// AllLeads returns every lead.
func (s *LeadService) AllLeads(ctx context.Context) ([]*storage.Lead, error) {
	return s.store.GetAllLeads(ctx)
}

// UpdateLead applies patch and emits lead_updated. A status change inside
// the patch also goes through the stage change events of UpdateStatus.
func (s *LeadService) UpdateLead(ctx context.Context, id string, patch LeadPatch) (*storage.Lead, error) {
	lead, err := s.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := lead.Status

	var fields []string
	set := func(name string, dst *string, v *string, clean bool) {
		if v == nil {
			return
		}
		val := strings.TrimSpace(*v)
		if clean {
			val = s.clean(val)
		}
		*dst = val
		fields = append(fields, name)
	}
	set("name", &lead.Name, patch.Name, true)
	set("phone", &lead.Phone, patch.Phone, true)
	set("email", &lead.Email, patch.Email, true)
	set("notes", &lead.Notes, patch.Notes, true)
	set("campaign", &lead.Campaign, patch.Campaign, true)
	set("status", &lead.Status, patch.Status, false)

	if !ValidStatus(lead.Status) {
		return nil, ErrInvalidStatus
	}

	now := s.now().UTC()
	lead.UpdatedAt = &now
	if err := s.store.UpdateLead(ctx, lead); err != nil {
		return nil, err
	}

	emit(ctx, s.bus, events.LeadUpdated, events.Payload{
		"lead_id": id,
		"user_id": lead.OwnerID,
		"fields":  fields,
	})
	s.stageChanged(ctx, lead, oldStatus)
	return lead, nil
}

// UpdateStatus moves a lead to another stage.
func (s *LeadService) UpdateStatus(ctx context.Context, id, status string) (*storage.Lead, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	lead, err := s.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := lead.Status
	lead.Status = status
	now := s.now().UTC()
	lead.UpdatedAt = &now
	if err := s.store.UpdateLead(ctx, lead); err != nil {
		return nil, err
	}
	s.stageChanged(ctx, lead, oldStatus)
	return lead, nil
}

// stageChanged emits lead_stage_changed, plus the conversion outcome for
// terminal stages, when the status actually moved.
func (s *LeadService) stageChanged(ctx context.Context, lead *storage.Lead, oldStatus string) {
	if lead.Status == oldStatus {
		return
	}
	emit(ctx, s.bus, events.LeadStageChanged, events.Payload{
		"lead_id":    lead.ID,
		"user_id":    lead.OwnerID,
		"old_status": oldStatus,
		"new_status": lead.Status,
		"stage":      lead.Status,
	})

	outcome := events.Payload{"lead_id": lead.ID, "user_id": lead.OwnerID, "from": oldStatus}
	switch lead.Status {
	case StatusClosed:
		emit(ctx, s.bus, events.ConversionSuccess, outcome)
	case StatusLost:
		emit(ctx, s.bus, events.ConversionFailed, outcome)
	}
}

// DeleteLead removes a lead and emits lead_deleted.
func (s *LeadService) DeleteLead(ctx context.Context, id string) error {
	lead, err := s.GetLead(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLead(ctx, id); err != nil {
		if storage.IsNotFound(err) {
			return ErrLeadNotFound
		}
		return err
	}
	emit(ctx, s.bus, events.LeadDeleted, events.Payload{"lead_id": id, "user_id": lead.OwnerID})
	return nil
}

// ShareLead hands a lead owned by owner to another user.
func (s *LeadService) ShareLead(ctx context.Context, owner, shareWith, leadID, status, notes string) (*storage.Share, error) {
	lead, err := s.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.OwnerID != owner {
		return nil, ErrNotOwner
	}
	if status == "" {
		status = StatusNew
	}
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	share := &storage.Share{
		LeadID:     leadID,
		SharedBy:   owner,
		SharedWith: strings.TrimSpace(shareWith),
		Status:     status,
		Notes:      s.clean(notes),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.AddShare(ctx, share); err != nil {
		return nil, err
	}
	emit(ctx, s.bus, events.LeadDistributed, events.Payload{
		"lead_id":     leadID,
		"shared_by":   owner,
		"shared_with": share.SharedWith,
		"status":      status,
	})
	return share, nil
}

// Stats counts owner's leads per status. The conversion rate is the share
// of closed leads, in percent, rounded to two decimals.
func (s *LeadService) Stats(ctx context.Context, owner string) (LeadStats, error) {
	leads, err := s.store.GetLeads(ctx, owner)
	if err != nil {
		return LeadStats{}, err
	}
	stats := LeadStats{Total: len(leads), ByStatus: map[string]int{}}
	for _, l := range leads {
		status := l.Status
		if status == "" {
			status = "unknown"
		}
		stats.ByStatus[status]++
	}
	if stats.Total > 0 {
		rate := float64(stats.ByStatus[StatusClosed]) / float64(stats.Total) * 100
		stats.ConversionRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

// Import adds rows as new leads. Rows without both name and phone are
// errors; rows whose phone the owner already has are duplicates.
func (s *LeadService) Import(ctx context.Context, owner string, rows []LeadInput) (ImportResult, error) {
	existing, err := s.store.GetLeads(ctx, owner)
	if err != nil {
		return ImportResult{}, err
	}
	phones := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		if p := normalizePhone(l.Phone); p != "" {
			phones[p] = struct{}{}
		}
	}

	var res ImportResult
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" && strings.TrimSpace(row.Phone) == "" {
			res.Errors++
			continue
		}
		phone := normalizePhone(row.Phone)
		if phone != "" {
			if _, dup := phones[phone]; dup {
				res.Duplicates++
				continue
			}
		}

		_, err := s.AddLead(ctx, owner, LeadInput{
			Name:   row.Name,
			Phone:  row.Phone,
			Email:  row.Email,
			Status: StatusNew,
			Source: SourceImport,
		})
		if err != nil {
			s.logger.Warn("lead import row failed", "owner", owner, "error", err)
			res.Errors++
			continue
		}
		if phone != "" {
			phones[phone] = struct{}{}
		}
		res.Imported++
	}
	return res, nil
}

func normalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
