// Package memory provides an in-memory implementation of the storage interface.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/brilliox/brilliox/pkg/storage"
)

const maxIDAttempts = 5

// MemoryStorage implements the Store interface using in-memory maps.
type MemoryStorage struct {
	mu     sync.RWMutex
	users  map[string]*storage.User
	leads  map[string]*storage.Lead
	shares map[string]map[string]*storage.Share // leadID -> sharedWith -> Share
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:  make(map[string]*storage.User),
		leads:  make(map[string]*storage.Lead),
		shares: make(map[string]map[string]*storage.Share),
	}
}

// GetUser retrieves a user by username.
func (m *MemoryStorage) GetUser(ctx context.Context, username string) (*storage.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, exists := m.users[username]
	if !exists {
		return nil, &storage.NotFoundError{EntityType: "user", ID: username}
	}
	return u.Clone(), nil
}

// CreateUser stores a new user.
func (m *MemoryStorage) CreateUser(ctx context.Context, u *storage.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[u.Username]; exists {
		return &storage.DuplicateKeyError{EntityType: "user", ID: u.Username}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.Username] = u.Clone()
	return nil
}

// UpdateUser replaces an existing user.
func (m *MemoryStorage) UpdateUser(ctx context.Context, u *storage.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[u.Username]; !exists {
		return &storage.NotFoundError{EntityType: "user", ID: u.Username}
	}
	m.users[u.Username] = u.Clone()
	return nil
}

// ListUsers returns all users ordered by username.
func (m *MemoryStorage) ListUsers(ctx context.Context) ([]*storage.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*storage.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, u.Clone())
	}
	storage.SortUsers(result)
	return result, nil
}

// AddLead stores lead under ownerID and returns its id. A lead without an id
// gets a generated one.
func (m *MemoryStorage) AddLead(ctx context.Context, ownerID string, lead *storage.Lead) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lead.ID == "" {
		for i := 0; i < maxIDAttempts; i++ {
			id := storage.NewLeadID()
			if _, exists := m.leads[id]; !exists {
				lead.ID = id
				break
			}
		}
		if lead.ID == "" {
			return "", &storage.DuplicateKeyError{EntityType: "lead", ID: "generated"}
		}
	} else if _, exists := m.leads[lead.ID]; exists {
		return "", &storage.DuplicateKeyError{EntityType: "lead", ID: lead.ID}
	}

	lead.OwnerID = ownerID
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	m.leads[lead.ID] = lead.Clone()
	return lead.ID, nil
}

// GetLead retrieves a lead by id.
func (m *MemoryStorage) GetLead(ctx context.Context, id string) (*storage.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lead, exists := m.leads[id]
	if !exists {
		return nil, &storage.NotFoundError{EntityType: "lead", ID: id}
	}
	return lead.Clone(), nil
}

// UpdateLead replaces an existing lead.
func (m *MemoryStorage) UpdateLead(ctx context.Context, lead *storage.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.leads[lead.ID]; !exists {
		return &storage.NotFoundError{EntityType: "lead", ID: lead.ID}
	}
	m.leads[lead.ID] = lead.Clone()
	return nil
}

// DeleteLead deletes a lead and its shares.
func (m *MemoryStorage) DeleteLead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.leads[id]; !exists {
		return &storage.NotFoundError{EntityType: "lead", ID: id}
	}
	delete(m.leads, id)
	delete(m.shares, id)
	return nil
}

// GetLeads returns the leads owned by ownerID.
func (m *MemoryStorage) GetLeads(ctx context.Context, ownerID string) ([]*storage.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*storage.Lead
	for _, lead := range m.leads {
		if lead.OwnerID == ownerID {
			result = append(result, lead.Clone())
		}
	}
	storage.SortLeads(result)
	return result, nil
}

// GetAllLeads returns every lead.
func (m *MemoryStorage) GetAllLeads(ctx context.Context) ([]*storage.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*storage.Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		result = append(result, lead.Clone())
	}
	storage.SortLeads(result)
	return result, nil
}

// AddShare records a share. Sharing the same lead with the same user again
// replaces the earlier record.
func (m *MemoryStorage) AddShare(ctx context.Context, share *storage.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.leads[share.LeadID]; !exists {
		return &storage.NotFoundError{EntityType: "lead", ID: share.LeadID}
	}
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now()
	}
	if m.shares[share.LeadID] == nil {
		m.shares[share.LeadID] = make(map[string]*storage.Share)
	}
	copied := *share
	m.shares[share.LeadID][share.SharedWith] = &copied
	return nil
}

// GetShares returns the shares of a lead ordered by recipient.
func (m *MemoryStorage) GetShares(ctx context.Context, leadID string) ([]*storage.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*storage.Share, 0, len(m.shares[leadID]))
	for _, s := range m.shares[leadID] {
		copied := *s
		result = append(result, &copied)
	}
	storage.SortShares(result)
	return result, nil
}

// Close closes the storage (no-op for memory storage).
func (m *MemoryStorage) Close() error {
	return nil
}
