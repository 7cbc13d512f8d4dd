// Package storage provides persistent storage abstraction for users, leads
// and lead shares.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for persistent storage operations.
type Store interface {
	// User operations
	GetUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]*User, error)

	// Lead operations
	AddLead(ctx context.Context, ownerID string, lead *Lead) (string, error)
	GetLead(ctx context.Context, id string) (*Lead, error)
	UpdateLead(ctx context.Context, lead *Lead) error
	DeleteLead(ctx context.Context, id string) error
	GetLeads(ctx context.Context, ownerID string) ([]*Lead, error)
	GetAllLeads(ctx context.Context) ([]*Lead, error)

	// Share operations
	AddShare(ctx context.Context, share *Share) error
	GetShares(ctx context.Context, leadID string) ([]*Share, error)

	// Lifecycle
	Close() error
}

// User is an account with a token wallet.
type User struct {
	Username      string     `json:"username"`
	WalletBalance int        `json:"wallet_balance"`
	IsAdmin       bool       `json:"is_admin"`
	PasswordHash  string     `json:"password,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	c.UpdatedAt = cloneTime(u.UpdatedAt)
	return &c
}

// Lead is a prospective customer owned by one user.
type Lead struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"user_id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Email     string     `json:"email,omitempty"`
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
	Source    string     `json:"source"`
	Campaign  string     `json:"campaign,omitempty"`
	Score     int        `json:"score"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy of l.
func (l *Lead) Clone() *Lead {
	c := *l
	c.UpdatedAt = cloneTime(l.UpdatedAt)
	return &c
}

// Share records that a lead was handed to another user.
type Share struct {
	LeadID     string    `json:"lead_id"`
	SharedBy   string    `json:"shared_by"`
	SharedWith string    `json:"shared_with"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewLeadID returns a short random lead identifier.
func NewLeadID() string {
	return uuid.NewString()[:8]
}

// SortLeads orders leads by creation time, then id.
func SortLeads(leads []*Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].CreatedAt.Equal(leads[j].CreatedAt) {
			return leads[i].ID < leads[j].ID
		}
		return leads[i].CreatedAt.Before(leads[j].CreatedAt)
	})
}

// SortUsers orders users by username.
func SortUsers(users []*User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}

// SortShares orders shares by recipient.
func SortShares(shares []*Share) {
	sort.Slice(shares, func(i, j int) bool { return shares[i].SharedWith < shares[j].SharedWith })
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// NotFoundError indicates that the requested entity was not found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// DuplicateKeyError indicates that an entity with the given ID already exists.
type DuplicateKeyError struct {
	EntityType string
	ID         string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.EntityType, e.ID)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Cause }

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDuplicate reports whether err is a DuplicateKeyError.
func IsDuplicate(err error) bool {
	var dk *DuplicateKeyError
	return errors.As(err, &dk)
}
