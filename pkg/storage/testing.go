package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// StorageTestSuite defines a test suite that can be run against any Store implementation.
type StorageTestSuite struct {
	NewStorage func(t *testing.T) Store
}

// RunAllTests runs all storage tests against the provided storage implementation.
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run("UserCRUD", s.TestUserCRUD)
	t.Run("DuplicateUser", s.TestDuplicateUser)
	t.Run("LeadCRUD", s.TestLeadCRUD)
	t.Run("LeadsByOwner", s.TestLeadsByOwner)
	t.Run("LeadIDs", s.TestLeadIDs)
	t.Run("DeleteLeadCascade", s.TestDeleteLeadCascade)
	t.Run("Shares", s.TestShares)
	t.Run("ReturnedCopiesAreIsolated", s.TestReturnedCopiesAreIsolated)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
	t.Run("NotFound", s.TestNotFound)
}

// TestUserCRUD tests basic user operations.
func (s *StorageTestSuite) TestUserCRUD(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	u := &User{Username: "alice", WalletBalance: 100}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	retrieved, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if retrieved.WalletBalance != 100 {
		t.Errorf("expected balance 100, got %d", retrieved.WalletBalance)
	}

	retrieved.WalletBalance = 80
	retrieved.PasswordHash = "hash"
	now := time.Now()
	retrieved.UpdatedAt = &now
	if err := store.UpdateUser(ctx, retrieved); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	updated, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser (after update) failed: %v", err)
	}
	if updated.WalletBalance != 80 || updated.PasswordHash != "hash" {
		t.Errorf("update not persisted: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Error("expected UpdatedAt to be set")
	}

	if err := store.CreateUser(ctx, &User{Username: "bob"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
		t.Errorf("unexpected users: %+v", users)
	}
}

// TestDuplicateUser tests that creating an existing user fails.
func (s *StorageTestSuite) TestDuplicateUser(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateUser(ctx, &User{Username: "alice"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	err := store.CreateUser(ctx, &User{Username: "alice"})
	if !IsDuplicate(err) {
		t.Errorf("expected DuplicateKeyError, got %v", err)
	}
}

// TestLeadCRUD tests basic lead operations.
func (s *StorageTestSuite) TestLeadCRUD(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	lead := &Lead{Name: "Omar", Phone: "+20100", Status: "new", Source: "manual"}
	id, err := store.AddLead(ctx, "alice", lead)
	if err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}
	if id == "" || lead.ID != id {
		t.Fatalf("expected generated id on lead, got %q / %q", id, lead.ID)
	}

	retrieved, err := store.GetLead(ctx, id)
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if retrieved.OwnerID != "alice" {
		t.Errorf("expected owner alice, got %s", retrieved.OwnerID)
	}
	if retrieved.Name != "Omar" || retrieved.Phone != "+20100" {
		t.Errorf("unexpected lead: %+v", retrieved)
	}

	retrieved.Status = "hot"
	retrieved.Score = 85
	if err := store.UpdateLead(ctx, retrieved); err != nil {
		t.Fatalf("UpdateLead failed: %v", err)
	}

	updated, err := store.GetLead(ctx, id)
	if err != nil {
		t.Fatalf("GetLead (after update) failed: %v", err)
	}
	if updated.Status != "hot" || updated.Score != 85 {
		t.Errorf("update not persisted: %+v", updated)
	}

	if err := store.DeleteLead(ctx, id); err != nil {
		t.Fatalf("DeleteLead failed: %v", err)
	}
	if _, err := store.GetLead(ctx, id); !IsNotFound(err) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
	leads, err := store.GetLeads(ctx, "alice")
	if err != nil {
		t.Fatalf("GetLeads failed: %v", err)
	}
	if len(leads) != 0 {
		t.Errorf("expected no leads after delete, got %d", len(leads))
	}
}

// TestLeadsByOwner tests owner scoping and ordering.
func (s *StorageTestSuite) TestLeadsByOwner(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		lead := &Lead{Name: fmt.Sprintf("a%d", i), CreatedAt: base.Add(time.Duration(2-i) * time.Minute)}
		if _, err := store.AddLead(ctx, "alice", lead); err != nil {
			t.Fatalf("AddLead failed: %v", err)
		}
	}
	if _, err := store.AddLead(ctx, "bob", &Lead{Name: "b0", CreatedAt: base}); err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}

	alice, err := store.GetLeads(ctx, "alice")
	if err != nil {
		t.Fatalf("GetLeads failed: %v", err)
	}
	if len(alice) != 3 {
		t.Fatalf("expected 3 leads for alice, got %d", len(alice))
	}
	if alice[0].Name != "a2" || alice[2].Name != "a0" {
		t.Errorf("expected leads oldest first, got %s..%s", alice[0].Name, alice[2].Name)
	}

	all, err := store.GetAllLeads(ctx)
	if err != nil {
		t.Fatalf("GetAllLeads failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 leads in total, got %d", len(all))
	}

	none, err := store.GetLeads(ctx, "carol")
	if err != nil {
		t.Fatalf("GetLeads failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no leads for carol, got %d", len(none))
	}
}

// TestLeadIDs tests generated and explicit lead ids.
func (s *StorageTestSuite) TestLeadIDs(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	id, err := store.AddLead(ctx, "alice", &Lead{Name: "x"})
	if err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}
	if len(id) != 8 {
		t.Errorf("expected 8 character id, got %q", id)
	}

	if _, err := store.AddLead(ctx, "alice", &Lead{ID: "fixed001", Name: "y"}); err != nil {
		t.Fatalf("AddLead with explicit id failed: %v", err)
	}
	_, err = store.AddLead(ctx, "bob", &Lead{ID: "fixed001", Name: "z"})
	if !IsDuplicate(err) {
		t.Errorf("expected DuplicateKeyError, got %v", err)
	}
}

// TestDeleteLeadCascade tests that deleting a lead removes its shares.
func (s *StorageTestSuite) TestDeleteLeadCascade(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	id, err := store.AddLead(ctx, "alice", &Lead{Name: "x"})
	if err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}
	if err := store.AddShare(ctx, &Share{LeadID: id, SharedBy: "alice", SharedWith: "bob"}); err != nil {
		t.Fatalf("AddShare failed: %v", err)
	}
	if err := store.DeleteLead(ctx, id); err != nil {
		t.Fatalf("DeleteLead failed: %v", err)
	}

	shares, err := store.GetShares(ctx, id)
	if err != nil {
		t.Fatalf("GetShares failed: %v", err)
	}
	if len(shares) != 0 {
		t.Errorf("expected shares to be deleted, got %d", len(shares))
	}
}

// TestShares tests share persistence.
func (s *StorageTestSuite) TestShares(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	id, err := store.AddLead(ctx, "alice", &Lead{Name: "x"})
	if err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}

	for _, with := range []string{"carol", "bob"} {
		if err := store.AddShare(ctx, &Share{LeadID: id, SharedBy: "alice", SharedWith: with, Status: "new"}); err != nil {
			t.Fatalf("AddShare failed: %v", err)
		}
	}
	// Re-sharing with the same user replaces the record.
	if err := store.AddShare(ctx, &Share{LeadID: id, SharedBy: "alice", SharedWith: "bob", Status: "hot"}); err != nil {
		t.Fatalf("AddShare failed: %v", err)
	}

	shares, err := store.GetShares(ctx, id)
	if err != nil {
		t.Fatalf("GetShares failed: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	if shares[0].SharedWith != "bob" || shares[0].Status != "hot" {
		t.Errorf("unexpected first share: %+v", shares[0])
	}
	if shares[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	err = store.AddShare(ctx, &Share{LeadID: "missing1", SharedWith: "bob"})
	if !IsNotFound(err) {
		t.Errorf("expected NotFoundError for unknown lead, got %v", err)
	}
}

// TestReturnedCopiesAreIsolated tests that callers cannot mutate stored state.
func (s *StorageTestSuite) TestReturnedCopiesAreIsolated(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	lead := &Lead{Name: "x"}
	id, err := store.AddLead(ctx, "alice", lead)
	if err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}
	lead.Name = "mutated"

	got, err := store.GetLead(ctx, id)
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	got.Status = "lost"

	again, err := store.GetLead(ctx, id)
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if again.Name != "x" || again.Status != "" {
		t.Errorf("stored lead was mutated: %+v", again)
	}
}

// TestConcurrentAccess tests concurrent lead writes.
func (s *StorageTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateUser(ctx, &User{Username: "alice"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	const workers = 10
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := store.AddLead(ctx, "alice", &Lead{Name: fmt.Sprintf("%d-%d", w, i)}); err != nil {
					errs <- err
				}
				if _, err := store.GetUser(ctx, "alice"); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}

	leads, err := store.GetLeads(ctx, "alice")
	if err != nil {
		t.Fatalf("GetLeads failed: %v", err)
	}
	if len(leads) != workers*perWorker {
		t.Errorf("expected %d leads, got %d", workers*perWorker, len(leads))
	}
}

// TestNotFound tests not-found errors for every entity.
func (s *StorageTestSuite) TestNotFound(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	if _, err := store.GetUser(ctx, "ghost"); !IsNotFound(err) {
		t.Errorf("GetUser: expected NotFoundError, got %v", err)
	}
	if err := store.UpdateUser(ctx, &User{Username: "ghost"}); !IsNotFound(err) {
		t.Errorf("UpdateUser: expected NotFoundError, got %v", err)
	}
	if _, err := store.GetLead(ctx, "nope0000"); !IsNotFound(err) {
		t.Errorf("GetLead: expected NotFoundError, got %v", err)
	}
	if err := store.UpdateLead(ctx, &Lead{ID: "nope0000"}); !IsNotFound(err) {
		t.Errorf("UpdateLead: expected NotFoundError, got %v", err)
	}
	if err := store.DeleteLead(ctx, "nope0000"); !IsNotFound(err) {
		t.Errorf("DeleteLead: expected NotFoundError, got %v", err)
	}
}
