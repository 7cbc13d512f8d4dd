package crm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/security"
	"github.com/brilliox/brilliox/pkg/storage"
)

// UserConfig holds account defaults.
type UserConfig struct {
	AdminUsername  string
	DefaultBalance int
}

// UserService manages accounts and token wallets.
type UserService struct {
	store  storage.Store
	bus    Bus
	cfg    UserConfig
	logger logger.Logger
	now    func() time.Time

	// walletMu serializes read-modify-write cycles on balances and
	// first-time account creation.
	walletMu sync.Mutex
}

// NewUserService creates a UserService. bus may be nil.
func NewUserService(store storage.Store, bus Bus, cfg UserConfig, log logger.Logger) *UserService {
	if bus == nil {
		bus = nopBus{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &UserService{store: store, bus: bus, cfg: cfg, logger: log, now: time.Now}
}

// IsAdmin reports whether username is the configured administrator.
func (s *UserService) IsAdmin(username string) bool {
	return s.cfg.AdminUsername != "" && strings.EqualFold(strings.TrimSpace(username), s.cfg.AdminUsername)
}

// GetOrCreate returns the user, creating it with the default balance on
// first sight.
func (s *UserService) GetOrCreate(ctx context.Context, username string) (*storage.User, error) {
	s.walletMu.Lock()
	defer s.walletMu.Unlock()
	return s.getOrCreateLocked(ctx, username)
}

func (s *UserService) getOrCreateLocked(ctx context.Context, username string) (*storage.User, error) {
	u, err := s.store.GetUser(ctx, username)
	if err == nil {
		return u, nil
	}
	if !storage.IsNotFound(err) {
		return nil, err
	}

	u = &storage.User{
		Username:      username,
		WalletBalance: s.cfg.DefaultBalance,
		IsAdmin:       s.IsAdmin(username),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if storage.IsDuplicate(err) {
			return s.store.GetUser(ctx, username)
		}
		return nil, err
	}
	s.bus.IncrementState(ctx, StateActiveUsers, 1)
	s.logger.Info("user created", "username", username)
	return u, nil
}

// Login verifies a password. Accounts with no password cannot log in.
func (s *UserService) Login(ctx context.Context, username, password string) (*storage.User, error) {
	u, err := s.store.GetUser(ctx, username)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.VerifyPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if security.NeedsRehash(u.PasswordHash) {
		if hash, err := security.HashPassword(password); err == nil {
			u.PasswordHash = hash
			if err := s.save(ctx, u); err != nil {
				s.logger.Warn("password rehash failed", "username", username, "error", err)
			}
		}
	}
	return u, nil
}

// ChangePassword replaces the password after checking the old one. Users
// without a password may set one without an old password.
func (s *UserService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	u, err := s.store.GetUser(ctx, username)
	if err != nil {
		if storage.IsNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}
	if u.PasswordHash != "" && !security.VerifyPassword(oldPassword, u.PasswordHash) {
		return ErrWrongPassword
	}
	return s.setPassword(ctx, u, newPassword)
}

// SetPassword sets a password unconditionally, creating the user if needed.
func (s *UserService) SetPassword(ctx context.Context, username, password string) error {
	u, err := s.GetOrCreate(ctx, username)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, u, password)
}

func (s *UserService) setPassword(ctx context.Context, u *storage.User, password string) error {
	if err := security.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.save(ctx, u)
}

// Balance returns the wallet balance, creating the user if needed.
func (s *UserService) Balance(ctx context.Context, username string) (int, error) {
	u, err := s.GetOrCreate(ctx, username)
	if err != nil {
		return 0, err
	}
	return u.WalletBalance, nil
}

// AdjustBalance adds delta to the balance. A change that would take the
// balance below zero is refused with ErrInsufficientBalance.
func (s *UserService) AdjustBalance(ctx context.Context, username string, delta int) (int, error) {
	s.walletMu.Lock()
	defer s.walletMu.Unlock()

	u, err := s.getOrCreateLocked(ctx, username)
	if err != nil {
		return 0, err
	}
	next := u.WalletBalance + delta
	if next < 0 {
		return u.WalletBalance, ErrInsufficientBalance
	}
	u.WalletBalance = next
	if err := s.save(ctx, u); err != nil {
		return 0, err
	}
	return next, nil
}

// Deduct charges amount tokens and returns the remaining balance.
func (s *UserService) Deduct(ctx context.Context, username string, amount int) (int, error) {
	if amount < 0 {
		amount = 0
	}
	return s.AdjustBalance(ctx, username, -amount)
}

// CanAfford reports whether the user holds at least amount tokens.
func (s *UserService) CanAfford(ctx context.Context, username string, amount int) (bool, int, error) {
	balance, err := s.Balance(ctx, username)
	if err != nil {
		return false, 0, err
	}
	return balance >= amount, balance, nil
}

// ListUsers returns all accounts.
func (s *UserService) ListUsers(ctx context.Context) ([]*storage.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *UserService) save(ctx context.Context, u *storage.User) error {
	now := s.now().UTC()
	u.UpdatedAt = &now
	return s.store.UpdateUser(ctx, u)
}
