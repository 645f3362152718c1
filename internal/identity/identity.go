// ABOUTME: User account service: registration, authentication, profile and password management
// ABOUTME: Sits between callers and the store; wrong passwords and unknown emails look identical

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/vault"
)

// ErrInvalidCredential is returned for a wrong password, an unknown email, or
// a deactivated account. All three produce the same signal so callers cannot
// enumerate accounts.
var ErrInvalidCredential = errors.New("invalid credentials")

// Service provides user account operations over the store.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// NewService creates an identity service backed by st.
func NewService(st store.Store) *Service {
	return &Service{
		store:  st,
		logger: slog.Default().With("component", "identity"),
	}
}

// Register creates a new user account. Returns store.ErrDuplicateEmail if the
// email is already registered.
func (s *Service) Register(ctx context.Context, email, password, fullName, displayName string) (*store.User, error) {
	hash, err := vault.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		DisplayName:  displayName,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("registered user", "id", user.ID)
	return user, nil
}

// Authenticate verifies an email/password pair and returns the account.
// Unknown emails, wrong passwords and deactivated accounts all return
// ErrInvalidCredential.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive || !vault.VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredential
	}

	return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*store.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// GetByEmail returns a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

// UpdateProfile applies a partial profile update.
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd store.ProfileUpdate) error {
	return s.store.UpdateUserProfile(ctx, id, upd)
}

// ChangePassword replaces a user's password with a freshly salted hash.
func (s *Service) ChangePassword(ctx context.Context, id int64, newPassword string) error {
	hash, err := vault.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, id, hash)
}

// ResetPassword consumes a password-reset token and sets the new password.
// The consumption is atomic; if the subsequent password write fails the token
// is already burned, which fails safe.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.store.ConsumePasswordResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.ChangePassword(ctx, userID, newPassword); err != nil {
		return err
	}
	s.logger.Info("reset password", "user_id", userID)
	return nil
}

// Deactivate disables an account. The record is retained.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.store.DeactivateUser(ctx, id)
}
