// ABOUTME: Token issuer for session, password-reset and email-verification tokens
// ABOUTME: Generates opaque high-entropy strings and retries on uniqueness collisions

package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/vault"
)

// Default token lifetimes.
const (
	SessionTTL      = 7 * 24 * time.Hour
	ResetTTL        = time.Hour
	VerificationTTL = 7 * 24 * time.Hour
)

// issueAttempts bounds retries on token-string collisions. A collision takes
// 256 bits of bad luck, so more than one retry is already paranoia.
const issueAttempts = 3

// Metadata carries optional per-session request context.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// Issuer creates and validates tokens against the store.
type Issuer struct {
	store  store.Store
	logger *slog.Logger

	sessionTTL      time.Duration
	resetTTL        time.Duration
	verificationTTL time.Duration
}

// Option adjusts an Issuer.
type Option func(*Issuer)

// WithSessionTTL overrides the session token lifetime.
func WithSessionTTL(d time.Duration) Option {
	return func(i *Issuer) { i.sessionTTL = d }
}

// WithResetTTL overrides the password-reset token lifetime.
func WithResetTTL(d time.Duration) Option {
	return func(i *Issuer) { i.resetTTL = d }
}

// WithVerificationTTL overrides the email-verification token lifetime.
func WithVerificationTTL(d time.Duration) Option {
	return func(i *Issuer) { i.verificationTTL = d }
}

// NewIssuer creates a token issuer backed by st.
func NewIssuer(st store.Store, opts ...Option) *Issuer {
	i := &Issuer{
		store:           st,
		logger:          slog.Default().With("component", "token"),
		sessionTTL:      SessionTTL,
		resetTTL:        ResetTTL,
		verificationTTL: VerificationTTL,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueSession creates a new session with paired refresh token for a user.
// The store enforces token uniqueness; on the (negligible but handled)
// chance of a collision, issuance retries with fresh tokens instead of
// overwriting.
func (i *Issuer) IssueSession(ctx context.Context, userID int64, meta Metadata) (*store.Session, error) {
	for attempt := 0; attempt < issueAttempts; attempt++ {
		tok, err := vault.NewToken()
		if err != nil {
			return nil, err
		}
		refresh, err := vault.NewToken()
		if err != nil {
			return nil, err
		}

		session := &store.Session{
			UserID:       userID,
			Token:        tok,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().UTC().Add(i.sessionTTL).Truncate(time.Second),
			UserAgent:    meta.UserAgent,
			IPAddress:    meta.IPAddress,
		}

		err = i.store.CreateSession(ctx, session)
		if errors.Is(err, store.ErrDuplicateToken) {
			i.logger.Warn("session token collision, retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		i.logger.Debug("issued session", "user_id", userID, "expires_at", session.ExpiresAt)
		return session, nil
	}
	return nil, fmt.Errorf("issuing session: %w", store.ErrDuplicateToken)
}

// ValidateSession returns the user id owning an active, unexpired session
// token, updating the session's last_used_at as a side effect. Expired,
// revoked and unknown tokens are indistinguishable: all store.ErrNotFound.
func (i *Issuer) ValidateSession(ctx context.Context, token string) (int64, error) {
	return i.store.TouchSession(ctx, token)
}

// RevokeSession deactivates a session token. Reports true if an active
// session was revoked, false if none matched (including a second revoke).
func (i *Issuer) RevokeSession(ctx context.Context, token string) (bool, error) {
	return i.store.RevokeSession(ctx, token)
}

// IssuePasswordReset creates a one-hour single-use reset token and returns
// the raw token string. Delivering it to the user is the caller's problem.
func (i *Issuer) IssuePasswordReset(ctx context.Context, userID int64) (string, error) {
	return i.issueSingleUse(ctx, userID, i.resetTTL, i.store.CreatePasswordResetToken)
}

// ConsumePasswordReset validates and burns a reset token, returning the
// owning user id. A given token succeeds at most once.
func (i *Issuer) ConsumePasswordReset(ctx context.Context, token string) (int64, error) {
	return i.store.ConsumePasswordResetToken(ctx, token)
}

// IssueEmailVerification creates a seven-day single-use verification token.
func (i *Issuer) IssueEmailVerification(ctx context.Context, userID int64) (string, error) {
	return i.issueSingleUse(ctx, userID, i.verificationTTL, i.store.CreateEmailVerificationToken)
}

// ConsumeEmailVerification validates and burns a verification token, marking
// the owning user verified in the same transactional unit.
func (i *Issuer) ConsumeEmailVerification(ctx context.Context, token string) error {
	_, err := i.store.ConsumeEmailVerificationToken(ctx, token)
	return err
}

func (i *Issuer) issueSingleUse(ctx context.Context, userID int64, ttl time.Duration, create func(context.Context, *store.SingleUseToken) error) (string, error) {
	for attempt := 0; attempt < issueAttempts; attempt++ {
		tok, err := vault.NewToken()
		if err != nil {
			return "", err
		}

		record := &store.SingleUseToken{
			UserID:    userID,
			Token:     tok,
			ExpiresAt: time.Now().UTC().Add(ttl).Truncate(time.Second),
		}

		err = create(ctx, record)
		if errors.Is(err, store.ErrDuplicateToken) {
			i.logger.Warn("token collision, retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return "", err
		}
		return tok, nil
	}
	return "", fmt.Errorf("issuing token: %w", store.ErrDuplicateToken)
}
