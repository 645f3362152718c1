// ABOUTME: Store interface and data types for parley persistence
// ABOUTME: Defines User, Session, token and chat records plus the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
// For tokens this deliberately covers expired, revoked and consumed rows as
// well: callers must not be able to tell a dead token from one that never
// existed.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user with an email that is
// already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrDuplicateToken is returned when inserting a token string that already
// exists. Issuers retry with a fresh token instead of surfacing this.
var ErrDuplicateToken = errors.New("token already exists")

// ErrUnavailable is returned when the backend cannot be reached or the
// operation's deadline expired. Safe to retry with backoff.
var ErrUnavailable = errors.New("storage unavailable")

// ErrIntegrity is returned when a transactional unit failed mid-write and was
// rolled back. Nothing was committed.
var ErrIntegrity = errors.New("storage integrity failure")

// User is an account record. Users are never hard-deleted; deactivation
// flips IsActive.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	JobTitle     string    `json:"job_title,omitempty"`
	Timezone     string    `json:"timezone"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileUpdate carries the mutable profile fields. Nil means leave the
// field alone; empty string clears it.
type ProfileUpdate struct {
	FullName    *string
	DisplayName *string
	AvatarURL   *string
	JobTitle    *string
	Timezone    *string
}

// Session is an authenticated device/browser session. Multiple concurrent
// sessions per user are allowed.
type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	IsActive     bool      `json:"is_active"`
}

// SingleUseToken is a time-boxed token that validates at most once. Used for
// both password resets and email verification.
type SingleUseToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// ChatSession groups the messages of one conversation. The session id is
// supplied by the caller; UserID is nil for anonymous sessions.
type ChatSession struct {
	ID        int64     `json:"-"`
	SessionID string    `json:"session_id"`
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one entry in a session's append-only log. Replay order is
// (Timestamp, ID): the surrogate id breaks timestamp ties deterministically.
type ChatMessage struct {
	ID        int64     `json:"-"`
	SessionID string    `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the capability contract implemented by both backends.
// Every read returns identical shapes regardless of backend; switching
// backends changes connection configuration only.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUserProfile(ctx context.Context, id int64, upd ProfileUpdate) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	DeactivateUser(ctx context.Context, id int64) error

	// Session tokens
	CreateSession(ctx context.Context, session *Session) error
	// TouchSession validates a token and bumps last_used_at in one atomic
	// unit. Returns the owning user id, or ErrNotFound for missing, revoked
	// and expired tokens alike.
	TouchSession(ctx context.Context, token string) (int64, error)
	// RevokeSession deactivates a session. Reports whether an active row
	// matched; revoking twice reports false the second time.
	RevokeSession(ctx context.Context, token string) (bool, error)
	ListUserSessions(ctx context.Context, userID int64) ([]*Session, error)
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Single-use tokens
	CreatePasswordResetToken(ctx context.Context, tok *SingleUseToken) error
	// ConsumePasswordResetToken atomically checks and marks the token used,
	// so two concurrent redemptions cannot both succeed.
	ConsumePasswordResetToken(ctx context.Context, token string) (int64, error)
	CreateEmailVerificationToken(ctx context.Context, tok *SingleUseToken) error
	// ConsumeEmailVerificationToken marks the token used and sets the owning
	// user's is_verified flag; both writes commit together or not at all.
	ConsumeEmailVerificationToken(ctx context.Context, token string) (int64, error)
	DeleteExpiredTokens(ctx context.Context) (int64, error)

	// Chat
	// EnsureChatSession creates the session row if absent. Concurrent
	// first-message races collapse to a single row; repeat calls are no-ops.
	EnsureChatSession(ctx context.Context, sessionID string, userID *int64) error
	// AppendChatMessage inserts a message, creating the session if needed,
	// and bumps the session's updated_at, all in one transaction.
	AppendChatMessage(ctx context.Context, msg *ChatMessage) error
	// GetChatMessages returns up to limit most recent messages in
	// chronological order. Unknown session ids yield an empty slice.
	GetChatMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error)
	ListUserChatSessions(ctx context.Context, userID int64) ([]*ChatSession, error)

	// Close releases any resources held by the store
	Close() error
}
