// ABOUTME: Conversation ledger: append-only chat message log per session
// ABOUTME: Sessions are created lazily and history reads are windowed to the newest N

package ledger

import (
	"context"
	"log/slog"

	"github.com/parleyhq/parley/internal/store"
)

// Well-known message roles. The ledger does not validate membership; callers
// own the role vocabulary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultHistoryLimit is used when a caller asks for history without a
// positive window.
const DefaultHistoryLimit = 50

// Ledger records and replays conversation history.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a ledger backed by st.
func New(st store.Store) *Ledger {
	return &Ledger{
		store:  st,
		logger: slog.Default().With("component", "ledger"),
	}
}

// EnsureSession creates the chat session if it doesn't exist. Calling it
// again, even with a different owner, is a no-op: the first create wins and
// the session id stays unique.
func (l *Ledger) EnsureSession(ctx context.Context, sessionID string, ownerUserID *int64) error {
	return l.store.EnsureChatSession(ctx, sessionID, ownerUserID)
}

// Append adds a message to a session's log, creating the session if needed.
// Messages are never updated or deleted afterwards.
func (l *Ledger) Append(ctx context.Context, sessionID, role, content string) error {
	msg := &store.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
	return l.store.AppendChatMessage(ctx, msg)
}

// History returns up to limit of the most recent messages in chronological
// order (oldest first). Unknown session ids yield an empty history, not an
// error. Non-positive limits fall back to DefaultHistoryLimit.
func (l *Ledger) History(ctx context.Context, sessionID string, limit int) ([]*store.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return l.store.GetChatMessages(ctx, sessionID, limit)
}

// SessionsForUser lists a user's chat sessions, most recently active first.
func (l *Ledger) SessionsForUser(ctx context.Context, userID int64) ([]*store.ChatSession, error) {
	return l.store.ListUserChatSessions(ctx, userID)
}
