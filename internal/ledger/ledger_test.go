// ABOUTME: Tests for the conversation ledger
// ABOUTME: Covers append/replay round trips, windowing and session listing

package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/store"
)

func newTestLedger(t *testing.T) (*Ledger, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st), st
}

func TestAppendAndHistory(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, "conv-1", RoleUser, "hi"))
	require.NoError(t, l.Append(ctx, "conv-1", RoleAssistant, "hello"))

	history, err := l.History(ctx, "conv-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Equal(t, "hello", history[1].Content)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestHistory_Window(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Append(ctx, "conv-1", RoleUser, fmt.Sprintf("m%d", i)))
	}

	history, err := l.History(ctx, "conv-1", 4)
	require.NoError(t, err)
	require.Len(t, history, 4)

	// Newest four, oldest first.
	for i, want := range []string{"m6", "m7", "m8", "m9"} {
		assert.Equal(t, want, history[i].Content)
	}
}

func TestHistory_DefaultLimit(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < DefaultHistoryLimit+5; i++ {
		require.NoError(t, l.Append(ctx, "conv-1", RoleUser, fmt.Sprintf("m%d", i)))
	}

	history, err := l.History(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, DefaultHistoryLimit)
	assert.Equal(t, "m5", history[0].Content)
}

func TestHistory_UnknownSession(t *testing.T) {
	l, _ := newTestLedger(t)

	history, err := l.History(context.Background(), "nope", 50)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEnsureSessionAndListing(t *testing.T) {
	l, st := newTestLedger(t)
	ctx := context.Background()

	user := &store.User{Email: "u@example.com", PasswordHash: "aa:bb"}
	require.NoError(t, st.CreateUser(ctx, user))

	require.NoError(t, l.EnsureSession(ctx, "owned", &user.ID))
	require.NoError(t, l.EnsureSession(ctx, "anonymous", nil))

	// Idempotent, even with a different owner.
	require.NoError(t, l.EnsureSession(ctx, "owned", nil))

	sessions, err := l.SessionsForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "owned", sessions[0].SessionID)
	require.NotNil(t, sessions[0].UserID)
	assert.Equal(t, user.ID, *sessions[0].UserID)
}

func TestAppend_CreatesSessionLazily(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, "fresh", RoleUser, "first message"))

	history, err := l.History(ctx, "fresh", 50)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "first message", history[0].Content)
}
