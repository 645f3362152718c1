// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers user CRUD, token lifecycles, single-use consumption and chat ordering

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *SQLiteStore, email string) *User {
	t.Helper()
	user := &User{Email: email, PasswordHash: "aa:bb"}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	newTestUser(t, s1, "keep@example.com")
	s1.Close()

	// Reopening migrates again; must be a no-op and keep existing data.
	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer s2.Close()

	if _, err := s2.GetUserByEmail(context.Background(), "keep@example.com"); err != nil {
		t.Errorf("data lost across reopen: %v", err)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{
		Email:        "a@example.com",
		PasswordHash: "salt:digest",
		FullName:     "Ada Example",
		DisplayName:  "ada",
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("CreateUser did not assign an id")
	}

	got, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Email != "a@example.com" {
		t.Errorf("Email mismatch: got %q", got.Email)
	}
	if got.FullName != "Ada Example" {
		t.Errorf("FullName mismatch: got %q", got.FullName)
	}
	if got.Timezone != "UTC" {
		t.Errorf("Timezone default mismatch: got %q", got.Timezone)
	}
	if !got.IsActive {
		t.Error("new user should be active")
	}
	if got.IsVerified {
		t.Error("new user should not be verified")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	byEmail, err := s.GetUserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("id mismatch: got %d, want %d", byEmail.ID, user.ID)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	newTestUser(t, s, "dup@example.com")

	err := s.CreateUser(ctx, &User{Email: "dup@example.com", PasswordHash: "x:y"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetUserByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByEmail_CaseSensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	newTestUser(t, s, "Case@example.com")

	if _, err := s.GetUserByEmail(ctx, "case@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("emails must compare as stored; got %v", err)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "p@example.com")

	name := "Pat Example"
	tz := "Europe/Riga"
	if err := s.UpdateUserProfile(ctx, user.ID, ProfileUpdate{FullName: &name, Timezone: &tz}); err != nil {
		t.Fatalf("UpdateUserProfile failed: %v", err)
	}

	got, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.FullName != name {
		t.Errorf("FullName not updated: got %q", got.FullName)
	}
	if got.Timezone != tz {
		t.Errorf("Timezone not updated: got %q", got.Timezone)
	}
	if got.DisplayName != "" {
		t.Errorf("DisplayName should be untouched, got %q", got.DisplayName)
	}

	// Empty update is a no-op, not an error.
	if err := s.UpdateUserProfile(ctx, user.ID, ProfileUpdate{}); err != nil {
		t.Errorf("empty update should be a no-op: %v", err)
	}

	if err := s.UpdateUserProfile(ctx, 999, ProfileUpdate{FullName: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "pw@example.com")

	if err := s.UpdateUserPassword(ctx, user.ID, "new:hash"); err != nil {
		t.Fatalf("UpdateUserPassword failed: %v", err)
	}
	got, _ := s.GetUserByID(ctx, user.ID)
	if got.PasswordHash != "new:hash" {
		t.Errorf("hash not updated: got %q", got.PasswordHash)
	}

	if err := s.UpdateUserPassword(ctx, 999, "x:y"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "bye@example.com")

	if err := s.DeactivateUser(ctx, user.ID); err != nil {
		t.Fatalf("DeactivateUser failed: %v", err)
	}

	// Row is kept, only flagged.
	got, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.IsActive {
		t.Error("user should be inactive")
	}
}

func newTestSession(t *testing.T, s *SQLiteStore, userID int64, token string, expiresAt time.Time) *Session {
	t.Helper()
	sess := &Session{
		UserID:       userID,
		Token:        token,
		RefreshToken: token + "-refresh",
		ExpiresAt:    expiresAt,
	}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return sess
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "s@example.com")

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	newTestSession(t, s, user.ID, "tok-1", expires)

	// Valid immediately after issuance.
	gotID, err := s.TouchSession(ctx, "tok-1")
	if err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}
	if gotID != user.ID {
		t.Errorf("user id mismatch: got %d, want %d", gotID, user.ID)
	}

	// Revoke deactivates; first call reports true, second false.
	revoked, err := s.RevokeSession(ctx, "tok-1")
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if !revoked {
		t.Error("first revoke should report true")
	}
	revoked, err = s.RevokeSession(ctx, "tok-1")
	if err != nil {
		t.Fatalf("second RevokeSession failed: %v", err)
	}
	if revoked {
		t.Error("second revoke should report false")
	}

	// Revoked token validates as not-found.
	if _, err := s.TouchSession(ctx, "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestTouchSession_Expired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "e@example.com")

	past := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	newTestSession(t, s, user.ID, "old-tok", past)

	// Expired without revocation still reads as not-found.
	if _, err := s.TouchSession(ctx, "old-tok"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestTouchSession_BumpsLastUsed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "touch@example.com")

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	sess := &Session{
		UserID:     user.ID,
		Token:      "touch-tok",
		ExpiresAt:  expires,
		CreatedAt:  time.Now().UTC().Add(-time.Hour).Truncate(time.Second),
		LastUsedAt: time.Now().UTC().Add(-time.Hour).Truncate(time.Second),
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := s.TouchSession(ctx, "touch-tok"); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}

	sessions, err := s.ListUserSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListUserSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if !sessions[0].LastUsedAt.After(sess.CreatedAt) {
		t.Errorf("last_used_at not bumped: %v", sessions[0].LastUsedAt)
	}
}

func TestCreateSession_DuplicateToken(t *testing.T) {
	s := newTestStore(t)
	user := newTestUser(t, s, "d@example.com")

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	newTestSession(t, s, user.ID, "same-token", expires)

	err := s.CreateSession(context.Background(), &Session{
		UserID:    user.ID,
		Token:     "same-token",
		ExpiresAt: expires,
	})
	if !errors.Is(err, ErrDuplicateToken) {
		t.Errorf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "x@example.com")

	past := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	future := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	newTestSession(t, s, user.ID, "dead", past)
	newTestSession(t, s, user.ID, "alive", future)

	count, err := s.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 deleted session, got %d", count)
	}

	sessions, _ := s.ListUserSessions(ctx, user.ID)
	if len(sessions) != 1 || sessions[0].Token != "alive" {
		t.Errorf("wrong survivors: %+v", sessions)
	}
}

func TestPasswordResetToken_SingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "r@example.com")

	tok := &SingleUseToken{
		UserID:    user.ID,
		Token:     "reset-1",
		ExpiresAt: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	if err := s.CreatePasswordResetToken(ctx, tok); err != nil {
		t.Fatalf("CreatePasswordResetToken failed: %v", err)
	}

	gotID, err := s.ConsumePasswordResetToken(ctx, "reset-1")
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if gotID != user.ID {
		t.Errorf("user id mismatch: got %d, want %d", gotID, user.ID)
	}

	// Second redemption must fail even though the token hasn't expired.
	if _, err := s.ConsumePasswordResetToken(ctx, "reset-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second consume, got %v", err)
	}
}

func TestPasswordResetToken_Expired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "r2@example.com")

	tok := &SingleUseToken{
		UserID:    user.ID,
		Token:     "reset-old",
		ExpiresAt: time.Now().UTC().Add(-time.Minute).Truncate(time.Second),
	}
	if err := s.CreatePasswordResetToken(ctx, tok); err != nil {
		t.Fatalf("CreatePasswordResetToken failed: %v", err)
	}

	if _, err := s.ConsumePasswordResetToken(ctx, "reset-old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestEmailVerificationToken_MarksUserVerified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "v@example.com")

	tok := &SingleUseToken{
		UserID:    user.ID,
		Token:     "verify-1",
		ExpiresAt: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	if err := s.CreateEmailVerificationToken(ctx, tok); err != nil {
		t.Fatalf("CreateEmailVerificationToken failed: %v", err)
	}

	gotID, err := s.ConsumeEmailVerificationToken(ctx, "verify-1")
	if err != nil {
		t.Fatalf("ConsumeEmailVerificationToken failed: %v", err)
	}
	if gotID != user.ID {
		t.Errorf("user id mismatch: got %d, want %d", gotID, user.ID)
	}

	// Both writes committed together: token burned, user verified.
	got, _ := s.GetUserByID(ctx, user.ID)
	if !got.IsVerified {
		t.Error("user should be verified")
	}
	if _, err := s.ConsumeEmailVerificationToken(ctx, "verify-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second consume, got %v", err)
	}
}

func TestDeleteExpiredTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "t@example.com")

	past := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	future := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	for i, exp := range []time.Time{past, future} {
		err := s.CreatePasswordResetToken(ctx, &SingleUseToken{UserID: user.ID, Token: fmt.Sprintf("r-%d", i), ExpiresAt: exp})
		if err != nil {
			t.Fatalf("CreatePasswordResetToken failed: %v", err)
		}
		err = s.CreateEmailVerificationToken(ctx, &SingleUseToken{UserID: user.ID, Token: fmt.Sprintf("v-%d", i), ExpiresAt: exp})
		if err != nil {
			t.Fatalf("CreateEmailVerificationToken failed: %v", err)
		}
	}

	count, err := s.DeleteExpiredTokens(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredTokens failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 deleted tokens, got %d", count)
	}

	// Unexpired tokens still consume normally.
	if _, err := s.ConsumePasswordResetToken(ctx, "r-1"); err != nil {
		t.Errorf("surviving token should consume: %v", err)
	}
}

func TestEnsureChatSession_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "c@example.com")

	if err := s.EnsureChatSession(ctx, "sess-1", &user.ID); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	// Repeat with a different owner: first create wins, no second row.
	if err := s.EnsureChatSession(ctx, "sess-1", nil); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}

	sessions, err := s.ListUserChatSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListUserChatSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].UserID == nil || *sessions[0].UserID != user.ID {
		t.Error("owner should be the first caller's")
	}
}

func TestAppendChatMessage_CreatesSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &ChatMessage{SessionID: "implicit", Role: "user", Content: "hi"}
	if err := s.AppendChatMessage(ctx, msg); err != nil {
		t.Fatalf("AppendChatMessage failed: %v", err)
	}
	if msg.ID == 0 {
		t.Error("message id not assigned")
	}

	messages, err := s.GetChatMessages(ctx, "implicit", 10)
	if err != nil {
		t.Fatalf("GetChatMessages failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hi" {
		t.Errorf("unexpected history: %+v", messages)
	}
}

func TestGetChatMessages_OrderAndWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Equal timestamps within a second: insertion order must still hold.
	for i := 0; i < 5; i++ {
		msg := &ChatMessage{SessionID: "s1", Role: "user", Content: fmt.Sprintf("m%d", i)}
		if err := s.AppendChatMessage(ctx, msg); err != nil {
			t.Fatalf("AppendChatMessage failed: %v", err)
		}
	}

	messages, err := s.GetChatMessages(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("GetChatMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	// The window keeps the newest messages, replayed oldest first.
	for i, want := range []string{"m2", "m3", "m4"} {
		if messages[i].Content != want {
			t.Errorf("message %d: got %q, want %q", i, messages[i].Content, want)
		}
	}
}

func TestGetChatMessages_UnknownSession(t *testing.T) {
	s := newTestStore(t)

	messages, err := s.GetChatMessages(context.Background(), "nope", 10)
	if err != nil {
		t.Fatalf("unknown session should not error: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected empty history, got %d messages", len(messages))
	}
}

func TestListUserChatSessions_Order(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "o@example.com")

	if err := s.EnsureChatSession(ctx, "first", &user.ID); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := s.EnsureChatSession(ctx, "second", &user.ID); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	// Appending to "first" bumps its updated_at past "second"'s.
	msg := &ChatMessage{
		SessionID: "first",
		Role:      "user",
		Content:   "bump",
		Timestamp: time.Now().UTC().Add(time.Minute).Truncate(time.Second),
	}
	if err := s.AppendChatMessage(ctx, msg); err != nil {
		t.Fatalf("AppendChatMessage failed: %v", err)
	}

	sessions, err := s.ListUserChatSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListUserChatSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != "first" {
		t.Errorf("most recently active session should sort first, got %q", sessions[0].SessionID)
	}
}

func TestTimestampsRoundTripUTC(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, s, "tz@example.com")

	got, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Errorf("timestamps must be UTC, got %v", got.CreatedAt.Location())
	}
	if !got.CreatedAt.Equal(got.CreatedAt.Truncate(time.Second)) {
		t.Errorf("timestamps must be second precision, got %v", got.CreatedAt)
	}
}
