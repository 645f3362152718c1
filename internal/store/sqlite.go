// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Embedded single-file backend with automatic schema migration

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	_ "modernc.org/sqlite"

	"github.com/parleyhq/parley/internal/store/migrations"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db      *sql.DB
	logger  *slog.Logger
	timeout time.Duration
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is migrated to the current version if needed.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		logger:  logger,
		timeout: defaultTimeout,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// migrate applies the embedded schema migrations. Running against an
// already-initialized database is a no-op; nothing is ever dropped.
func (s *SQLiteStore) migrate() error {
	provider, err := goose.NewProvider(database.DialectSQLite3, s.db, migrations.SQLite())
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	results, err := provider.Up(context.Background())
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Info("applied migration", "source", r.Source.Path)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed: <table>.<column>"
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser creates a new user and assigns its id.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = nowUTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}

	query := `
		INSERT INTO users (email, password_hash, full_name, display_name, avatar_url, job_title, timezone, is_active, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		nullString(user.FullName),
		nullString(user.DisplayName),
		nullString(user.AvatarURL),
		nullString(user.JobTitle),
		user.Timezone,
		fmtTime(user.CreatedAt),
		fmtTime(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateEmail
		}
		return wrapErr("inserting user", err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return wrapErr("reading user id", err)
	}
	user.IsActive = true
	user.IsVerified = false

	s.logger.Debug("created user", "id", user.ID, "email", user.Email)
	return nil
}

const userColumns = `id, email, password_hash, full_name, display_name, avatar_url, job_title, timezone, is_active, is_verified, created_at, updated_at`

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var fullName, displayName, avatarURL, jobTitle sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&fullName,
		&displayName,
		&avatarURL,
		&jobTitle,
		&user.Timezone,
		&user.IsActive,
		&user.IsVerified,
		&createdAtStr,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("scanning user", err)
	}

	user.FullName = fullName.String
	user.DisplayName = displayName.String
	user.AvatarURL = avatarURL.String
	user.JobTitle = jobTitle.String

	if user.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &user, nil
}

// GetUserByID retrieves a user by id.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.scanUser(row)
}

// GetUserByEmail retrieves a user by email. Emails compare case-sensitively,
// exactly as stored.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return s.scanUser(row)
}

// UpdateUserProfile updates the provided profile fields and bumps updated_at.
// Fields left nil are unchanged. Returns ErrNotFound for unknown users.
func (s *SQLiteStore) UpdateUserProfile(ctx context.Context, id int64, upd ProfileUpdate) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	var sets []string
	var args []any
	for _, f := range []struct {
		col string
		val *string
	}{
		{"full_name", upd.FullName},
		{"display_name", upd.DisplayName},
		{"avatar_url", upd.AvatarURL},
		{"job_title", upd.JobTitle},
		{"timezone", upd.Timezone},
	} {
		if f.val != nil {
			sets = append(sets, f.col+" = ?")
			args = append(args, nullString(*f.val))
		}
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, fmtTime(nowUTC()), id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr("updating user profile", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("getting rows affected", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated user profile", "id", id)
	return nil
}

// UpdateUserPassword replaces a user's stored password hash.
func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, fmtTime(nowUTC()), id,
	)
	if err != nil {
		return wrapErr("updating user password", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("getting rows affected", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("updated user password", "id", id)
	return nil
}

// DeactivateUser flips is_active off. The row is kept; accounts are never
// hard-deleted.
func (s *SQLiteStore) DeactivateUser(ctx context.Context, id int64) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = 0, updated_at = ? WHERE id = ?`,
		fmtTime(nowUTC()), id,
	)
	if err != nil {
		return wrapErr("deactivating user", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("getting rows affected", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("deactivated user", "id", id)
	return nil
}

// CreateSession persists a new session row and assigns its id.
// Returns ErrDuplicateToken on a token-string collision.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = nowUTC()
	}
	if session.LastUsedAt.IsZero() {
		session.LastUsedAt = session.CreatedAt
	}

	query := `
		INSERT INTO user_sessions (user_id, session_token, refresh_token, expires_at, created_at, last_used_at, user_agent, ip_address, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
	`

	result, err := s.db.ExecContext(ctx, query,
		session.UserID,
		session.Token,
		nullString(session.RefreshToken),
		fmtTime(session.ExpiresAt),
		fmtTime(session.CreatedAt),
		fmtTime(session.LastUsedAt),
		nullString(session.UserAgent),
		nullString(session.IPAddress),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateToken
		}
		return wrapErr("inserting session", err)
	}

	session.ID, err = result.LastInsertId()
	if err != nil {
		return wrapErr("reading session id", err)
	}
	session.IsActive = true

	s.logger.Debug("created session", "id", session.ID, "user_id", session.UserID)
	return nil
}

// TouchSession validates a session token and bumps last_used_at in a single
// conditional update. Missing, revoked and expired tokens are all ErrNotFound.
func (s *SQLiteStore) TouchSession(ctx context.Context, token string) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	now := fmtTime(nowUTC())
	query := `
		UPDATE user_sessions
		SET last_used_at = ?
		WHERE session_token = ? AND is_active = 1 AND expires_at > ?
		RETURNING user_id
	`

	var userID int64
	err := s.db.QueryRowContext(ctx, query, now, token, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, wrapErr("touching session", err)
	}

	return userID, nil
}

// RevokeSession deactivates a session token. Reports whether an active row
// matched, so a second revoke of the same token reports false.
func (s *SQLiteStore) RevokeSession(ctx context.Context, token string) (bool, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = 0 WHERE session_token = ? AND is_active = 1`,
		token,
	)
	if err != nil {
		return false, wrapErr("revoking session", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, wrapErr("getting rows affected", err)
	}

	if rowsAffected > 0 {
		s.logger.Debug("revoked session")
	}
	return rowsAffected > 0, nil
}

// ListUserSessions returns all sessions for a user, most recently used first.
func (s *SQLiteStore) ListUserSessions(ctx context.Context, userID int64) ([]*Session, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, user_id, session_token, refresh_token, expires_at, created_at, last_used_at, user_agent, ip_address, is_active
		FROM user_sessions
		WHERE user_id = ?
		ORDER BY last_used_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapErr("querying sessions", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var refreshToken, userAgent, ipAddress sql.NullString
		var expiresAtStr, createdAtStr, lastUsedAtStr string

		if err := rows.Scan(
			&sess.ID,
			&sess.UserID,
			&sess.Token,
			&refreshToken,
			&expiresAtStr,
			&createdAtStr,
			&lastUsedAtStr,
			&userAgent,
			&ipAddress,
			&sess.IsActive,
		); err != nil {
			return nil, wrapErr("scanning session row", err)
		}

		sess.RefreshToken = refreshToken.String
		sess.UserAgent = userAgent.String
		sess.IPAddress = ipAddress.String

		if sess.ExpiresAt, err = parseTime(expiresAtStr); err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
		if sess.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if sess.LastUsedAt, err = parseTime(lastUsedAtStr); err != nil {
			return nil, fmt.Errorf("parsing last_used_at: %w", err)
		}

		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating session rows", err)
	}
	return sessions, nil
}

// DeleteExpiredSessions removes sessions whose expiry has passed.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= ?`,
		fmtTime(nowUTC()),
	)
	if err != nil {
		return 0, wrapErr("deleting expired sessions", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired sessions", "count", rowsAffected)
	}
	return rowsAffected, nil
}

// CreatePasswordResetToken persists a new password-reset token.
func (s *SQLiteStore) CreatePasswordResetToken(ctx context.Context, tok *SingleUseToken) error {
	return s.createSingleUseToken(ctx, "password_reset_tokens", tok)
}

// CreateEmailVerificationToken persists a new email-verification token.
func (s *SQLiteStore) CreateEmailVerificationToken(ctx context.Context, tok *SingleUseToken) error {
	return s.createSingleUseToken(ctx, "email_verification_tokens", tok)
}

func (s *SQLiteStore) createSingleUseToken(ctx context.Context, table string, tok *SingleUseToken) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = nowUTC()
	}

	query := `INSERT INTO ` + table + ` (user_id, token, expires_at, used, created_at) VALUES (?, ?, ?, 0, ?)`
	result, err := s.db.ExecContext(ctx, query,
		tok.UserID,
		tok.Token,
		fmtTime(tok.ExpiresAt),
		fmtTime(tok.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateToken
		}
		return wrapErr("inserting token", err)
	}

	tok.ID, err = result.LastInsertId()
	if err != nil {
		return wrapErr("reading token id", err)
	}

	s.logger.Debug("created single-use token", "table", table, "user_id", tok.UserID)
	return nil
}

// ConsumePasswordResetToken atomically marks an unused, unexpired token used
// and returns the owning user id. The conditional update is the concurrency
// guard: two concurrent redemptions cannot both match.
func (s *SQLiteStore) ConsumePasswordResetToken(ctx context.Context, token string) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	now := fmtTime(nowUTC())
	query := `
		UPDATE password_reset_tokens
		SET used = 1
		WHERE token = ? AND used = 0 AND expires_at > ?
		RETURNING user_id
	`

	var userID int64
	err := s.db.QueryRowContext(ctx, query, token, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, wrapErr("consuming reset token", err)
	}

	s.logger.Info("consumed password reset token", "user_id", userID)
	return userID, nil
}

// ConsumeEmailVerificationToken marks the token used and sets the user's
// is_verified flag in one transaction. A crash between the two writes leaves
// neither committed.
func (s *SQLiteStore) ConsumeEmailVerificationToken(ctx context.Context, token string) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("beginning transaction", err)
	}
	defer tx.Rollback()

	now := fmtTime(nowUTC())
	var userID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE email_verification_tokens
		SET used = 1
		WHERE token = ? AND used = 0 AND expires_at > ?
		RETURNING user_id
	`, token, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, txErr("consuming verification token", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET is_verified = 1, updated_at = ? WHERE id = ?`,
		now, userID,
	); err != nil {
		return 0, txErr("marking user verified", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, txErr("committing verification", err)
	}

	s.logger.Info("verified user email", "user_id", userID)
	return userID, nil
}

// DeleteExpiredTokens removes expired reset and verification tokens.
func (s *SQLiteStore) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	now := fmtTime(nowUTC())
	var total int64
	for _, table := range []string{"password_reset_tokens", "email_verification_tokens"} {
		result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= ?`, now)
		if err != nil {
			return total, wrapErr("deleting expired tokens", err)
		}
		rowsAffected, _ := result.RowsAffected()
		total += rowsAffected
	}
	if total > 0 {
		s.logger.Debug("deleted expired tokens", "count", total)
	}
	return total, nil
}

// EnsureChatSession creates the chat session row if absent. The unique
// constraint on session_id is the race guard: concurrent creates collapse to
// a single row and repeat calls are no-ops.
func (s *SQLiteStore) EnsureChatSession(ctx context.Context, sessionID string, userID *int64) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	now := fmtTime(nowUTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`, sessionID, userID, now, now)
	if err != nil {
		return wrapErr("ensuring chat session", err)
	}
	return nil
}

// AppendChatMessage inserts a message and bumps the session's updated_at in
// one transaction, creating the session first if it doesn't exist yet.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, msg *ChatMessage) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = nowUTC()
	}
	ts := fmtTime(msg.Timestamp)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("beginning transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, user_id, created_at, updated_at)
		VALUES (?, NULL, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`, msg.SessionID, ts, ts); err != nil {
		return txErr("ensuring chat session", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, timestamp)
		VALUES (?, ?, ?, ?)
	`, msg.SessionID, msg.Role, msg.Content, ts)
	if err != nil {
		return txErr("inserting chat message", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE session_id = ?`,
		ts, msg.SessionID,
	); err != nil {
		return txErr("bumping chat session", err)
	}

	if err := tx.Commit(); err != nil {
		return txErr("committing chat message", err)
	}

	msg.ID, err = result.LastInsertId()
	if err != nil {
		return wrapErr("reading message id", err)
	}

	s.logger.Debug("appended chat message", "session_id", msg.SessionID, "role", msg.Role)
	return nil
}

// GetChatMessages retrieves the most recent `limit` messages for a session in
// chronological order (oldest first). The subquery grabs the newest rows,
// then the outer query restores replay order. Ties on timestamp are broken by
// the surrogate id. If limit is 0 or negative, all messages are returned.
func (s *SQLiteStore) GetChatMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	var query string
	var args []any

	if limit > 0 {
		query = `
			SELECT id, session_id, role, content, timestamp
			FROM (
				SELECT id, session_id, role, content, timestamp
				FROM chat_messages
				WHERE session_id = ?
				ORDER BY timestamp DESC, id DESC
				LIMIT ?
			)
			ORDER BY timestamp ASC, id ASC
		`
		args = []any{sessionID, limit}
	} else {
		query = `
			SELECT id, session_id, role, content, timestamp
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY timestamp ASC, id ASC
		`
		args = []any{sessionID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("querying chat messages", err)
	}
	defer rows.Close()

	var messages []*ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var timestampStr string

		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &timestampStr); err != nil {
			return nil, wrapErr("scanning chat message row", err)
		}
		if msg.Timestamp, err = parseTime(timestampStr); err != nil {
			return nil, fmt.Errorf("parsing message timestamp: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating chat message rows", err)
	}
	return messages, nil
}

// ListUserChatSessions returns a user's chat sessions ordered by most recent
// activity.
func (s *SQLiteStore) ListUserChatSessions(ctx context.Context, userID int64) ([]*ChatSession, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, session_id, user_id, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapErr("querying chat sessions", err)
	}
	defer rows.Close()

	var sessions []*ChatSession
	for rows.Next() {
		var sess ChatSession
		var owner sql.NullInt64
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&sess.ID, &sess.SessionID, &owner, &createdAtStr, &updatedAtStr); err != nil {
			return nil, wrapErr("scanning chat session row", err)
		}
		if owner.Valid {
			sess.UserID = &owner.Int64
		}
		if sess.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if sess.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating chat session rows", err)
	}
	return sessions, nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
