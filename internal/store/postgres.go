// ABOUTME: PostgreSQL implementation of the Store interface using pgx
// ABOUTME: Client-server backend with the same observable behavior as SQLite

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/parleyhq/parley/internal/store/migrations"
)

// PostgresStore implements the Store interface against a PostgreSQL server.
type PostgresStore struct {
	db      *sql.DB
	logger  *slog.Logger
	timeout time.Duration
}

// NewPostgresStore connects to the given DSN and migrates the schema to the
// current version.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store")

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", ErrUnavailable)
	}

	s := &PostgresStore{
		db:      db,
		logger:  logger,
		timeout: defaultTimeout,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Postgres store initialized")
	return s, nil
}

// migrate applies the embedded schema migrations. Idempotent and never
// destructive.
func (s *PostgresStore) migrate() error {
	provider, err := goose.NewProvider(database.DialectPostgres, s.db, migrations.Postgres())
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

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.logger.Info("closing Postgres store")
	return s.db.Close()
}

// isPgUniqueViolation reports whether err is a Postgres unique_violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateUser creates a new user and assigns its id.
func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, FALSE, $8, $9)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		nullString(user.FullName),
		nullString(user.DisplayName),
		nullString(user.AvatarURL),
		nullString(user.JobTitle),
		user.Timezone,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isPgUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return wrapErr("inserting user", err)
	}
	user.IsActive = true
	user.IsVerified = false

	s.logger.Debug("created user", "id", user.ID, "email", user.Email)
	return nil
}

func (s *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var fullName, displayName, avatarURL, jobTitle sql.NullString
	var createdAt, updatedAt time.Time

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
		&createdAt,
		&updatedAt,
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
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()

	return &user, nil
}

// GetUserByID retrieves a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return s.scanUser(row)
}

// GetUserByEmail retrieves a user by email, case-sensitively.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return s.scanUser(row)
}

// UpdateUserProfile updates the provided profile fields and bumps updated_at.
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id int64, upd ProfileUpdate) error {
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
			args = append(args, nullString(*f.val))
			sets = append(sets, fmt.Sprintf("%s = $%d", f.col, len(args)))
		}
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, nowUTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
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
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, nowUTC(), id,
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

// DeactivateUser flips is_active off without deleting the row.
func (s *PostgresStore) DeactivateUser(ctx context.Context, id int64) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = $1 WHERE id = $2`,
		nowUTC(), id,
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
func (s *PostgresStore) CreateSession(ctx context.Context, session *Session) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		session.UserID,
		session.Token,
		nullString(session.RefreshToken),
		session.ExpiresAt,
		session.CreatedAt,
		session.LastUsedAt,
		nullString(session.UserAgent),
		nullString(session.IPAddress),
	).Scan(&session.ID)
	if err != nil {
		if isPgUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return wrapErr("inserting session", err)
	}
	session.IsActive = true

	s.logger.Debug("created session", "id", session.ID, "user_id", session.UserID)
	return nil
}

// TouchSession validates a session token and bumps last_used_at atomically.
func (s *PostgresStore) TouchSession(ctx context.Context, token string) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	now := nowUTC()
	query := `
		UPDATE user_sessions
		SET last_used_at = $1
		WHERE session_token = $2 AND is_active AND expires_at > $3
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

// RevokeSession deactivates a session token.
func (s *PostgresStore) RevokeSession(ctx context.Context, token string) (bool, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE session_token = $1 AND is_active`,
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
func (s *PostgresStore) ListUserSessions(ctx context.Context, userID int64) ([]*Session, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, user_id, session_token, refresh_token, expires_at, created_at, last_used_at, user_agent, ip_address, is_active
		FROM user_sessions
		WHERE user_id = $1
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
		var expiresAt, createdAt, lastUsedAt time.Time

		if err := rows.Scan(
			&sess.ID,
			&sess.UserID,
			&sess.Token,
			&refreshToken,
			&expiresAt,
			&createdAt,
			&lastUsedAt,
			&userAgent,
			&ipAddress,
			&sess.IsActive,
		); err != nil {
			return nil, wrapErr("scanning session row", err)
		}

		sess.RefreshToken = refreshToken.String
		sess.UserAgent = userAgent.String
		sess.IPAddress = ipAddress.String
		sess.ExpiresAt = expiresAt.UTC()
		sess.CreatedAt = createdAt.UTC()
		sess.LastUsedAt = lastUsedAt.UTC()

		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating session rows", err)
	}
	return sessions, nil
}

// DeleteExpiredSessions removes sessions whose expiry has passed.
func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= $1`,
		nowUTC(),
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
func (s *PostgresStore) CreatePasswordResetToken(ctx context.Context, tok *SingleUseToken) error {
	return s.createSingleUseToken(ctx, "password_reset_tokens", tok)
}

// CreateEmailVerificationToken persists a new email-verification token.
func (s *PostgresStore) CreateEmailVerificationToken(ctx context.Context, tok *SingleUseToken) error {
	return s.createSingleUseToken(ctx, "email_verification_tokens", tok)
}

func (s *PostgresStore) createSingleUseToken(ctx context.Context, table string, tok *SingleUseToken) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = nowUTC()
	}

	query := `INSERT INTO ` + table + ` (user_id, token, expires_at, used, created_at) VALUES ($1, $2, $3, FALSE, $4) RETURNING id`
	err := s.db.QueryRowContext(ctx, query,
		tok.UserID,
		tok.Token,
		tok.ExpiresAt,
		tok.CreatedAt,
	).Scan(&tok.ID)
	if err != nil {
		if isPgUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return wrapErr("inserting token", err)
	}

	s.logger.Debug("created single-use token", "table", table, "user_id", tok.UserID)
	return nil
}

// ConsumePasswordResetToken atomically marks an unused, unexpired token used
// and returns the owning user id.
func (s *PostgresStore) ConsumePasswordResetToken(ctx context.Context, token string) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	query := `
		UPDATE password_reset_tokens
		SET used = TRUE
		WHERE token = $1 AND NOT used AND expires_at > $2
		RETURNING user_id
	`

	var userID int64
	err := s.db.QueryRowContext(ctx, query, token, nowUTC()).Scan(&userID)
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
// is_verified flag in one transaction.
func (s *PostgresStore) ConsumeEmailVerificationToken(ctx context.Context, token string) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("beginning transaction", err)
	}
	defer tx.Rollback()

	now := nowUTC()
	var userID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE email_verification_tokens
		SET used = TRUE
		WHERE token = $1 AND NOT used AND expires_at > $2
		RETURNING user_id
	`, token, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, txErr("consuming verification token", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE, updated_at = $1 WHERE id = $2`,
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
func (s *PostgresStore) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	now := nowUTC()
	var total int64
	for _, table := range []string{"password_reset_tokens", "email_verification_tokens"} {
		result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= $1`, now)
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

// EnsureChatSession creates the chat session row if absent, guarded by the
// unique constraint on session_id.
func (s *PostgresStore) EnsureChatSession(ctx context.Context, sessionID string, userID *int64) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	now := nowUTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, userID, now, now)
	if err != nil {
		return wrapErr("ensuring chat session", err)
	}
	return nil
}

// AppendChatMessage inserts a message and bumps the session's updated_at in
// one transaction, creating the session first if needed.
func (s *PostgresStore) AppendChatMessage(ctx context.Context, msg *ChatMessage) error {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = nowUTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("beginning transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, user_id, created_at, updated_at)
		VALUES ($1, NULL, $2, $2)
		ON CONFLICT (session_id) DO NOTHING
	`, msg.SessionID, msg.Timestamp); err != nil {
		return txErr("ensuring chat session", err)
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, msg.SessionID, msg.Role, msg.Content, msg.Timestamp).Scan(&msg.ID); err != nil {
		return txErr("inserting chat message", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = $1 WHERE session_id = $2`,
		msg.Timestamp, msg.SessionID,
	); err != nil {
		return txErr("bumping chat session", err)
	}

	if err := tx.Commit(); err != nil {
		return txErr("committing chat message", err)
	}

	s.logger.Debug("appended chat message", "session_id", msg.SessionID, "role", msg.Role)
	return nil
}

// GetChatMessages retrieves the most recent `limit` messages in chronological
// order, mirroring the SQLite query shape. If limit is 0 or negative, all
// messages are returned.
func (s *PostgresStore) GetChatMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
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
				WHERE session_id = $1
				ORDER BY timestamp DESC, id DESC
				LIMIT $2
			) recent
			ORDER BY timestamp ASC, id ASC
		`
		args = []any{sessionID, limit}
	} else {
		query = `
			SELECT id, session_id, role, content, timestamp
			FROM chat_messages
			WHERE session_id = $1
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
		var ts time.Time

		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &ts); err != nil {
			return nil, wrapErr("scanning chat message row", err)
		}
		msg.Timestamp = ts.UTC()
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating chat message rows", err)
	}
	return messages, nil
}

// ListUserChatSessions returns a user's chat sessions ordered by most recent
// activity.
func (s *PostgresStore) ListUserChatSessions(ctx context.Context, userID int64) ([]*ChatSession, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, session_id, user_id, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = $1
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
		var createdAt, updatedAt time.Time

		if err := rows.Scan(&sess.ID, &sess.SessionID, &owner, &createdAt, &updatedAt); err != nil {
			return nil, wrapErr("scanning chat session row", err)
		}
		if owner.Valid {
			sess.UserID = &owner.Int64
		}
		sess.CreatedAt = createdAt.UTC()
		sess.UpdatedAt = updatedAt.UTC()
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating chat session rows", err)
	}
	return sessions, nil
}

// Ensure PostgresStore implements Store interface
var _ Store = (*PostgresStore)(nil)
