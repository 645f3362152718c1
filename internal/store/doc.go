// Package store provides persistent storage for parley's identity, token and
// conversation state.
//
// # Architecture
//
// One capability interface, Store, implemented twice:
//
//   - SQLiteStore: embedded single-file backend (modernc.org/sqlite)
//   - PostgresStore: client-server backend (pgx)
//
// Both implementations enforce the same invariants and return identical
// shapes for every read; the rest of the system is oblivious to which backend
// is active. Open() selects one from configuration.
//
// # Data Models
//
//   - User: account record with profile fields; deactivated, never deleted
//   - Session: revocable, time-boxed device/browser session with paired
//     refresh token
//   - SingleUseToken: password-reset and email-verification tokens that
//     validate at most once
//   - ChatSession/ChatMessage: append-only conversation ledger keyed by a
//     caller-supplied session id
//
// # Invariants
//
// Uniqueness of emails and token strings is enforced by backend constraints,
// not application checks. Single-use token consumption is a conditional
// update so concurrent redemptions cannot both succeed; email verification
// additionally flips the user's is_verified flag in the same transaction.
// Chat messages replay in (timestamp, id) order.
//
// All timestamps are stored and returned as second-precision UTC instants so
// the two backends round-trip byte-identical values.
//
// # Error Handling
//
// The §-style taxonomy maps to sentinels:
//
//   - ErrNotFound: entity absent; for tokens also expired/revoked/consumed
//   - ErrDuplicateEmail, ErrDuplicateToken: uniqueness conflicts
//   - ErrUnavailable: backend unreachable or deadline expired; retryable
//   - ErrIntegrity: transactional unit rolled back mid-write
//
// All methods accept context.Context; a default deadline is applied when the
// caller supplies none.
//
// # Migrations
//
// Schema migrations are embedded per dialect under migrations/ and applied
// with goose on store initialization. Reapplication is a no-op and nothing is
// ever dropped.
package store
