package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrSessionNotFound is returned when a session ID has no row, either
// because it never existed or because the janitor expired it.
var ErrSessionNotFound = errors.New("session not found")

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveSession inserts or replaces a session record.
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves a session by ID and refreshes its last access
	// time. Returns ErrSessionNotFound when no row exists.
	GetSession(ctx context.Context, id string) (*Session, error)

	// DeleteSession removes one session.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions removes sessions not accessed within maxAge and
	// reports how many were removed.
	DeleteExpiredSessions(ctx context.Context, maxAge time.Duration) (int64, error)

	// GetCacheEntry retrieves a cached analysis payload.
	// Returns sql.ErrNoRows when the entry does not exist.
	GetCacheEntry(ctx context.Context, kind, key string) ([]byte, error)

	// SetCacheEntry inserts or replaces a cached analysis payload.
	SetCacheEntry(ctx context.Context, kind, key string, payload []byte) error

	// PruneCache removes cache entries older than maxAge and reports how
	// many were removed.
	PruneCache(ctx context.Context, maxAge time.Duration) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveSession inserts or replaces a session record.
func (s *sqlxStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil {
		return fmt.Errorf("cannot save nil session")
	}
	if session.ID == "" {
		return fmt.Errorf("session must have a non-empty id")
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.LastAccessAt.IsZero() {
		session.LastAccessAt = now
	}

	query := `
        INSERT INTO sessions (id, created_at, updated_at, timezone, message_count, messages, kpis, last_access_at)
        VALUES (:id, :created_at, :updated_at, :timezone, :message_count, :messages, :kpis, :last_access_at)
        ON CONFLICT (id) DO UPDATE SET
            updated_at = excluded.updated_at,
            timezone = excluded.timezone,
            message_count = excluded.message_count,
            messages = excluded.messages,
            kpis = excluded.kpis,
            last_access_at = excluded.last_access_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, session); err != nil {
		s.logger.ErrorContext(ctx, "Error saving session", "session_id", session.ID, "error", err)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}

	s.logger.DebugContext(ctx, "Session saved successfully",
		"session_id", session.ID, "message_count", session.MessageCount)
	return nil
}

// GetSession retrieves a session by ID and bumps its last access time so the
// janitor's expiry clock restarts.
func (s *sqlxStore) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var session Session
	query := `SELECT id, created_at, updated_at, timezone, message_count, messages, kpis, last_access_at
	          FROM sessions WHERE id = ?`

	err := s.db.GetContext(ctx, &session, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No session found", "session_id", id)
		return nil, ErrSessionNotFound

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching session",
			"session_id", id, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting session", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_access_at = ? WHERE id = ?`, now, id); err != nil {
		// Not fatal for the read; the session just expires sooner.
		s.logger.WarnContext(ctx, "Failed to refresh session access time", "session_id", id, "error", err)
	} else {
		session.LastAccessAt = now
	}

	return &session, nil
}

// DeleteSession removes one session.
func (s *sqlxStore) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting session", "session_id", id, "error", err)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	s.logger.DebugContext(ctx, "Session deleted", "session_id", id)
	return nil
}

// DeleteExpiredSessions removes sessions whose last access is older than maxAge.
func (s *sqlxStore) DeleteExpiredSessions(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_access_at < ?`, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting expired sessions", "error", err)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count for session expiry", "error", err)
		return 0, nil
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "Deleted expired sessions", "count", count, "max_age", maxAge)
	}
	return count, nil
}

// GetCacheEntry retrieves a cached analysis payload.
func (s *sqlxStore) GetCacheEntry(ctx context.Context, kind, key string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var payload []byte
	query := `SELECT payload FROM analysis_cache WHERE kind = ? AND key = ?`
	err := s.db.GetContext(ctx, &payload, query, kind, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting cache entry", "kind", kind, "key", key, "error", err)
		return nil, fmt.Errorf("failed to get cache entry %s/%s: %w", kind, key, err)
	}
	return payload, nil
}

// SetCacheEntry inserts or replaces a cached analysis payload.
func (s *sqlxStore) SetCacheEntry(ctx context.Context, kind, key string, payload []byte) error {
	entry := CacheEntry{Kind: kind, Key: key, Payload: payload, CreatedAt: time.Now().UTC()}

	query := `
        INSERT INTO analysis_cache (kind, key, payload, created_at)
        VALUES (:kind, :key, :payload, :created_at)
        ON CONFLICT (kind, key) DO UPDATE SET
            payload = excluded.payload,
            created_at = excluded.created_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		s.logger.ErrorContext(ctx, "Error saving cache entry", "kind", kind, "key", key, "error", err)
		return fmt.Errorf("failed to save cache entry %s/%s: %w", kind, key, err)
	}
	return nil
}

// PruneCache removes cache entries older than maxAge.
func (s *sqlxStore) PruneCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	result, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning analysis cache", "error", err)
		return 0, fmt.Errorf("failed to prune analysis cache: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count for cache prune", "error", err)
		return 0, nil
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "Pruned analysis cache", "count", count, "max_age", maxAge)
	}
	return count, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
