package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/errors"
)

const sessionColumns = `id, user_id, refresh_token_hash, user_agent,
	ip_address, expires_at, created_at, last_used_at`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var (
		sess      domain.Session
		userAgent sql.NullString
		ipAddr    sql.NullString
		expiresAt string
		createdAt string
		lastUsed  string
	)
	err := scanner.Scan(
		&sess.ID, &sess.UserID, &sess.RefreshTokenHash, &userAgent,
		&ipAddr, &expiresAt, &createdAt, &lastUsed,
	)
	if err != nil {
		return nil, err
	}
	sess.UserAgent = userAgent.String
	sess.IPAddress = ipAddr.String

	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.LastUsedAt, err = parseTime(lastUsed); err != nil {
		return nil, err
	}
	return &sess, nil
}

// CreateSession inserts a new refresh session.
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token_hash, user_agent,
			ip_address, expires_at, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.RefreshTokenHash,
		nullString(sess.UserAgent), nullString(sess.IPAddress),
		formatTime(sess.ExpiresAt), formatTime(sess.CreatedAt),
		formatTime(sess.LastUsedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("session already exists").WithCause(err)
		}
		return errors.Wrap(err, errors.CodeInternal, "insert session")
	}
	return nil
}

// GetSessionByTokenHash looks up a session by the hash of its refresh token.
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, tokenHash)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("session not found")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get session")
	}
	return sess, nil
}

// TouchSession updates the last-used timestamp and rotates the token hash.
func (s *Store) TouchSession(ctx context.Context, id, newTokenHash string, expiresAt, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET refresh_token_hash = ?, expires_at = ?, last_used_at = ?
		WHERE id = ?`,
		newTokenHash, formatTime(expiresAt), formatTime(now), id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "touch session")
	}
	return requireRowAffected(res, "session", id)
}

// DeleteSession removes a session (logout).
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete session")
	}
	return requireRowAffected(res, "session", id)
}

// DeleteSessionsForUser removes all of a user's sessions.
func (s *Store) DeleteSessionsForUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete user sessions")
	}
	return nil
}

// DeleteExpiredSessions prunes sessions past their expiry. Returns the
// number removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "delete expired sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "expired sessions rows affected")
	}
	return n, nil
}
