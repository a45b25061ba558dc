package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/errors"
)

const userColumns = `id, email, password_hash, display_name, is_root,
	last_login_at, created_at, updated_at`

func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u           domain.User
		displayName sql.NullString
		isRoot      int
		lastLogin   sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := scanner.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &displayName, &isRoot,
		&lastLogin, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.DisplayName = displayName.String
	u.IsRoot = isRoot != 0

	if lastLogin.Valid && lastLogin.String != "" {
		if u.LastLoginAt, err = parseTime(lastLogin.String); err != nil {
			return nil, err
		}
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new staff account.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	isRoot := 0
	if u.IsRoot {
		isRoot = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, is_root,
			last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, nullString(u.DisplayName), isRoot,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("email already registered").WithCause(err)
		}
		return errors.Wrap(err, errors.CodeInternal, "insert user")
	}
	return nil
}

// GetUser retrieves a staff account by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("user %s not found", id)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get user")
	}
	return u, nil
}

// GetUserByEmail retrieves a staff account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("user with email %s not found", email)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get user by email")
	}
	return u, nil
}

// CountUsers returns the total number of staff accounts. A zero count
// means setup has not run yet.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "count users")
	}
	return n, nil
}

// UpdateLastLogin stamps a successful login.
func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(at), id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "update last login")
	}
	return requireRowAffected(res, "user", id)
}
