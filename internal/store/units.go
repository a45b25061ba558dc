package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/errors"
)

const unitColumns = `id, book_id, status, created_at, updated_at`

func scanUnit(scanner interface{ Scan(dest ...any) error }) (*domain.Unit, error) {
	var (
		u         domain.Unit
		status    string
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&u.ID, &u.BookID, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.Status = domain.UnitStatus(status)

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUnit inserts a new physical copy for a book.
func (s *Store) CreateUnit(ctx context.Context, unit *domain.Unit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO book_units (id, book_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		unit.ID,
		unit.BookID,
		string(unit.Status),
		formatTime(unit.CreatedAt),
		formatTime(unit.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("unit already exists").WithCause(err)
		}
		return errors.Wrap(err, errors.CodeInternal, "insert unit")
	}
	return nil
}

// GetUnit retrieves a unit by ID.
func (s *Store) GetUnit(ctx context.Context, id string) (*domain.Unit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM book_units WHERE id = ?`, id)

	unit, err := scanUnit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("unit %s not found", id)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get unit")
	}
	return unit, nil
}

// ListUnitsForBook returns all units of a book ordered by ID.
func (s *Store) ListUnitsForBook(ctx context.Context, bookID string) ([]domain.Unit, error) {
	return s.queryUnits(ctx,
		`SELECT `+unitColumns+` FROM book_units WHERE book_id = ? ORDER BY id`, bookID)
}

// AvailableUnitsForBook returns the units of a book currently on the
// shelf, ordered by ID so callers see a stable, deterministic order.
func (s *Store) AvailableUnitsForBook(ctx context.Context, bookID string) ([]domain.Unit, error) {
	return s.queryUnits(ctx, `
		SELECT `+unitColumns+` FROM book_units
		WHERE book_id = ? AND status = 'available'
		ORDER BY id`, bookID)
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]domain.Unit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "query units")
	}
	defer rows.Close()

	units := []domain.Unit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan unit")
		}
		units = append(units, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate units")
	}
	return units, nil
}

// ClaimUnit atomically transitions a unit from available to loaned.
// The conditional WHERE makes the claim race-safe: of two concurrent
// checkouts against the last copy, exactly one sees a row update and
// the other gets ErrPreconditionFailed.
func (s *Store) ClaimUnit(ctx context.Context, unitID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE book_units SET status = 'loaned', updated_at = ?
		WHERE id = ? AND status = 'available'`, formatTime(now), unitID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "claim unit")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "claim unit rows affected")
	}
	if n == 0 {
		return errors.PreconditionFailedf("unit %s is no longer available", unitID)
	}
	return nil
}

// ReleaseUnit transitions a unit back to available. Used both by the
// return path and as the compensating action when a checkout fails
// after the unit was claimed.
func (s *Store) ReleaseUnit(ctx context.Context, unitID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE book_units SET status = 'available', updated_at = ?
		WHERE id = ? AND status = 'loaned'`, formatTime(now), unitID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "release unit")
	}
	return requireRowAffected(res, "loaned unit", unitID)
}

// SetUnitStatus sets an arbitrary unit status. Used by maintenance
// transitions; the loan path goes through ClaimUnit/ReleaseUnit.
func (s *Store) SetUnitStatus(ctx context.Context, unitID string, status domain.UnitStatus, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE book_units SET status = ?, updated_at = ?
		WHERE id = ?`, string(status), formatTime(now), unitID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "set unit status")
	}
	return requireRowAffected(res, "unit", unitID)
}

// DeleteUnit removes a unit, but only while it is on the shelf. A
// loaned or maintenance unit is never deletable.
func (s *Store) DeleteUnit(ctx context.Context, unitID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM book_units WHERE id = ? AND status = 'available'`, unitID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete unit")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete unit rows affected")
	}
	if n == 0 {
		// Distinguish missing from undeletable for a useful message.
		if _, getErr := s.GetUnit(ctx, unitID); getErr != nil {
			return getErr
		}
		return errors.PreconditionFailedf("unit %s is not available and cannot be deleted", unitID)
	}
	return nil
}

// CountUnitsByStatus returns how many units of a book are in the given status.
func (s *Store) CountUnitsByStatus(ctx context.Context, bookID string, status domain.UnitStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM book_units WHERE book_id = ? AND status = ?`,
		bookID, string(status)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "count units")
	}
	return n, nil
}
