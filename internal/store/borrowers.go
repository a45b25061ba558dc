package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/errors"
)

const borrowerColumns = `id, name, email, phone, member_id, join_date, status,
	active_loans, total_loans, fine_cents, created_at, updated_at`

func scanBorrower(scanner interface{ Scan(dest ...any) error }) (*domain.Borrower, error) {
	var (
		b         domain.Borrower
		phone     sql.NullString
		joinDate  string
		status    string
		createdAt string
		updatedAt string
	)
	err := scanner.Scan(
		&b.ID, &b.Name, &b.Email, &phone, &b.MemberID, &joinDate, &status,
		&b.ActiveLoans, &b.TotalLoans, &b.FineCents, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Phone = phone.String
	b.Status = domain.BorrowerStatus(status)

	if b.JoinDate, err = parseDate(joinDate); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBorrower registers a new member. MemberID must be unique.
func (s *Store) CreateBorrower(ctx context.Context, b *domain.Borrower) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO borrowers (id, name, email, phone, member_id, join_date,
			status, active_loans, total_loans, fine_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Email, nullString(b.Phone), b.MemberID,
		formatDate(b.JoinDate), string(b.Status),
		b.ActiveLoans, b.TotalLoans, b.FineCents,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("member ID already in use").WithCause(err)
		}
		return errors.Wrap(err, errors.CodeInternal, "insert borrower")
	}
	return nil
}

// GetBorrower retrieves a member by ID.
func (s *Store) GetBorrower(ctx context.Context, id string) (*domain.Borrower, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+borrowerColumns+` FROM borrowers WHERE id = ?`, id)

	b, err := scanBorrower(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("borrower %s not found", id)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get borrower")
	}
	return b, nil
}

// GetBorrowerByMemberID retrieves a member by their human-readable member ID.
func (s *Store) GetBorrowerByMemberID(ctx context.Context, memberID string) (*domain.Borrower, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+borrowerColumns+` FROM borrowers WHERE member_id = ?`, memberID)

	b, err := scanBorrower(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("borrower with member ID %s not found", memberID)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get borrower by member ID")
	}
	return b, nil
}

// ListBorrowersFilter narrows ListBorrowers results.
type ListBorrowersFilter struct {
	Search string // matches name, email, or member ID
	Status domain.BorrowerStatus
}

// ListBorrowers returns members ordered by name.
func (s *Store) ListBorrowers(ctx context.Context, filter ListBorrowersFilter, params PaginationParams) (*PaginatedResult[domain.Borrower], error) {
	params.Validate()

	where := "WHERE 1=1"
	args := []any{}
	if filter.Search != "" {
		where += ` AND (name LIKE ? COLLATE NOCASE
			OR email LIKE ? COLLATE NOCASE
			OR member_id LIKE ? COLLATE NOCASE)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM borrowers "+where, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "count borrowers")
	}

	query := `SELECT ` + borrowerColumns + ` FROM borrowers ` + where + `
		ORDER BY name COLLATE NOCASE
		LIMIT ? OFFSET ?`
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list borrowers")
	}
	defer rows.Close()

	items := []domain.Borrower{}
	for rows.Next() {
		b, err := scanBorrower(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan borrower")
		}
		items = append(items, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate borrowers")
	}

	return &PaginatedResult[domain.Borrower]{
		Items:   items,
		Total:   total,
		HasMore: params.Offset+len(items) < total,
	}, nil
}

// UpdateBorrower updates a member's descriptive fields and status.
// Loan counters are managed exclusively by the increment/decrement
// operations below.
func (s *Store) UpdateBorrower(ctx context.Context, b *domain.Borrower) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE borrowers
		SET name = ?, email = ?, phone = ?, member_id = ?, join_date = ?,
			status = ?, fine_cents = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.Email, nullString(b.Phone), b.MemberID,
		formatDate(b.JoinDate), string(b.Status), b.FineCents,
		formatTime(b.UpdatedAt), b.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("member ID already in use").WithCause(err)
		}
		return errors.Wrap(err, errors.CodeInternal, "update borrower")
	}
	return requireRowAffected(res, "borrower", b.ID)
}

// DeleteBorrower removes a member. The service layer guarantees no
// active loans remain.
func (s *Store) DeleteBorrower(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM borrowers WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete borrower")
	}
	return requireRowAffected(res, "borrower", id)
}

// IncrementLoanCounts bumps both running counters by one at checkout.
func (s *Store) IncrementLoanCounts(ctx context.Context, borrowerID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE borrowers
		SET active_loans = active_loans + 1,
			total_loans = total_loans + 1,
			updated_at = ?
		WHERE id = ?`, formatTime(now), borrowerID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "increment loan counts")
	}
	return requireRowAffected(res, "borrower", borrowerID)
}

// DecrementActiveLoans drops the active counter by one at return time.
// Clamped at zero so the counter never goes negative, even if the
// ledgers have drifted.
func (s *Store) DecrementActiveLoans(ctx context.Context, borrowerID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE borrowers
		SET active_loans = MAX(0, active_loans - 1),
			updated_at = ?
		WHERE id = ?`, formatTime(now), borrowerID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "decrement active loans")
	}
	return requireRowAffected(res, "borrower", borrowerID)
}
