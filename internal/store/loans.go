package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/errors"
)

const loanColumns = `id, unit_id, book_id, borrower_id, status,
	checkout_date, due_date, return_date, created_at, updated_at`

func scanLoan(scanner interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var (
		l         domain.Loan
		status    string
		checkout  string
		due       string
		returned  sql.NullString
		createdAt string
		updatedAt string
	)
	err := scanner.Scan(
		&l.ID, &l.UnitID, &l.BookID, &l.BorrowerID, &status,
		&checkout, &due, &returned, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = domain.LoanStatus(status)

	if l.CheckoutDate, err = parseDate(checkout); err != nil {
		return nil, err
	}
	if l.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if l.ReturnDate, err = parseNullableDate(returned); err != nil {
		return nil, err
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLoan inserts a new loan record.
func (s *Store) CreateLoan(ctx context.Context, l *domain.Loan) error {
	var returnDate sql.NullString
	if l.ReturnDate != nil {
		returnDate = nullString(formatDate(*l.ReturnDate))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (id, unit_id, book_id, borrower_id, status,
			checkout_date, due_date, return_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UnitID, l.BookID, l.BorrowerID, string(l.Status),
		formatDate(l.CheckoutDate), formatDate(l.DueDate), returnDate,
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("loan already exists").WithCause(err)
		}
		return errors.Wrap(err, errors.CodeInternal, "insert loan")
	}
	return nil
}

// GetLoan retrieves a loan by ID.
func (s *Store) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)

	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("loan %s not found", id)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get loan")
	}
	return l, nil
}

// DeleteLoan removes a loan record. This is only ever used as the
// compensating action for a checkout that failed partway; completed
// loans are never deleted.
func (s *Store) DeleteLoan(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete loan")
	}
	return requireRowAffected(res, "loan", id)
}

// MarkLoanReturned closes a loan: sets the return date and flips the
// stored status to returned. The conditional WHERE enforces terminality;
// a loan already returned yields ErrPreconditionFailed and is left
// untouched.
func (s *Store) MarkLoanReturned(ctx context.Context, id string, returnDate, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE loans
		SET status = 'returned', return_date = ?, updated_at = ?
		WHERE id = ? AND status = 'active'`,
		formatDate(returnDate), formatTime(now), id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mark loan returned")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "mark loan returned rows affected")
	}
	if n == 0 {
		// Distinguish missing from already returned.
		if _, getErr := s.GetLoan(ctx, id); getErr != nil {
			return getErr
		}
		return errors.PreconditionFailedf("loan %s is already returned", id)
	}
	return nil
}

// RevertLoanReturn is the compensating action for MarkLoanReturned:
// status back to active, return date cleared.
func (s *Store) RevertLoanReturn(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE loans
		SET status = 'active', return_date = NULL, updated_at = ?
		WHERE id = ? AND status = 'returned'`, formatTime(now), id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "revert loan return")
	}
	return requireRowAffected(res, "returned loan", id)
}

// ListLoansFilter narrows ListLoans results. Status accepts the derived
// "overdue" value as well as the stored statuses; derived filtering
// happens in the service layer against Today, so the store only filters
// stored statuses.
type ListLoansFilter struct {
	StoredStatus domain.LoanStatus // "" means all; must be a stored status
	BorrowerID   string
	BookID       string
	Search       string // matches book title, book author, borrower name, or member ID
}

// ListLoans returns loan view rows joined with book and borrower
// details, most recent checkout first. The Presented field is left for
// the service layer to fill in from today's date.
func (s *Store) ListLoans(ctx context.Context, filter ListLoansFilter, params PaginationParams) (*PaginatedResult[domain.LoanView], error) {
	params.Validate()

	where := "WHERE 1=1"
	args := []any{}
	if filter.StoredStatus != "" {
		where += " AND l.status = ?"
		args = append(args, string(filter.StoredStatus))
	}
	if filter.BorrowerID != "" {
		where += " AND l.borrower_id = ?"
		args = append(args, filter.BorrowerID)
	}
	if filter.BookID != "" {
		where += " AND l.book_id = ?"
		args = append(args, filter.BookID)
	}
	if filter.Search != "" {
		where += ` AND (b.title LIKE ? COLLATE NOCASE
			OR b.author LIKE ? COLLATE NOCASE
			OR br.name LIKE ? COLLATE NOCASE
			OR br.member_id LIKE ? COLLATE NOCASE)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	from := `FROM loans l
		JOIN books b ON b.id = l.book_id
		JOIN borrowers br ON br.id = l.borrower_id `

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) "+from+where, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "count loans")
	}

	query := `
		SELECT l.id, l.unit_id, l.book_id, l.borrower_id, l.status,
			l.checkout_date, l.due_date, l.return_date, l.created_at, l.updated_at,
			b.title, b.author, br.name, br.member_id ` +
		from + where + `
		ORDER BY l.checkout_date DESC, l.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list loans")
	}
	defer rows.Close()

	items := []domain.LoanView{}
	for rows.Next() {
		var (
			v         domain.LoanView
			status    string
			checkout  string
			due       string
			returned  sql.NullString
			createdAt string
			updatedAt string
		)
		err := rows.Scan(
			&v.ID, &v.UnitID, &v.BookID, &v.BorrowerID, &status,
			&checkout, &due, &returned, &createdAt, &updatedAt,
			&v.BookTitle, &v.BookAuthor, &v.BorrowerName, &v.MemberID,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan loan view")
		}
		v.Status = domain.LoanStatus(status)
		if v.CheckoutDate, err = parseDate(checkout); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse checkout date")
		}
		if v.DueDate, err = parseDate(due); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse due date")
		}
		if v.ReturnDate, err = parseNullableDate(returned); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse return date")
		}
		if v.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse loan created_at")
		}
		if v.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse loan updated_at")
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate loans")
	}

	return &PaginatedResult[domain.LoanView]{
		Items:   items,
		Total:   total,
		HasMore: params.Offset+len(items) < total,
	}, nil
}

// CountLoansByStoredStatus returns the number of loans in a stored status.
func (s *Store) CountLoansByStoredStatus(ctx context.Context, status domain.LoanStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE status = ?`, string(status)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "count loans")
	}
	return n, nil
}

// CountActiveLoansForBorrower returns how many loans a borrower has open.
func (s *Store) CountActiveLoansForBorrower(ctx context.Context, borrowerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans WHERE borrower_id = ? AND status = 'active'`,
		borrowerID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "count active loans")
	}
	return n, nil
}

// ActiveLoanDueDates returns the due dates of all open loans. The stats
// path feeds these through the presented-status derivation to count
// overdue loans without persisting the derived value.
func (s *Store) ActiveLoanDueDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT due_date FROM loans WHERE status = 'active'`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "query due dates")
	}
	defer rows.Close()

	dates := []time.Time{}
	for rows.Next() {
		var due string
		if err := rows.Scan(&due); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan due date")
		}
		d, err := parseDate(due)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse due date")
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate due dates")
	}
	return dates, nil
}
