package store

import (
	"context"

	"github.com/libradesk/libradesk-server/internal/errors"
)

// Counts holds the raw ledger counts for the dashboard. Overdue is not
// here on purpose: it is derived from due dates by the service layer,
// never counted with its own SQL date comparison.
type Counts struct {
	TotalBooks       int
	TotalUnits       int
	AvailableUnits   int
	LoanedUnits      int
	MaintenanceUnits int
	TotalBorrowers   int
	ActiveBorrowers  int
	ActiveLoans      int
	OutstandingFines int64
}

// GetCounts gathers the dashboard counters in one round of queries.
func (s *Store) GetCounts(ctx context.Context) (*Counts, error) {
	var c Counts

	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM book_units),
			(SELECT COUNT(*) FROM book_units WHERE status = 'available'),
			(SELECT COUNT(*) FROM book_units WHERE status = 'loaned'),
			(SELECT COUNT(*) FROM book_units WHERE status = 'maintenance'),
			(SELECT COUNT(*) FROM borrowers),
			(SELECT COUNT(*) FROM borrowers WHERE status = 'active'),
			(SELECT COUNT(*) FROM loans WHERE status = 'active'),
			(SELECT COALESCE(SUM(fine_cents), 0) FROM borrowers)`)
	if err := row.Scan(
		&c.TotalBooks, &c.TotalUnits, &c.AvailableUnits,
		&c.LoanedUnits, &c.MaintenanceUnits,
		&c.TotalBorrowers, &c.ActiveBorrowers, &c.ActiveLoans,
		&c.OutstandingFines,
	); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "get counts")
	}
	return &c, nil
}
