package domain

// Stats holds the dashboard summary counters. Overdue is computed with
// the same date derivation as loan listings, never stored.
type Stats struct {
	TotalBooks       int   `json:"total_books"`
	TotalUnits       int   `json:"total_units"`
	AvailableUnits   int   `json:"available_units"`
	LoanedUnits      int   `json:"loaned_units"`
	MaintenanceUnits int   `json:"maintenance_units"`
	TotalBorrowers   int   `json:"total_borrowers"`
	ActiveBorrowers  int   `json:"active_borrowers"`
	ActiveLoans      int   `json:"active_loans"`
	OverdueLoans     int   `json:"overdue_loans"`
	OutstandingFines int64 `json:"outstanding_fine_cents"`
}
