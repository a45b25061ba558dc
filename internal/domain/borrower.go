package domain

import "time"

// BorrowerStatus represents a member's standing with the library.
type BorrowerStatus string

const (
	// BorrowerStatusActive indicates the member may open new loans.
	BorrowerStatusActive BorrowerStatus = "active"
	// BorrowerStatusInactive indicates a lapsed membership.
	BorrowerStatusInactive BorrowerStatus = "inactive"
	// BorrowerStatusSuspended indicates checkout privileges are revoked.
	BorrowerStatusSuspended BorrowerStatus = "suspended"
)

// Borrower represents a library member.
//
// ActiveLoans and TotalLoans are denormalized running counters maintained
// by the checkout/return path, not database aggregates. The count
// invariant is: ActiveLoans equals the number of loans for this borrower
// whose stored status is "active".
type Borrower struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone,omitempty"`
	MemberID    string         `json:"member_id"` // human-readable, unique
	JoinDate    time.Time      `json:"join_date"`
	Status      BorrowerStatus `json:"status"`
	ActiveLoans int            `json:"active_loans"`
	TotalLoans  int            `json:"total_loans"`
	FineCents   int64          `json:"fine_cents"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CanCheckout reports whether the borrower may open a new loan.
// Only active members can check out; inactive and suspended cannot.
func (b *Borrower) CanCheckout() bool {
	return b.Status == BorrowerStatusActive
}

// HasOutstandingFines reports whether the borrower owes money.
func (b *Borrower) HasOutstandingFines() bool {
	return b.FineCents > 0
}
