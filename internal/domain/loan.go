package domain

import "time"

// LoanStatus represents a loan's status. Only "active" and "returned"
// are ever stored; "overdue" exists purely as a presented status derived
// at read time from the due date.
type LoanStatus string

const (
	// LoanStatusActive indicates the unit is out with the borrower.
	LoanStatusActive LoanStatus = "active"
	// LoanStatusReturned is the terminal state. A returned loan is
	// immutable; there is no un-return operation.
	LoanStatusReturned LoanStatus = "returned"
	// LoanStatusOverdue is derived, never persisted: an active loan whose
	// due date has passed presents as overdue but stays "active" in
	// storage until explicitly returned.
	LoanStatusOverdue LoanStatus = "overdue"
)

// DefaultLoanPeriodDays is the loan length applied when a checkout does
// not specify a due date.
const DefaultLoanPeriodDays = 14

// Loan represents one checkout transaction linking a Unit and a
// Borrower for an interval. Dates are date-only; time of day never
// participates in loan semantics.
type Loan struct {
	ID         string     `json:"id"`
	UnitID     string     `json:"unit_id"`
	BookID     string     `json:"book_id"`
	BorrowerID string     `json:"borrower_id"`
	Status     LoanStatus `json:"status"` // stored status: active or returned

	CheckoutDate time.Time  `json:"checkout_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date,omitempty"` // set iff status is returned

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PresentedStatus derives the status shown to users from the stored
// status, the due date, and today's date. This is the single place that
// decides "overdue"; every list, detail, and stat query goes through it
// rather than comparing dates ad hoc.
func (l *Loan) PresentedStatus(today time.Time) LoanStatus {
	if l.Status == LoanStatusReturned {
		return LoanStatusReturned
	}
	if OverdueOn(l.DueDate, today) {
		return LoanStatusOverdue
	}
	return LoanStatusActive
}

// OverdueOn reports whether a loan due on due presents as overdue when
// viewed on today. Due today is not overdue; overdue starts the day
// after. Callers that only have due dates (the stats counters) share
// this with PresentedStatus so the derivation cannot drift.
func OverdueOn(due, today time.Time) bool {
	return DateOf(due).Before(DateOf(today))
}

// IsReturned reports whether the loan has reached its terminal state.
func (l *Loan) IsReturned() bool {
	return l.Status == LoanStatusReturned
}

// DateOf truncates a timestamp to its calendar day, preserving location.
// All loan date comparisons operate on these truncated values.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// LoanView is the read-model row for loan listings: the loan itself
// plus the denormalized book and borrower fields the dashboard shows,
// and the presented status computed per PresentedStatus.
type LoanView struct {
	Loan
	BookTitle    string     `json:"book_title"`
	BookAuthor   string     `json:"book_author"`
	BorrowerName string     `json:"borrower_name"`
	MemberID     string     `json:"member_id"`
	Presented    LoanStatus `json:"presented_status"`
}
