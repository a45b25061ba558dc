package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// timeNow keeps test call sites short.
func timeNow() time.Time {
	return time.Now()
}

// makeTestBook creates a domain.Book with sensible defaults for testing.
func makeTestBook(id, title string) *domain.Book {
	now := time.Now()
	return &domain.Book{
		ID:            id,
		Title:         title,
		Author:        "Test Author",
		ISBN:          "9780000000000",
		Genre:         "fiction",
		PublishedYear: 1984,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// makeTestUnit creates a domain.Unit attached to a book.
func makeTestUnit(id, bookID string) *domain.Unit {
	now := time.Now()
	return &domain.Unit{
		ID:        id,
		BookID:    bookID,
		Status:    domain.UnitStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// makeTestBorrower creates a domain.Borrower with sensible defaults.
func makeTestBorrower(id, memberID string) *domain.Borrower {
	now := time.Now()
	return &domain.Borrower{
		ID:        id,
		Name:      "Test Member",
		Email:     "member@example.org",
		MemberID:  memberID,
		JoinDate:  domain.DateOf(now),
		Status:    domain.BorrowerStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// makeTestLoan creates an active domain.Loan.
func makeTestLoan(id, unitID, bookID, borrowerID string) *domain.Loan {
	now := time.Now()
	today := domain.DateOf(now)
	return &domain.Loan{
		ID:           id,
		UnitID:       unitID,
		BookID:       bookID,
		BorrowerID:   borrowerID,
		Status:       domain.LoanStatusActive,
		CheckoutDate: today,
		DueDate:      today.AddDate(0, 0, domain.DefaultLoanPeriodDays),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
