package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	domainerrors "github.com/libradesk/libradesk-server/internal/errors"
	"github.com/libradesk/libradesk-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNow is the pinned clock for loan tests: a Tuesday afternoon.
var testNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "library.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// flakyStore wraps a real store and fails named steps on demand, so
// tests can exercise the compensation paths with real SQL underneath.
type flakyStore struct {
	*store.Store
	fail map[string]error
}

func (f *flakyStore) CreateLoan(ctx context.Context, l *domain.Loan) error {
	if err := f.fail["CreateLoan"]; err != nil {
		return err
	}
	return f.Store.CreateLoan(ctx, l)
}

func (f *flakyStore) DeleteLoan(ctx context.Context, id string) error {
	if err := f.fail["DeleteLoan"]; err != nil {
		return err
	}
	return f.Store.DeleteLoan(ctx, id)
}

func (f *flakyStore) ClaimUnit(ctx context.Context, unitID string, now time.Time) error {
	if err := f.fail["ClaimUnit"]; err != nil {
		return err
	}
	return f.Store.ClaimUnit(ctx, unitID, now)
}

func (f *flakyStore) ReleaseUnit(ctx context.Context, unitID string, now time.Time) error {
	if err := f.fail["ReleaseUnit"]; err != nil {
		return err
	}
	return f.Store.ReleaseUnit(ctx, unitID, now)
}

func (f *flakyStore) IncrementLoanCounts(ctx context.Context, borrowerID string, now time.Time) error {
	if err := f.fail["IncrementLoanCounts"]; err != nil {
		return err
	}
	return f.Store.IncrementLoanCounts(ctx, borrowerID, now)
}

func (f *flakyStore) DecrementActiveLoans(ctx context.Context, borrowerID string, now time.Time) error {
	if err := f.fail["DecrementActiveLoans"]; err != nil {
		return err
	}
	return f.Store.DecrementActiveLoans(ctx, borrowerID, now)
}

func (f *flakyStore) MarkLoanReturned(ctx context.Context, id string, returnDate, now time.Time) error {
	if err := f.fail["MarkLoanReturned"]; err != nil {
		return err
	}
	return f.Store.MarkLoanReturned(ctx, id, returnDate, now)
}

func (f *flakyStore) RevertLoanReturn(ctx context.Context, id string, now time.Time) error {
	if err := f.fail["RevertLoanReturn"]; err != nil {
		return err
	}
	return f.Store.RevertLoanReturn(ctx, id, now)
}

func newLoanService(st LoanStore) *LoanService {
	svc := NewLoanService(st, domain.DefaultLoanPeriodDays, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }
	return svc
}

func seedBook(t *testing.T, st *store.Store, bookID, title string) {
	t.Helper()
	require.NoError(t, st.CreateBook(context.Background(), &domain.Book{
		ID: bookID, Title: title, Author: "Test Author",
		CreatedAt: testNow, UpdatedAt: testNow,
	}))
}

func seedUnit(t *testing.T, st *store.Store, unitID, bookID string, status domain.UnitStatus) {
	t.Helper()
	require.NoError(t, st.CreateUnit(context.Background(), &domain.Unit{
		ID: unitID, BookID: bookID, Status: status,
		CreatedAt: testNow, UpdatedAt: testNow,
	}))
}

func seedBorrower(t *testing.T, st *store.Store, borrowerID string, status domain.BorrowerStatus) {
	t.Helper()
	require.NoError(t, st.CreateBorrower(context.Background(), &domain.Borrower{
		ID: borrowerID, Name: "Pat Reader", Email: borrowerID + "@example.org",
		MemberID: "M-" + borrowerID, JoinDate: testNow, Status: status,
		CreatedAt: testNow, UpdatedAt: testNow,
	}))
}

func seedCirculation(t *testing.T, st *store.Store) {
	t.Helper()
	seedBook(t, st, "book-1", "The Left Hand of Darkness")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
	seedUnit(t, st, "unit-b", "book-1", domain.UnitStatusAvailable)
	seedBorrower(t, st, "b1", domain.BorrowerStatusActive)
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("lends the lowest available unit with the default period", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		svc := newLoanService(st)

		loan, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
		require.NoError(t, err)

		assert.Equal(t, "unit-a", loan.UnitID)
		assert.Equal(t, domain.LoanStatusActive, loan.Status)
		assert.Equal(t, "2026-03-10", loan.CheckoutDate.Format(time.DateOnly))
		assert.Equal(t, "2026-03-24", loan.DueDate.Format(time.DateOnly))
		assert.Nil(t, loan.ReturnDate)

		unit, err := st.GetUnit(ctx, "unit-a")
		require.NoError(t, err)
		assert.Equal(t, domain.UnitStatusLoaned, unit.Status)

		borrower, err := st.GetBorrower(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 1, borrower.ActiveLoans)
		assert.Equal(t, 1, borrower.TotalLoans)
	})

	t.Run("honors an explicit due date", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		svc := newLoanService(st)

		due := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
		loan, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1", DueDate: &due})
		require.NoError(t, err)
		assert.Equal(t, "2026-04-01", loan.DueDate.Format(time.DateOnly))
	})

	t.Run("rejects a due date before the checkout date", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		svc := newLoanService(st)

		due := testNow.AddDate(0, 0, -1)
		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1", DueDate: &due})
		assert.ErrorIs(t, err, domainerrors.ErrValidation)
	})

	t.Run("no available copies wins over borrower problems", func(t *testing.T) {
		st := newTestStore(t)
		seedBook(t, st, "book-1", "Out of Stock")
		seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusLoaned)
		svc := newLoanService(st)

		// Borrower doesn't even exist, but availability is checked first.
		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "ghost"})
		require.ErrorIs(t, err, domainerrors.ErrPreconditionFailed)
		assert.Contains(t, err.Error(), "no available copies")
	})

	t.Run("unknown borrower", func(t *testing.T) {
		st := newTestStore(t)
		seedBook(t, st, "book-1", "A Book")
		seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
		svc := newLoanService(st)

		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "ghost"})
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("suspended borrower cannot checkout", func(t *testing.T) {
		st := newTestStore(t)
		seedBook(t, st, "book-1", "A Book")
		seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
		seedBorrower(t, st, "b1", domain.BorrowerStatusSuspended)
		svc := newLoanService(st)

		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
		require.ErrorIs(t, err, domainerrors.ErrPreconditionFailed)
		assert.Contains(t, err.Error(), "not active")
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		svc := newLoanService(newTestStore(t))
		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1"})
		assert.ErrorIs(t, err, domainerrors.ErrValidation)
	})
}

func TestCheckout_Rollback(t *testing.T) {
	ctx := context.Background()

	t.Run("claim failure removes the loan record", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		flaky := &flakyStore{Store: st, fail: map[string]error{"ClaimUnit": errors.New("disk full")}}
		svc := newLoanService(flaky)

		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
		require.ErrorIs(t, err, domainerrors.ErrWriteFailed)

		// No loan survived, the unit is untouched, counters are zero.
		loans, err := st.ListLoans(ctx, store.ListLoansFilter{}, store.PaginationParams{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, loans.Items)

		unit, err := st.GetUnit(ctx, "unit-a")
		require.NoError(t, err)
		assert.Equal(t, domain.UnitStatusAvailable, unit.Status)

		borrower, err := st.GetBorrower(ctx, "b1")
		require.NoError(t, err)
		assert.Zero(t, borrower.ActiveLoans)
		assert.Zero(t, borrower.TotalLoans)
	})

	t.Run("losing the race for the last copy reads as no copies", func(t *testing.T) {
		st := newTestStore(t)
		seedBook(t, st, "book-1", "A Book")
		seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
		seedBorrower(t, st, "b1", domain.BorrowerStatusActive)

		// Simulate another checkout claiming the unit between the
		// availability read and the claim.
		raced := &flakyStore{Store: st, fail: map[string]error{
			"ClaimUnit": domainerrors.PreconditionFailedf("unit unit-a is no longer available"),
		}}
		svc := newLoanService(raced)

		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
		require.ErrorIs(t, err, domainerrors.ErrPreconditionFailed)
		assert.Contains(t, err.Error(), "no available copies")
	})

	t.Run("counter failure releases the unit and removes the loan", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		flaky := &flakyStore{Store: st, fail: map[string]error{"IncrementLoanCounts": errors.New("disk full")}}
		svc := newLoanService(flaky)

		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
		require.ErrorIs(t, err, domainerrors.ErrWriteFailed)

		unit, err := st.GetUnit(ctx, "unit-a")
		require.NoError(t, err)
		assert.Equal(t, domain.UnitStatusAvailable, unit.Status)

		loans, err := st.ListLoans(ctx, store.ListLoansFilter{}, store.PaginationParams{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, loans.Items)
	})

	t.Run("failed compensation surfaces as rollback failure", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		flaky := &flakyStore{Store: st, fail: map[string]error{
			"ClaimUnit":  errors.New("disk full"),
			"DeleteLoan": errors.New("still broken"),
		}}
		svc := newLoanService(flaky)

		_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
		assert.ErrorIs(t, err, domainerrors.ErrRollbackFailed)
	})
}

func TestCheckout_ConcurrentLastCopy(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedBook(t, st, "book-1", "A Book")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
	seedBorrower(t, st, "b1", domain.BorrowerStatusActive)
	seedBorrower(t, st, "b2", domain.BorrowerStatusActive)
	svc := newLoanService(st)

	// Two real goroutines race for the one copy against the real store.
	// The conditional unit claim decides the winner; the loser either
	// sees no availability or fails its claim and rolls back.
	start := make(chan struct{})
	results := make(chan error, 2)
	for _, borrowerID := range []string{"b1", "b2"} {
		go func() {
			<-start
			_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: borrowerID})
			results <- err
		}()
	}
	close(start)

	var won, lost int
	for range 2 {
		switch err := <-results; {
		case err == nil:
			won++
		case domainerrors.Is(err, domainerrors.ErrPreconditionFailed):
			lost++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	assert.Equal(t, 1, won, "exactly one checkout wins the last copy")
	assert.Equal(t, 1, lost, "the other reads as no copies available")

	// One loan, one loaned unit, one borrower charged.
	units, err := st.AvailableUnitsForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Empty(t, units)

	loans, err := st.ListLoans(ctx, store.ListLoansFilter{}, store.PaginationParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, loans.Items, 1)

	b1, err := st.GetBorrower(ctx, "b1")
	require.NoError(t, err)
	b2, err := st.GetBorrower(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, 1, b1.ActiveLoans+b2.ActiveLoans)
}

func TestReturn(t *testing.T) {
	ctx := context.Background()

	checkout := func(t *testing.T, svc *LoanService) *domain.Loan {
		t.Helper()
		loan, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
		require.NoError(t, err)
		return loan
	}

	t.Run("closes the loan and restores availability", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		svc := newLoanService(st)
		loan := checkout(t, svc)

		returned, err := svc.Return(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusReturned, returned.Status)
		require.NotNil(t, returned.ReturnDate)
		assert.Equal(t, "2026-03-10", returned.ReturnDate.Format(time.DateOnly))

		unit, err := st.GetUnit(ctx, loan.UnitID)
		require.NoError(t, err)
		assert.Equal(t, domain.UnitStatusAvailable, unit.Status)

		// Active count drops, lifetime count stays.
		borrower, err := st.GetBorrower(ctx, "b1")
		require.NoError(t, err)
		assert.Zero(t, borrower.ActiveLoans)
		assert.Equal(t, 1, borrower.TotalLoans)
	})

	t.Run("return is terminal", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		svc := newLoanService(st)
		loan := checkout(t, svc)

		_, err := svc.Return(ctx, loan.ID)
		require.NoError(t, err)

		_, err = svc.Return(ctx, loan.ID)
		require.ErrorIs(t, err, domainerrors.ErrPreconditionFailed)

		// The second attempt changed nothing.
		borrower, err := st.GetBorrower(ctx, "b1")
		require.NoError(t, err)
		assert.Zero(t, borrower.ActiveLoans)
		unit, err := st.GetUnit(ctx, loan.UnitID)
		require.NoError(t, err)
		assert.Equal(t, domain.UnitStatusAvailable, unit.Status)
	})

	t.Run("unknown loan", func(t *testing.T) {
		svc := newLoanService(newTestStore(t))
		_, err := svc.Return(ctx, "loan-missing")
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("release failure reverts the loan to active", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		flaky := &flakyStore{Store: st, fail: map[string]error{}}
		svc := newLoanService(flaky)
		loan := checkout(t, svc)

		flaky.fail["ReleaseUnit"] = errors.New("disk full")
		_, err := svc.Return(ctx, loan.ID)
		require.ErrorIs(t, err, domainerrors.ErrWriteFailed)

		got, err := st.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusActive, got.Status)
		assert.Nil(t, got.ReturnDate)

		borrower, err := st.GetBorrower(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 1, borrower.ActiveLoans)
	})

	t.Run("counter failure reverts the loan and reclaims the unit", func(t *testing.T) {
		st := newTestStore(t)
		seedCirculation(t, st)
		flaky := &flakyStore{Store: st, fail: map[string]error{}}
		svc := newLoanService(flaky)
		loan := checkout(t, svc)

		flaky.fail["DecrementActiveLoans"] = errors.New("disk full")
		_, err := svc.Return(ctx, loan.ID)
		require.ErrorIs(t, err, domainerrors.ErrWriteFailed)

		got, err := st.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusActive, got.Status)

		unit, err := st.GetUnit(ctx, loan.UnitID)
		require.NoError(t, err)
		assert.Equal(t, domain.UnitStatusLoaned, unit.Status)
	})
}

func TestListLoans_DerivedStatus(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedBook(t, st, "book-1", "A Book")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
	seedUnit(t, st, "unit-b", "book-1", domain.UnitStatusAvailable)
	seedBorrower(t, st, "b1", domain.BorrowerStatusActive)
	svc := newLoanService(st)

	// One loan due in the future, one past due.
	_, err := svc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
	require.NoError(t, err)
	pastDue := testNow.AddDate(0, 0, -3)
	require.NoError(t, st.CreateLoan(ctx, &domain.Loan{
		ID: "loan-late", UnitID: "unit-b", BookID: "book-1", BorrowerID: "b1",
		Status: domain.LoanStatusActive, CheckoutDate: pastDue.AddDate(0, 0, -14), DueDate: pastDue,
		CreatedAt: testNow, UpdatedAt: testNow,
	}))

	overdue, err := svc.ListLoans(ctx, LoanFilter{Status: domain.LoanStatusOverdue}, store.PaginationParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, overdue.Items, 1)
	assert.Equal(t, "loan-late", overdue.Items[0].ID)
	assert.Equal(t, domain.LoanStatusOverdue, overdue.Items[0].Presented)

	active, err := svc.ListLoans(ctx, LoanFilter{Status: domain.LoanStatusActive}, store.PaginationParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, active.Items, 1)
	assert.Equal(t, domain.LoanStatusActive, active.Items[0].Presented)

	all, err := svc.ListLoans(ctx, LoanFilter{}, store.PaginationParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	for _, item := range all.Items {
		assert.NotEmpty(t, item.Presented)
	}

	_, err = svc.ListLoans(ctx, LoanFilter{Status: "misplaced"}, store.PaginationParams{Limit: 10})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestGetAvailability(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedBook(t, st, "book-1", "A Book")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
	seedUnit(t, st, "unit-b", "book-1", domain.UnitStatusLoaned)
	seedUnit(t, st, "unit-c", "book-1", domain.UnitStatusAvailable)
	svc := newLoanService(st)

	avail, err := svc.GetAvailability(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 2, avail.AvailableCount)
	require.Len(t, avail.AvailableUnits, 2)
	assert.Equal(t, "unit-a", avail.AvailableUnits[0].ID)
	assert.Equal(t, "unit-c", avail.AvailableUnits[1].ID)
}
