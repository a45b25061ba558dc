package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/libradesk/libradesk-server/internal/domain"
	domainerrors "github.com/libradesk/libradesk-server/internal/errors"
	"github.com/libradesk/libradesk-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBorrowerService(t *testing.T, st *store.Store) *BorrowerService {
	t.Helper()
	return NewBorrowerService(st, newTestIndex(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBorrowerService_Create(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBorrowerService(t, st)

	borrower, err := svc.CreateBorrower(ctx, CreateBorrowerRequest{
		Name:     "Sam Chen",
		Email:    "sam@example.org",
		MemberID: "M-1001",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowerStatusActive, borrower.Status)
	assert.Zero(t, borrower.ActiveLoans)

	// Member IDs are unique.
	_, err = svc.CreateBorrower(ctx, CreateBorrowerRequest{
		Name: "Other Person", Email: "other@example.org", MemberID: "M-1001",
	})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestBorrowerService_Create_Validation(t *testing.T) {
	svc := newBorrowerService(t, newTestStore(t))

	_, err := svc.CreateBorrower(context.Background(), CreateBorrowerRequest{
		Name: "No Email", MemberID: "M-1",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestBorrowerService_Update_CountersImmutable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBorrowerService(t, st)

	seedBorrower(t, st, "b1", domain.BorrowerStatusActive)
	require.NoError(t, st.IncrementLoanCounts(ctx, "b1", testNow))

	updated, err := svc.UpdateBorrower(ctx, "b1", UpdateBorrowerRequest{
		Name: "New Name", Email: "new@example.org", Status: domain.BorrowerStatusSuspended,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowerStatusSuspended, updated.Status)

	// Counters survive profile edits untouched.
	got, err := st.GetBorrower(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ActiveLoans)
	assert.Equal(t, 1, got.TotalLoans)
}

func TestBorrowerService_Update_FineBalance(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBorrowerService(t, st)

	seedBorrower(t, st, "b1", domain.BorrowerStatusActive)

	fine := int64(250)
	updated, err := svc.UpdateBorrower(ctx, "b1", UpdateBorrowerRequest{
		Name: "Member One", Email: "b1@example.org",
		Status: domain.BorrowerStatusActive, FineCents: &fine,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), updated.FineCents)
	assert.True(t, updated.HasOutstandingFines())

	// Omitting the field leaves the balance alone.
	updated, err = svc.UpdateBorrower(ctx, "b1", UpdateBorrowerRequest{
		Name: "Member One", Email: "b1@example.org",
		Status: domain.BorrowerStatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), updated.FineCents)
}

func TestBorrowerService_Delete_ActiveLoanGuard(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBorrowerService(t, st)

	seedBook(t, st, "book-1", "A Book")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
	seedBorrower(t, st, "b1", domain.BorrowerStatusActive)

	loanSvc := newLoanService(st)
	loan, err := loanSvc.Checkout(ctx, CheckoutRequest{BookID: "book-1", BorrowerID: "b1"})
	require.NoError(t, err)

	err = svc.DeleteBorrower(ctx, "b1")
	require.ErrorIs(t, err, domainerrors.ErrPreconditionFailed)
	assert.Contains(t, err.Error(), "active loan")

	_, err = loanSvc.Return(ctx, loan.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteBorrower(ctx, "b1"))

	_, err = st.GetBorrower(ctx, "b1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestBorrowerService_GetByMemberID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBorrowerService(t, st)

	seedBorrower(t, st, "b1", domain.BorrowerStatusActive)

	got, err := svc.GetBorrowerByMemberID(ctx, "M-b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", got.ID)

	_, err = svc.GetBorrowerByMemberID(ctx, "M-unknown")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
