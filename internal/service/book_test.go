package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/libradesk/libradesk-server/internal/domain"
	domainerrors "github.com/libradesk/libradesk-server/internal/errors"
	"github.com/libradesk/libradesk-server/internal/search"
	"github.com/libradesk/libradesk-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *search.Index {
	t.Helper()
	idx, err := search.NewIndex(search.Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func newBookService(t *testing.T, st *store.Store, idx *search.Index) *BookService {
	t.Helper()
	return NewBookService(st, idx, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBookService_CreateBook(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	idx := newTestIndex(t)
	svc := newBookService(t, st, idx)

	book, err := svc.CreateBook(ctx, CreateBookRequest{
		Title:        "The Dispossessed",
		Author:       "Ursula K. Le Guin",
		Genre:        "sci-fi",
		InitialUnits: 3,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)

	got, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalUnits)
	assert.Equal(t, 3, got.AvailableUnits)

	// The title is searchable right away.
	result, err := idx.Search(ctx, searchParamsFor("dispossessed"))
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, book.ID, result.Hits[0].ID)
}

func searchParamsFor(query string) search.Params {
	params := search.DefaultParams()
	params.Query = query
	return params
}

func TestBookService_CreateBook_Validation(t *testing.T) {
	svc := newBookService(t, newTestStore(t), newTestIndex(t))

	_, err := svc.CreateBook(context.Background(), CreateBookRequest{Author: "No Title"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.CreateBook(context.Background(), CreateBookRequest{
		Title: "Bad ISBN", Author: "Someone", ISBN: "not-an-isbn",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestBookService_DeleteBook_Guards(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBookService(t, st, newTestIndex(t))

	seedBook(t, st, "book-1", "Checked Out")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusLoaned)

	err := svc.DeleteBook(ctx, "book-1")
	require.ErrorIs(t, err, domainerrors.ErrPreconditionFailed)
	assert.Contains(t, err.Error(), "on loan")

	// Once the unit comes back the title can go.
	require.NoError(t, st.ReleaseUnit(ctx, "unit-a", testNow))
	require.NoError(t, svc.DeleteBook(ctx, "book-1"))

	_, err = st.GetBook(ctx, "book-1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestBookService_DeleteBook_MaintenanceGuard(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBookService(t, st, newTestIndex(t))

	seedBook(t, st, "book-1", "In Repair")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusMaintenance)

	err := svc.DeleteBook(ctx, "book-1")
	require.ErrorIs(t, err, domainerrors.ErrPreconditionFailed)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestBookService_UpdateBook_ReindexesTitle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	idx := newTestIndex(t)
	svc := newBookService(t, st, idx)

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Old Title", Author: "Someone"})
	require.NoError(t, err)

	_, err = svc.UpdateBook(ctx, book.ID, UpdateBookRequest{Title: "Brand New Title", Author: "Someone"})
	require.NoError(t, err)

	result, err := idx.Search(ctx, searchParamsFor("brand"))
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, book.ID, result.Hits[0].ID)
}

func TestBookService_SetUnitMaintenance(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBookService(t, st, newTestIndex(t))

	seedBook(t, st, "book-1", "A Book")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
	seedUnit(t, st, "unit-b", "book-1", domain.UnitStatusLoaned)

	unit, err := svc.SetUnitMaintenance(ctx, "unit-a", true)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusMaintenance, unit.Status)

	unit, err = svc.SetUnitMaintenance(ctx, "unit-a", false)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusAvailable, unit.Status)

	// Loaned units belong to the loan lifecycle.
	_, err = svc.SetUnitMaintenance(ctx, "unit-b", true)
	assert.ErrorIs(t, err, domainerrors.ErrPreconditionFailed)
}

func TestBookService_RemoveUnit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newBookService(t, st, newTestIndex(t))

	seedBook(t, st, "book-1", "A Book")
	seedUnit(t, st, "unit-a", "book-1", domain.UnitStatusAvailable)
	seedUnit(t, st, "unit-b", "book-1", domain.UnitStatusLoaned)

	require.NoError(t, svc.RemoveUnit(ctx, "unit-a"))
	assert.Error(t, svc.RemoveUnit(ctx, "unit-b"))
}
