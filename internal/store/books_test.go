package store

import (
	"context"
	"testing"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/errors"
)

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "Nineteen Eighty-Four")
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != book.Title {
		t.Errorf("Title: got %q, want %q", got.Title, book.Title)
	}
	if got.Author != book.Author {
		t.Errorf("Author: got %q, want %q", got.Author, book.Author)
	}
	if got.ISBN != book.ISBN {
		t.Errorf("ISBN: got %q, want %q", got.ISBN, book.ISBN)
	}
	if got.PublishedYear != book.PublishedYear {
		t.Errorf("PublishedYear: got %d, want %d", got.PublishedYear, book.PublishedYear)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBook(context.Background(), "book-missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListBooks_AvailabilityCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "Dune")
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	for _, id := range []string{"unit-1", "unit-2", "unit-3"} {
		if err := s.CreateUnit(ctx, makeTestUnit(id, "book-1")); err != nil {
			t.Fatalf("CreateUnit %s: %v", id, err)
		}
	}
	// Put one out on loan.
	if err := s.ClaimUnit(ctx, "unit-2", timeNow()); err != nil {
		t.Fatalf("ClaimUnit: %v", err)
	}

	result, err := s.ListBooks(ctx, ListBooksFilter{}, DefaultPaginationParams())
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 book, got %d", len(result.Items))
	}
	b := result.Items[0]
	if b.TotalUnits != 3 {
		t.Errorf("TotalUnits: got %d, want 3", b.TotalUnits)
	}
	if b.AvailableUnits != 2 {
		t.Errorf("AvailableUnits: got %d, want 2", b.AvailableUnits)
	}
}

func TestListBooks_Search(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, title := range []string{"Dune", "Dune Messiah", "Neuromancer"} {
		book := makeTestBook("book-"+string(rune('a'+i)), title)
		if err := s.CreateBook(ctx, book); err != nil {
			t.Fatalf("CreateBook: %v", err)
		}
	}

	result, err := s.ListBooks(ctx, ListBooksFilter{Search: "dune"}, DefaultPaginationParams())
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(result.Items) != 2 {
		t.Errorf("expected 2 matches for %q, got %d", "dune", len(result.Items))
	}
	if result.Total != 2 {
		t.Errorf("Total: got %d, want 2", result.Total)
	}
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-1", "Draft Title")
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	book.Title = "Final Title"
	book.Genre = "sci-fi"
	if err := s.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != "Final Title" {
		t.Errorf("Title: got %q, want %q", got.Title, "Final Title")
	}
	if got.Genre != "sci-fi" {
		t.Errorf("Genre: got %q, want %q", got.Genre, "sci-fi")
	}
}

func TestDeleteBook_RemovesAvailableUnits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, makeTestBook("book-1", "Dune")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if err := s.CreateUnit(ctx, makeTestUnit("unit-1", "book-1")); err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}

	if err := s.DeleteBook(ctx, "book-1"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if _, err := s.GetBook(ctx, "book-1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("book should be gone, got %v", err)
	}
	if _, err := s.GetUnit(ctx, "unit-1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unit should be gone, got %v", err)
	}
}

func TestUnits_ClaimAndRelease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, makeTestBook("book-1", "Dune")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if err := s.CreateUnit(ctx, makeTestUnit("unit-1", "book-1")); err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}

	if err := s.ClaimUnit(ctx, "unit-1", timeNow()); err != nil {
		t.Fatalf("ClaimUnit: %v", err)
	}
	unit, err := s.GetUnit(ctx, "unit-1")
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if unit.Status != domain.UnitStatusLoaned {
		t.Errorf("Status: got %q, want loaned", unit.Status)
	}

	// Second claim on the same unit must fail the precondition.
	err = s.ClaimUnit(ctx, "unit-1", timeNow())
	if !errors.Is(err, errors.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}

	if err := s.ReleaseUnit(ctx, "unit-1", timeNow()); err != nil {
		t.Fatalf("ReleaseUnit: %v", err)
	}
	unit, err = s.GetUnit(ctx, "unit-1")
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if unit.Status != domain.UnitStatusAvailable {
		t.Errorf("Status: got %q, want available", unit.Status)
	}
}

func TestAvailableUnitsForBook_OrderedByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, makeTestBook("book-1", "Dune")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	// Insert out of order; query must return sorted by ID.
	for _, id := range []string{"unit-c", "unit-a", "unit-b"} {
		if err := s.CreateUnit(ctx, makeTestUnit(id, "book-1")); err != nil {
			t.Fatalf("CreateUnit %s: %v", id, err)
		}
	}

	units, err := s.AvailableUnitsForBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("AvailableUnitsForBook: %v", err)
	}
	want := []string{"unit-a", "unit-b", "unit-c"}
	if len(units) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(units))
	}
	for i, id := range want {
		if units[i].ID != id {
			t.Errorf("units[%d].ID: got %q, want %q", i, units[i].ID, id)
		}
	}
}

func TestDeleteUnit_OnlyWhileAvailable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateBook(ctx, makeTestBook("book-1", "Dune")); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if err := s.CreateUnit(ctx, makeTestUnit("unit-1", "book-1")); err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}
	if err := s.ClaimUnit(ctx, "unit-1", timeNow()); err != nil {
		t.Fatalf("ClaimUnit: %v", err)
	}

	err := s.DeleteUnit(ctx, "unit-1")
	if !errors.Is(err, errors.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed deleting loaned unit, got %v", err)
	}

	if err := s.ReleaseUnit(ctx, "unit-1", timeNow()); err != nil {
		t.Fatalf("ReleaseUnit: %v", err)
	}
	if err := s.DeleteUnit(ctx, "unit-1"); err != nil {
		t.Fatalf("DeleteUnit after release: %v", err)
	}
}
