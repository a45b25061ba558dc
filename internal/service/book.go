package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	domainerrors "github.com/libradesk/libradesk-server/internal/errors"
	"github.com/libradesk/libradesk-server/internal/id"
	"github.com/libradesk/libradesk-server/internal/search"
	"github.com/libradesk/libradesk-server/internal/store"
)

// BookService orchestrates catalog operations: titles, their physical
// units, and the search index entries derived from them.
type BookService struct {
	store  *store.Store
	search *search.Index
	covers *CoverService
	logger *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(st *store.Store, idx *search.Index, covers *CoverService, logger *slog.Logger) *BookService {
	return &BookService{
		store:  st,
		search: idx,
		covers: covers,
		logger: logger,
	}
}

// CreateBookRequest contains the data for a new catalog title.
type CreateBookRequest struct {
	Title         string `json:"title" validate:"required,max=500"`
	Author        string `json:"author" validate:"required,max=200"`
	ISBN          string `json:"isbn,omitempty" validate:"omitempty,isbn"`
	Genre         string `json:"genre,omitempty" validate:"omitempty,max=100"`
	PublishedYear int    `json:"published_year,omitempty" validate:"omitempty,gte=0,lte=2100"`
	Description   string `json:"description,omitempty" validate:"omitempty,max=5000"`
	CoverURL      string `json:"cover_url,omitempty" validate:"omitempty,url"`

	// InitialUnits physical copies are registered alongside the title.
	InitialUnits int `json:"initial_units,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// UpdateBookRequest contains updatable title fields.
type UpdateBookRequest struct {
	Title         string `json:"title" validate:"required,max=500"`
	Author        string `json:"author" validate:"required,max=200"`
	ISBN          string `json:"isbn,omitempty" validate:"omitempty,isbn"`
	Genre         string `json:"genre,omitempty" validate:"omitempty,max=100"`
	PublishedYear int    `json:"published_year,omitempty" validate:"omitempty,gte=0,lte=2100"`
	Description   string `json:"description,omitempty" validate:"omitempty,max=5000"`
	CoverURL      string `json:"cover_url,omitempty" validate:"omitempty,url"`
}

// CreateBook registers a new title, its initial units, and its search
// index entry. A cover URL triggers a download in the background.
func (s *BookService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	now := time.Now()
	book := &domain.Book{
		ID:            bookID,
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Genre:         req.Genre,
		PublishedYear: req.PublishedYear,
		Description:   req.Description,
		CoverURL:      req.CoverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	for range req.InitialUnits {
		if _, err := s.AddUnit(ctx, bookID); err != nil {
			return nil, fmt.Errorf("register initial unit: %w", err)
		}
	}

	s.indexBook(book)

	if req.CoverURL != "" && s.covers != nil {
		// Cover downloads hit external catalogs and can be slow, so
		// they never block creation.
		go s.covers.DownloadForBook(context.WithoutCancel(ctx), book.ID, req.CoverURL)
	}

	s.logger.Info("created book",
		"book_id", book.ID,
		"title", book.Title,
		"initial_units", req.InitialUnits,
	)

	return book, nil
}

// GetBook retrieves a title with its unit availability counts.
func (s *BookService) GetBook(ctx context.Context, bookID string) (*domain.BookWithAvailability, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	units, err := s.store.ListUnitsForBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}

	result := &domain.BookWithAvailability{Book: *book, TotalUnits: len(units)}
	for _, u := range units {
		if u.IsAvailable() {
			result.AvailableUnits++
		}
	}
	return result, nil
}

// ListBooks returns a paginated catalog listing.
func (s *BookService) ListBooks(ctx context.Context, filter store.ListBooksFilter, params store.PaginationParams) (*store.PaginatedResult[domain.BookWithAvailability], error) {
	return s.store.ListBooks(ctx, filter, params)
}

// UpdateBook applies title changes and refreshes the search index.
func (s *BookService) UpdateBook(ctx context.Context, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	coverChanged := req.CoverURL != "" && req.CoverURL != book.CoverURL

	book.Title = req.Title
	book.Author = req.Author
	book.ISBN = req.ISBN
	book.Genre = req.Genre
	book.PublishedYear = req.PublishedYear
	book.Description = req.Description
	book.CoverURL = req.CoverURL
	book.UpdatedAt = time.Now()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, err
	}

	s.indexBook(book)

	if coverChanged && s.covers != nil {
		go s.covers.DownloadForBook(context.WithoutCancel(ctx), book.ID, req.CoverURL)
	}

	return book, nil
}

// DeleteBook removes a title and its available units. Titles with
// loaned or maintenance units cannot be deleted; those units represent
// copies that are still out in the world.
func (s *BookService) DeleteBook(ctx context.Context, bookID string) error {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return err
	}

	loaned, err := s.store.CountUnitsByStatus(ctx, bookID, domain.UnitStatusLoaned)
	if err != nil {
		return fmt.Errorf("count loaned units: %w", err)
	}
	if loaned > 0 {
		return domainerrors.PreconditionFailedf("book has %d unit(s) on loan", loaned)
	}

	maintenance, err := s.store.CountUnitsByStatus(ctx, bookID, domain.UnitStatusMaintenance)
	if err != nil {
		return fmt.Errorf("count maintenance units: %w", err)
	}
	if maintenance > 0 {
		return domainerrors.PreconditionFailedf("book has %d unit(s) in maintenance", maintenance)
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}

	if err := s.search.DeleteDocument(bookID); err != nil {
		s.logger.Warn("failed to remove book from search index", "book_id", bookID, "error", err)
	}
	if s.covers != nil {
		if err := s.covers.Delete(bookID); err != nil {
			s.logger.Warn("failed to remove cover", "book_id", bookID, "error", err)
		}
	}

	s.logger.Info("deleted book", "book_id", bookID)
	return nil
}

// AddUnit registers a new physical copy of a title.
func (s *BookService) AddUnit(ctx context.Context, bookID string) (*domain.Unit, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	unitID, err := id.Generate("unit")
	if err != nil {
		return nil, fmt.Errorf("generate unit ID: %w", err)
	}

	now := time.Now()
	unit := &domain.Unit{
		ID:        unitID,
		BookID:    bookID,
		Status:    domain.UnitStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUnit(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// ListUnits returns all units of a title.
func (s *BookService) ListUnits(ctx context.Context, bookID string) ([]domain.Unit, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return s.store.ListUnitsForBook(ctx, bookID)
}

// RemoveUnit deletes a unit. Only available units can be removed;
// loaned units have to come back first and maintenance units have to
// be resolved.
func (s *BookService) RemoveUnit(ctx context.Context, unitID string) error {
	return s.store.DeleteUnit(ctx, unitID)
}

// SetUnitMaintenance moves a unit in or out of maintenance. The loaned
// status is owned by the loan lifecycle and cannot be set here.
func (s *BookService) SetUnitMaintenance(ctx context.Context, unitID string, inMaintenance bool) (*domain.Unit, error) {
	unit, err := s.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit.Status == domain.UnitStatusLoaned {
		return nil, domainerrors.PreconditionFailedf("unit %s is on loan", unitID)
	}

	target := domain.UnitStatusAvailable
	if inMaintenance {
		target = domain.UnitStatusMaintenance
	}
	if unit.Status == target {
		return unit, nil
	}

	now := time.Now()
	if err := s.store.SetUnitStatus(ctx, unitID, target, now); err != nil {
		return nil, err
	}
	unit.Status = target
	unit.UpdatedAt = now
	return unit, nil
}

// indexBook updates the search entry for a title. Indexing failures
// are logged, not returned; the catalog write already happened.
func (s *BookService) indexBook(book *domain.Book) {
	if err := s.search.IndexDocument(search.BookDocument(book)); err != nil {
		s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
	}
}
