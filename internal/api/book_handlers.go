package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/service"
	"github.com/libradesk/libradesk-server/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-books",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns catalog titles with availability counts.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-book",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Security:      []map[string][]string{{"bearer": {}}},
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-book",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-book",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Books"},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-book",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Removes a title and its available units. Fails while any unit is on loan or in maintenance.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Books"},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-book-units",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/units",
		Summary:     "List units",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Books"},
	}, s.handleListUnits)

	huma.Register(s.api, huma.Operation{
		OperationID:   "add-book-unit",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/units",
		Summary:       "Add unit",
		Description:   "Registers a new physical copy of the title.",
		Security:      []map[string][]string{{"bearer": {}}},
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddUnit)

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-unit",
		Method:      http.MethodDelete,
		Path:        "/api/v1/units/{id}",
		Summary:     "Remove unit",
		Description: "Deletes a unit. Only available units can be removed.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Books"},
	}, s.handleRemoveUnit)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-unit-maintenance",
		Method:      http.MethodPut,
		Path:        "/api/v1/units/{id}/maintenance",
		Summary:     "Set unit maintenance",
		Description: "Moves a unit in or out of maintenance.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Books"},
	}, s.handleSetUnitMaintenance)
}

// === DTOs ===

// ListBooksInput holds query parameters for catalog listings.
type ListBooksInput struct {
	PaginationQuery
	Search string `query:"search" doc:"Match against title, author, or ISBN"`
	Genre  string `query:"genre" doc:"Filter by exact genre"`
}

// BookListOutput wraps a paginated book listing for huma.
type BookListOutput struct {
	Body ListResponse[domain.BookWithAvailability]
}

// BookRequest is the request body for creating or updating a title.
type BookRequest struct {
	Title         string `json:"title" doc:"Book title"`
	Author        string `json:"author" doc:"Author name"`
	ISBN          string `json:"isbn,omitempty" doc:"ISBN-10 or ISBN-13"`
	Genre         string `json:"genre,omitempty" doc:"Genre"`
	PublishedYear int    `json:"published_year,omitempty" doc:"Year of publication"`
	Description   string `json:"description,omitempty" doc:"Description"`
	CoverURL      string `json:"cover_url,omitempty" doc:"Cover image URL to download"`
}

// CreateBookInput wraps the create request for huma.
type CreateBookInput struct {
	Body struct {
		BookRequest
		InitialUnits int `json:"initial_units,omitempty" doc:"Physical copies to register immediately"`
	}
}

// UpdateBookInput wraps the update request for huma.
type UpdateBookInput struct {
	IDParam
	Body BookRequest
}

// BookOutput wraps a single title for huma.
type BookOutput struct {
	Body domain.Book
}

// BookDetailOutput wraps a title with availability for huma.
type BookDetailOutput struct {
	Body domain.BookWithAvailability
}

// UnitListOutput wraps a unit listing for huma.
type UnitListOutput struct {
	Body struct {
		Units []domain.Unit `json:"units" doc:"Units of the title"`
	}
}

// UnitOutput wraps a single unit for huma.
type UnitOutput struct {
	Body domain.Unit
}

// MaintenanceInput wraps the maintenance toggle for huma.
type MaintenanceInput struct {
	IDParam
	Body struct {
		InMaintenance bool `json:"in_maintenance" doc:"True to pull the unit from circulation"`
	}
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*BookListOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	result, err := s.services.Book.ListBooks(ctx, store.ListBooksFilter{
		Search: input.Search,
		Genre:  input.Genre,
	}, input.params())
	if err != nil {
		return nil, err
	}

	return &BookListOutput{Body: listResponse(result, input.PaginationQuery)}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Book.CreateBook(ctx, service.CreateBookRequest{
		Title:         input.Body.Title,
		Author:        input.Body.Author,
		ISBN:          input.Body.ISBN,
		Genre:         input.Body.Genre,
		PublishedYear: input.Body.PublishedYear,
		Description:   input.Body.Description,
		CoverURL:      input.Body.CoverURL,
		InitialUnits:  input.Body.InitialUnits,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: *book}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *IDParam) (*BookDetailOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Book.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookDetailOutput{Body: *book}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Book.UpdateBook(ctx, input.ID, service.UpdateBookRequest{
		Title:         input.Body.Title,
		Author:        input.Body.Author,
		ISBN:          input.Body.ISBN,
		Genre:         input.Body.Genre,
		PublishedYear: input.Body.PublishedYear,
		Description:   input.Body.Description,
		CoverURL:      input.Body.CoverURL,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: *book}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *IDParam) (*MessageOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	if err := s.services.Book.DeleteBook(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Book deleted"}}, nil
}

func (s *Server) handleListUnits(ctx context.Context, input *IDParam) (*UnitListOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	units, err := s.services.Book.ListUnits(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	out := &UnitListOutput{}
	out.Body.Units = units
	return out, nil
}

func (s *Server) handleAddUnit(ctx context.Context, input *IDParam) (*UnitOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	unit, err := s.services.Book.AddUnit(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &UnitOutput{Body: *unit}, nil
}

func (s *Server) handleRemoveUnit(ctx context.Context, input *IDParam) (*MessageOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	if err := s.services.Book.RemoveUnit(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Unit removed"}}, nil
}

func (s *Server) handleSetUnitMaintenance(ctx context.Context, input *MaintenanceInput) (*UnitOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	unit, err := s.services.Book.SetUnitMaintenance(ctx, input.ID, input.Body.InMaintenance)
	if err != nil {
		return nil, err
	}
	return &UnitOutput{Body: *unit}, nil
}
