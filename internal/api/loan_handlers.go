package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/libradesk/libradesk-server/internal/domain"
	domainerrors "github.com/libradesk/libradesk-server/internal/errors"
	"github.com/libradesk/libradesk-server/internal/service"
)

func (s *Server) registerLoanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-loans",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans",
		Summary:     "List loans",
		Description: "Returns loans with book and borrower details. Active and overdue are derived from due dates at read time.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Loans"},
	}, s.handleListLoans)

	huma.Register(s.api, huma.Operation{
		OperationID:   "checkout",
		Method:        http.MethodPost,
		Path:          "/api/v1/loans",
		Summary:       "Check out a book",
		Description:   "Lends an available unit of a book to an active borrower.",
		Security:      []map[string][]string{{"bearer": {}}},
		Tags:          []string{"Loans"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCheckout)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-loan",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/{id}",
		Summary:     "Get loan",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Loans"},
	}, s.handleGetLoan)

	huma.Register(s.api, huma.Operation{
		OperationID: "return-loan",
		Method:      http.MethodPost,
		Path:        "/api/v1/loans/{id}/return",
		Summary:     "Return a book",
		Description: "Closes an active loan. Returning twice fails; return is terminal.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Loans"},
	}, s.handleReturn)

	huma.Register(s.api, huma.Operation{
		OperationID: "book-availability",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/availability",
		Summary:     "Book availability",
		Description: "Reports how many copies of a book can be checked out right now.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Loans"},
	}, s.handleAvailability)
}

// === DTOs ===

// ListLoansInput holds query parameters for loan listings.
type ListLoansInput struct {
	PaginationQuery
	Status     string `query:"status" enum:"active,overdue,returned" doc:"Filter by presented status"`
	BorrowerID string `query:"borrower_id" doc:"Filter by borrower"`
	BookID     string `query:"book_id" doc:"Filter by book"`
	Search     string `query:"search" doc:"Match against book title, borrower name, or member ID"`
}

// LoanListOutput wraps a paginated loan listing for huma.
type LoanListOutput struct {
	Body ListResponse[domain.LoanView]
}

// CheckoutInput wraps the checkout request for huma.
type CheckoutInput struct {
	Body struct {
		BookID     string `json:"book_id" doc:"Book to lend"`
		BorrowerID string `json:"borrower_id" doc:"Borrower taking the book"`
		DueDate    string `json:"due_date,omitempty" doc:"Due date (YYYY-MM-DD); defaults to the configured loan period"`
	}
}

// LoanOutput wraps a single loan for huma.
type LoanOutput struct {
	Body domain.Loan
}

// AvailabilityOutput wraps an availability report for huma.
type AvailabilityOutput struct {
	Body service.Availability
}

// === Handlers ===

func (s *Server) handleListLoans(ctx context.Context, input *ListLoansInput) (*LoanListOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	result, err := s.services.Loan.ListLoans(ctx, service.LoanFilter{
		Status:     domain.LoanStatus(input.Status),
		BorrowerID: input.BorrowerID,
		BookID:     input.BookID,
		Search:     input.Search,
	}, input.params())
	if err != nil {
		return nil, err
	}

	return &LoanListOutput{Body: listResponse(result, input.PaginationQuery)}, nil
}

func (s *Server) handleCheckout(ctx context.Context, input *CheckoutInput) (*LoanOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	req := service.CheckoutRequest{
		BookID:     input.Body.BookID,
		BorrowerID: input.Body.BorrowerID,
	}
	if input.Body.DueDate != "" {
		due, err := time.Parse(time.DateOnly, input.Body.DueDate)
		if err != nil {
			return nil, domainerrors.Validation("due_date must be a date in format 2006-01-02")
		}
		req.DueDate = &due
	}

	loan, err := s.services.Loan.Checkout(ctx, req)
	if err != nil {
		return nil, err
	}
	return &LoanOutput{Body: *loan}, nil
}

func (s *Server) handleGetLoan(ctx context.Context, input *IDParam) (*LoanOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	loan, err := s.services.Loan.GetLoan(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &LoanOutput{Body: *loan}, nil
}

func (s *Server) handleReturn(ctx context.Context, input *IDParam) (*LoanOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	loan, err := s.services.Loan.Return(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &LoanOutput{Body: *loan}, nil
}

func (s *Server) handleAvailability(ctx context.Context, input *IDParam) (*AvailabilityOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	avail, err := s.services.Loan.GetAvailability(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &AvailabilityOutput{Body: *avail}, nil
}
