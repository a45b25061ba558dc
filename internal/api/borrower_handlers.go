package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/service"
	"github.com/libradesk/libradesk-server/internal/store"
)

func (s *Server) registerBorrowerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-borrowers",
		Method:      http.MethodGet,
		Path:        "/api/v1/borrowers",
		Summary:     "List borrowers",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Borrowers"},
	}, s.handleListBorrowers)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-borrower",
		Method:        http.MethodPost,
		Path:          "/api/v1/borrowers",
		Summary:       "Create borrower",
		Security:      []map[string][]string{{"bearer": {}}},
		Tags:          []string{"Borrowers"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBorrower)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-borrower",
		Method:      http.MethodGet,
		Path:        "/api/v1/borrowers/{id}",
		Summary:     "Get borrower",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Borrowers"},
	}, s.handleGetBorrower)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-borrower-by-member-id",
		Method:      http.MethodGet,
		Path:        "/api/v1/borrowers/by-member-id/{memberID}",
		Summary:     "Get borrower by member ID",
		Description: "Looks a member up by the ID printed on their card.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Borrowers"},
	}, s.handleGetBorrowerByMemberID)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-borrower",
		Method:      http.MethodPut,
		Path:        "/api/v1/borrowers/{id}",
		Summary:     "Update borrower",
		Description: "Updates member details and status. Loan counters cannot be edited.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Borrowers"},
	}, s.handleUpdateBorrower)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-borrower",
		Method:      http.MethodDelete,
		Path:        "/api/v1/borrowers/{id}",
		Summary:     "Delete borrower",
		Description: "Removes a member. Fails while they have books out.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Borrowers"},
	}, s.handleDeleteBorrower)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-borrower-loans",
		Method:      http.MethodGet,
		Path:        "/api/v1/borrowers/{id}/loans",
		Summary:     "List borrower loans",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Borrowers"},
	}, s.handleListBorrowerLoans)
}

// === DTOs ===

// ListBorrowersInput holds query parameters for member listings.
type ListBorrowersInput struct {
	PaginationQuery
	Search string `query:"search" doc:"Match against name, email, or member ID"`
	Status string `query:"status" enum:"active,inactive,suspended" doc:"Filter by status"`
}

// BorrowerListOutput wraps a paginated member listing for huma.
type BorrowerListOutput struct {
	Body ListResponse[domain.Borrower]
}

// CreateBorrowerInput wraps the create request for huma.
type CreateBorrowerInput struct {
	Body struct {
		Name     string `json:"name" doc:"Member name"`
		Email    string `json:"email" doc:"Member email"`
		Phone    string `json:"phone,omitempty" doc:"Phone number"`
		MemberID string `json:"member_id" doc:"Unique member card ID"`
	}
}

// UpdateBorrowerInput wraps the update request for huma.
type UpdateBorrowerInput struct {
	IDParam
	Body struct {
		Name      string `json:"name" doc:"Member name"`
		Email     string `json:"email" doc:"Member email"`
		Phone     string `json:"phone,omitempty" doc:"Phone number"`
		Status    string `json:"status" enum:"active,inactive,suspended" doc:"Member status"`
		FineCents *int64 `json:"fine_cents,omitempty" minimum:"0" doc:"Outstanding fine balance in cents"`
	}
}

// MemberIDParam is a path parameter for member card IDs.
type MemberIDParam struct {
	MemberID string `path:"memberID" doc:"Member card ID"`
}

// BorrowerOutput wraps a single member for huma.
type BorrowerOutput struct {
	Body domain.Borrower
}

// BorrowerLoansInput holds parameters for a member's loan history.
type BorrowerLoansInput struct {
	IDParam
	PaginationQuery
	Status string `query:"status" enum:"active,overdue,returned" doc:"Filter by presented status"`
}

// === Handlers ===

func (s *Server) handleListBorrowers(ctx context.Context, input *ListBorrowersInput) (*BorrowerListOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	result, err := s.services.Borrower.ListBorrowers(ctx, store.ListBorrowersFilter{
		Search: input.Search,
		Status: domain.BorrowerStatus(input.Status),
	}, input.params())
	if err != nil {
		return nil, err
	}

	return &BorrowerListOutput{Body: listResponse(result, input.PaginationQuery)}, nil
}

func (s *Server) handleCreateBorrower(ctx context.Context, input *CreateBorrowerInput) (*BorrowerOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	borrower, err := s.services.Borrower.CreateBorrower(ctx, service.CreateBorrowerRequest{
		Name:     input.Body.Name,
		Email:    input.Body.Email,
		Phone:    input.Body.Phone,
		MemberID: input.Body.MemberID,
	})
	if err != nil {
		return nil, err
	}
	return &BorrowerOutput{Body: *borrower}, nil
}

func (s *Server) handleGetBorrower(ctx context.Context, input *IDParam) (*BorrowerOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	borrower, err := s.services.Borrower.GetBorrower(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BorrowerOutput{Body: *borrower}, nil
}

func (s *Server) handleGetBorrowerByMemberID(ctx context.Context, input *MemberIDParam) (*BorrowerOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	borrower, err := s.services.Borrower.GetBorrowerByMemberID(ctx, input.MemberID)
	if err != nil {
		return nil, err
	}
	return &BorrowerOutput{Body: *borrower}, nil
}

func (s *Server) handleUpdateBorrower(ctx context.Context, input *UpdateBorrowerInput) (*BorrowerOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	borrower, err := s.services.Borrower.UpdateBorrower(ctx, input.ID, service.UpdateBorrowerRequest{
		Name:      input.Body.Name,
		Email:     input.Body.Email,
		Phone:     input.Body.Phone,
		Status:    domain.BorrowerStatus(input.Body.Status),
		FineCents: input.Body.FineCents,
	})
	if err != nil {
		return nil, err
	}
	return &BorrowerOutput{Body: *borrower}, nil
}

func (s *Server) handleDeleteBorrower(ctx context.Context, input *IDParam) (*MessageOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	if err := s.services.Borrower.DeleteBorrower(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Borrower deleted"}}, nil
}

func (s *Server) handleListBorrowerLoans(ctx context.Context, input *BorrowerLoansInput) (*LoanListOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	result, err := s.services.Loan.ListLoans(ctx, service.LoanFilter{
		Status:     domain.LoanStatus(input.Status),
		BorrowerID: input.ID,
	}, input.params())
	if err != nil {
		return nil, err
	}
	return &LoanListOutput{Body: listResponse(result, input.PaginationQuery)}, nil
}
