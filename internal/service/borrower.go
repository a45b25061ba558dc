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

// BorrowerService manages library members.
type BorrowerService struct {
	store  *store.Store
	search *search.Index
	logger *slog.Logger
}

// NewBorrowerService creates a new borrower service.
func NewBorrowerService(st *store.Store, idx *search.Index, logger *slog.Logger) *BorrowerService {
	return &BorrowerService{
		store:  st,
		search: idx,
		logger: logger,
	}
}

// CreateBorrowerRequest contains the data for a new member.
type CreateBorrowerRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=50"`
	MemberID string `json:"member_id" validate:"required,max=50"`
}

// UpdateBorrowerRequest contains updatable member fields. Loan counters
// are owned by the loan lifecycle and cannot be edited here.
type UpdateBorrowerRequest struct {
	Name      string                `json:"name" validate:"required,max=200"`
	Email     string                `json:"email" validate:"required,email"`
	Phone     string                `json:"phone,omitempty" validate:"omitempty,max=50"`
	Status    domain.BorrowerStatus `json:"status" validate:"required,oneof=active inactive suspended"`
	FineCents *int64                `json:"fine_cents,omitempty" validate:"omitempty,min=0"`
}

// CreateBorrower registers a new member with a unique member ID.
func (s *BorrowerService) CreateBorrower(ctx context.Context, req CreateBorrowerRequest) (*domain.Borrower, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	borrowerID, err := id.Generate("borrower")
	if err != nil {
		return nil, fmt.Errorf("generate borrower ID: %w", err)
	}

	now := time.Now()
	borrower := &domain.Borrower{
		ID:        borrowerID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		MemberID:  req.MemberID,
		JoinDate:  domain.DateOf(now),
		Status:    domain.BorrowerStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateBorrower(ctx, borrower); err != nil {
		return nil, err
	}

	s.indexBorrower(borrower)

	s.logger.Info("created borrower",
		"borrower_id", borrower.ID,
		"member_id", borrower.MemberID,
	)

	return borrower, nil
}

// GetBorrower retrieves a member by internal ID.
func (s *BorrowerService) GetBorrower(ctx context.Context, borrowerID string) (*domain.Borrower, error) {
	return s.store.GetBorrower(ctx, borrowerID)
}

// GetBorrowerByMemberID retrieves a member by their card number.
func (s *BorrowerService) GetBorrowerByMemberID(ctx context.Context, memberID string) (*domain.Borrower, error) {
	return s.store.GetBorrowerByMemberID(ctx, memberID)
}

// ListBorrowers returns a paginated member listing.
func (s *BorrowerService) ListBorrowers(ctx context.Context, filter store.ListBorrowersFilter, params store.PaginationParams) (*store.PaginatedResult[domain.Borrower], error) {
	return s.store.ListBorrowers(ctx, filter, params)
}

// UpdateBorrower applies member changes and refreshes the search index.
// The member ID is immutable once issued.
func (s *BorrowerService) UpdateBorrower(ctx context.Context, borrowerID string, req UpdateBorrowerRequest) (*domain.Borrower, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	borrower, err := s.store.GetBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	borrower.Name = req.Name
	borrower.Email = req.Email
	borrower.Phone = req.Phone
	borrower.Status = req.Status
	if req.FineCents != nil {
		borrower.FineCents = *req.FineCents
	}
	borrower.UpdatedAt = time.Now()

	if err := s.store.UpdateBorrower(ctx, borrower); err != nil {
		return nil, err
	}

	s.indexBorrower(borrower)
	return borrower, nil
}

// DeleteBorrower removes a member. Members with books still out cannot
// be deleted.
func (s *BorrowerService) DeleteBorrower(ctx context.Context, borrowerID string) error {
	if _, err := s.store.GetBorrower(ctx, borrowerID); err != nil {
		return err
	}

	active, err := s.store.CountActiveLoansForBorrower(ctx, borrowerID)
	if err != nil {
		return fmt.Errorf("count active loans: %w", err)
	}
	if active > 0 {
		return domainerrors.PreconditionFailedf("borrower has %d active loan(s)", active)
	}

	if err := s.store.DeleteBorrower(ctx, borrowerID); err != nil {
		return err
	}

	if err := s.search.DeleteDocument(borrowerID); err != nil {
		s.logger.Warn("failed to remove borrower from search index", "borrower_id", borrowerID, "error", err)
	}

	s.logger.Info("deleted borrower", "borrower_id", borrowerID)
	return nil
}

func (s *BorrowerService) indexBorrower(b *domain.Borrower) {
	if err := s.search.IndexDocument(search.BorrowerDocument(b)); err != nil {
		s.logger.Warn("failed to index borrower", "borrower_id", b.ID, "error", err)
	}
}
