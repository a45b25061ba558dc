// Package service provides the business logic layer for the catalog,
// membership, and loan lifecycle.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	domainerrors "github.com/libradesk/libradesk-server/internal/errors"
	"github.com/libradesk/libradesk-server/internal/id"
	"github.com/libradesk/libradesk-server/internal/store"
	"github.com/libradesk/libradesk-server/internal/validation"
)

// validate is a shared validator instance for request validation.
var validate = validation.New()

// LoanStore is the storage surface the loan orchestrator depends on.
// Narrow on purpose so tests can wrap a real store and fail individual
// steps to exercise the compensation paths.
type LoanStore interface {
	AvailableUnitsForBook(ctx context.Context, bookID string) ([]domain.Unit, error)
	GetBorrower(ctx context.Context, id string) (*domain.Borrower, error)

	CreateLoan(ctx context.Context, l *domain.Loan) error
	DeleteLoan(ctx context.Context, id string) error
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	MarkLoanReturned(ctx context.Context, id string, returnDate, now time.Time) error
	RevertLoanReturn(ctx context.Context, id string, now time.Time) error
	ListLoans(ctx context.Context, filter store.ListLoansFilter, params store.PaginationParams) (*store.PaginatedResult[domain.LoanView], error)

	ClaimUnit(ctx context.Context, unitID string, now time.Time) error
	ReleaseUnit(ctx context.Context, unitID string, now time.Time) error

	IncrementLoanCounts(ctx context.Context, borrowerID string, now time.Time) error
	DecrementActiveLoans(ctx context.Context, borrowerID string, now time.Time) error
}

// LoanService orchestrates the loan lifecycle: checkout, return, and
// loan queries. Multi-step mutations apply compensating writes on
// partial failure so unit statuses and borrower counters stay
// consistent with the loan ledger.
type LoanService struct {
	store          LoanStore
	loanPeriodDays int
	logger         *slog.Logger

	// now is swapped in tests to pin the clock.
	now func() time.Time
}

// NewLoanService creates a new loan service.
func NewLoanService(st LoanStore, loanPeriodDays int, logger *slog.Logger) *LoanService {
	if loanPeriodDays < 1 {
		loanPeriodDays = domain.DefaultLoanPeriodDays
	}
	return &LoanService{
		store:          st,
		loanPeriodDays: loanPeriodDays,
		logger:         logger,
		now:            time.Now,
	}
}

// CheckoutRequest contains the data needed to check a book out to a member.
type CheckoutRequest struct {
	BookID     string `json:"book_id" validate:"required"`
	BorrowerID string `json:"borrower_id" validate:"required"`

	// DueDate overrides the default loan period when set.
	DueDate *time.Time `json:"due_date,omitempty"`
}

// Checkout lends an available unit of a book to a borrower.
//
// Preconditions are checked in a fixed order so callers get stable
// error messages: the book must have an available unit, the borrower
// must exist, and the borrower must be active. The mutation then runs
// as loan insert, unit claim, counter increment; any step failing
// undoes the steps already applied.
func (s *LoanService) Checkout(ctx context.Context, req CheckoutRequest) (*domain.Loan, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	units, err := s.store.AvailableUnitsForBook(ctx, req.BookID)
	if err != nil {
		return nil, fmt.Errorf("list available units: %w", err)
	}
	if len(units) == 0 {
		return nil, domainerrors.PreconditionFailedf("no available copies of book %s", req.BookID)
	}

	borrower, err := s.store.GetBorrower(ctx, req.BorrowerID)
	if err != nil {
		return nil, err
	}
	if !borrower.CanCheckout() {
		return nil, domainerrors.PreconditionFailedf("borrower %s is not active", borrower.MemberID)
	}

	now := s.now()
	checkoutDate := domain.DateOf(now)
	dueDate := checkoutDate.AddDate(0, 0, s.loanPeriodDays)
	if req.DueDate != nil {
		dueDate = domain.DateOf(*req.DueDate)
	}
	if dueDate.Before(checkoutDate) {
		return nil, domainerrors.Validation("due date cannot be before the checkout date")
	}

	loanID, err := id.Generate("loan")
	if err != nil {
		return nil, fmt.Errorf("generate loan ID: %w", err)
	}

	// Units come back ordered by ID, so the first one is the
	// deterministic pick.
	unit := units[0]

	loan := &domain.Loan{
		ID:           loanID,
		UnitID:       unit.ID,
		BookID:       req.BookID,
		BorrowerID:   req.BorrowerID,
		Status:       domain.LoanStatusActive,
		CheckoutDate: checkoutDate,
		DueDate:      dueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Step 1: record the loan.
	if err := s.store.CreateLoan(ctx, loan); err != nil {
		return nil, domainerrors.WriteFailed("record loan", err)
	}

	// Step 2: claim the unit. The claim is conditional on the unit
	// still being available, which closes the race between two
	// concurrent checkouts of the last copy.
	if err := s.store.ClaimUnit(ctx, unit.ID, now); err != nil {
		if delErr := s.store.DeleteLoan(ctx, loan.ID); delErr != nil {
			return nil, domainerrors.RollbackFailed("claim unit failed and loan record could not be removed", err, delErr)
		}
		if domainerrors.Is(err, domainerrors.ErrPreconditionFailed) {
			// Lost the race for the last copy.
			return nil, domainerrors.PreconditionFailedf("no available copies of book %s", req.BookID)
		}
		return nil, domainerrors.WriteFailed("claim unit", err)
	}

	// Step 3: bump the borrower's loan counters.
	if err := s.store.IncrementLoanCounts(ctx, req.BorrowerID, now); err != nil {
		relErr := s.store.ReleaseUnit(ctx, unit.ID, now)
		delErr := s.store.DeleteLoan(ctx, loan.ID)
		if relErr != nil || delErr != nil {
			return nil, domainerrors.RollbackFailed("update borrower counters failed and rollback was incomplete", err, domainerrors.Join(relErr, delErr))
		}
		return nil, domainerrors.WriteFailed("update borrower counters", err)
	}

	s.logger.Info("checked out book",
		"loan_id", loan.ID,
		"book_id", req.BookID,
		"unit_id", unit.ID,
		"borrower_id", req.BorrowerID,
		"due_date", dueDate.Format(time.DateOnly),
	)

	return loan, nil
}

// Return closes an active loan: the loan is marked returned, its unit
// becomes available again, and the borrower's active loan count drops.
// Returning an already-returned loan fails; return is terminal.
func (s *LoanService) Return(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	returnDate := domain.DateOf(now)

	// Step 1: mark the loan returned. The update is conditional on the
	// loan still being active, so a concurrent double return loses here.
	if err := s.store.MarkLoanReturned(ctx, loanID, returnDate, now); err != nil {
		return nil, err
	}

	// Step 2: put the unit back in circulation.
	if err := s.store.ReleaseUnit(ctx, loan.UnitID, now); err != nil {
		if revErr := s.store.RevertLoanReturn(ctx, loanID, now); revErr != nil {
			return nil, domainerrors.RollbackFailed("release unit failed and loan could not be reverted", err, revErr)
		}
		return nil, domainerrors.WriteFailed("release unit", err)
	}

	// Step 3: drop the borrower's active loan count. Total loans is a
	// lifetime counter and stays untouched on return.
	if err := s.store.DecrementActiveLoans(ctx, loan.BorrowerID, now); err != nil {
		claimErr := s.store.ClaimUnit(ctx, loan.UnitID, now)
		revErr := s.store.RevertLoanReturn(ctx, loanID, now)
		if claimErr != nil || revErr != nil {
			return nil, domainerrors.RollbackFailed("update borrower counters failed and rollback was incomplete", err, domainerrors.Join(claimErr, revErr))
		}
		return nil, domainerrors.WriteFailed("update borrower counters", err)
	}

	loan.Status = domain.LoanStatusReturned
	loan.ReturnDate = &returnDate
	loan.UpdatedAt = now

	s.logger.Info("returned book",
		"loan_id", loan.ID,
		"unit_id", loan.UnitID,
		"borrower_id", loan.BorrowerID,
	)

	return loan, nil
}

// GetLoan retrieves a loan by ID.
func (s *LoanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.store.GetLoan(ctx, loanID)
}

// LoanFilter narrows loan listings. Status accepts the presented
// statuses (active, overdue, returned); active and overdue are derived
// from the due date at read time.
type LoanFilter struct {
	Status     domain.LoanStatus
	BorrowerID string
	BookID     string
	Search     string
}

// fetchPageSize is the store page size used when a derived-status
// filter forces loading the full active set.
const fetchPageSize = 500

// ListLoans returns loans joined with book and borrower details, with
// the presented status derived against today's date.
//
// Filtering by a stored status (returned, or no status at all) pages
// directly in the store. Filtering by active or overdue has to derive
// each row's status first, so the active set is loaded and paged in
// memory.
func (s *LoanService) ListLoans(ctx context.Context, filter LoanFilter, params store.PaginationParams) (*store.PaginatedResult[domain.LoanView], error) {
	params.Validate()
	today := s.now()

	storeFilter := store.ListLoansFilter{
		BorrowerID: filter.BorrowerID,
		BookID:     filter.BookID,
		Search:     filter.Search,
	}

	switch filter.Status {
	case "", domain.LoanStatusReturned:
		storeFilter.StoredStatus = filter.Status
		result, err := s.store.ListLoans(ctx, storeFilter, params)
		if err != nil {
			return nil, err
		}
		for i := range result.Items {
			result.Items[i].Presented = result.Items[i].PresentedStatus(today)
		}
		return result, nil

	case domain.LoanStatusActive, domain.LoanStatusOverdue:
		storeFilter.StoredStatus = domain.LoanStatusActive
		matched, err := s.collectByPresentedStatus(ctx, storeFilter, filter.Status, today)
		if err != nil {
			return nil, err
		}
		return paginateInMemory(matched, params), nil

	default:
		return nil, domainerrors.Validationf("invalid loan status %q", filter.Status)
	}
}

// collectByPresentedStatus loads every stored-active loan matching the
// filter and keeps the ones whose derived status matches want.
func (s *LoanService) collectByPresentedStatus(ctx context.Context, filter store.ListLoansFilter, want domain.LoanStatus, today time.Time) ([]domain.LoanView, error) {
	var matched []domain.LoanView
	offset := 0
	for {
		page, err := s.store.ListLoans(ctx, filter, store.PaginationParams{Limit: fetchPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for i := range page.Items {
			page.Items[i].Presented = page.Items[i].PresentedStatus(today)
			if page.Items[i].Presented == want {
				matched = append(matched, page.Items[i])
			}
		}
		if !page.HasMore {
			return matched, nil
		}
		offset += fetchPageSize
	}
}

// paginateInMemory slices an already-loaded result set.
func paginateInMemory(items []domain.LoanView, params store.PaginationParams) *store.PaginatedResult[domain.LoanView] {
	total := len(items)
	start := min(params.Offset, total)
	end := min(start+params.Limit, total)
	return &store.PaginatedResult[domain.LoanView]{
		Items:   items[start:end],
		Total:   total,
		HasMore: end < total,
	}
}

// Availability reports how many copies of a book can be checked out
// right now, along with their unit IDs.
type Availability struct {
	BookID         string        `json:"book_id"`
	AvailableUnits []domain.Unit `json:"available_units"`
	AvailableCount int           `json:"available_count"`
}

// GetAvailability returns the available units for a book, lowest unit
// ID first.
func (s *LoanService) GetAvailability(ctx context.Context, bookID string) (*Availability, error) {
	units, err := s.store.AvailableUnitsForBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list available units: %w", err)
	}
	return &Availability{
		BookID:         bookID,
		AvailableUnits: units,
		AvailableCount: len(units),
	}, nil
}
