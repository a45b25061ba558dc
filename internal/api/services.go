package api

import (
	"github.com/libradesk/libradesk-server/internal/service"
)

// Services groups the business logic services used by the API server.
// Reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth     *service.AuthService
	Book     *service.BookService
	Borrower *service.BorrowerService
	Loan     *service.LoanService
	Stats    *service.StatsService
	Search   *service.SearchService
	Cover    *service.CoverService
}
