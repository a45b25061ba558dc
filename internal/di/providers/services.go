package providers

import (
	"github.com/samber/do/v2"

	"github.com/libradesk/libradesk-server/internal/auth"
	"github.com/libradesk/libradesk-server/internal/config"
	"github.com/libradesk/libradesk-server/internal/logger"
	"github.com/libradesk/libradesk-server/internal/media/covers"
	"github.com/libradesk/libradesk-server/internal/service"
)

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideCoverService provides the cover image service.
func ProvideCoverService(i do.Injector) (*service.CoverService, error) {
	storage := do.MustInvoke[*covers.Storage](i)
	downloader := do.MustInvoke[*covers.Downloader](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCoverService(storage, downloader, storeHandle.Store, log.Logger), nil
}

// ProvideBookService provides the catalog service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	coverService := do.MustInvoke[*service.CoverService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(storeHandle.Store, indexHandle.Index, coverService, log.Logger), nil
}

// ProvideBorrowerService provides the member registry service.
func ProvideBorrowerService(i do.Injector) (*service.BorrowerService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBorrowerService(storeHandle.Store, indexHandle.Index, log.Logger), nil
}

// ProvideLoanService provides the circulation service.
func ProvideLoanService(i do.Injector) (*service.LoanService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLoanService(storeHandle.Store, cfg.Checkout.LoanPeriodDays, log.Logger), nil
}

// ProvideStatsService provides the dashboard stats service.
func ProvideStatsService(i do.Injector) (*service.StatsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStatsService(storeHandle.Store, log.Logger), nil
}
