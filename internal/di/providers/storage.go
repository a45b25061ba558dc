package providers

import (
	"github.com/samber/do/v2"

	"github.com/libradesk/libradesk-server/internal/config"
	"github.com/libradesk/libradesk-server/internal/logger"
	"github.com/libradesk/libradesk-server/internal/media/covers"
)

// ProvideCoverStorage provides on-disk cover image storage.
func ProvideCoverStorage(i do.Injector) (*covers.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := covers.NewStorage(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}

	log.Info("Cover storage initialized", "base_path", cfg.Data.BasePath)

	return storage, nil
}

// ProvideCoverDownloader provides the cover image downloader.
func ProvideCoverDownloader(i do.Injector) (*covers.Downloader, error) {
	storage := do.MustInvoke[*covers.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)

	return covers.NewDownloader(storage, log.Logger), nil
}
