package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/libradesk/libradesk-server/internal/config"
	"github.com/libradesk/libradesk-server/internal/logger"
	"github.com/libradesk/libradesk-server/internal/search"
	"github.com/libradesk/libradesk-server/internal/service"
)

// SearchIndexHandle wraps the bleve index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the full-text search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	idx, err := search.NewIndex(search.Options{
		DataPath: cfg.Data.BasePath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &SearchIndexHandle{Index: idx}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(storeHandle.Store, indexHandle.Index, log.Logger), nil
}

// TriggerSearchReindexIfNeeded reindexes the catalog in the background
// when the index is empty but the store is not. This happens after a
// mapping version bump wipes the index, or on a restored backup.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx := context.Background()

	docCount, err := indexHandle.DocumentCount()
	if err != nil {
		log.Warn("Failed to read search index document count", "error", err)
		return
	}
	if docCount > 0 {
		return
	}

	counts, err := storeHandle.GetCounts(ctx)
	if err != nil {
		log.Warn("Failed to read store counts for reindex check", "error", err)
		return
	}
	if counts.TotalBooks == 0 && counts.TotalBorrowers == 0 {
		return
	}

	log.Info("Search index is empty but catalog is not, reindexing",
		"books", counts.TotalBooks,
		"borrowers", counts.TotalBorrowers,
	)

	go func() {
		indexed, err := searchService.Rebuild(ctx)
		if err != nil {
			log.Error("Background search reindex failed", "error", err)
			return
		}
		log.Info("Background search reindex completed", "documents", indexed)
	}()
}
