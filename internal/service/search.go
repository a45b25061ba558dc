package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/libradesk/libradesk-server/internal/search"
	"github.com/libradesk/libradesk-server/internal/store"
)

// SearchService fronts the full-text index with catalog-aware queries
// and rebuilds.
type SearchService struct {
	store  *store.Store
	index  *search.Index
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(st *store.Store, idx *search.Index, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:  st,
		index:  idx,
		logger: logger,
	}
}

// Search runs a full-text query across books and borrowers.
func (s *SearchService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	return s.index.Search(ctx, params)
}

// Rebuild drops the index and reindexes every book and borrower from
// the store. Used at startup when the index mapping changed and as a
// manual repair operation.
func (s *SearchService) Rebuild(ctx context.Context) (int, error) {
	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}

	indexed := 0

	var docs []*search.Document
	offset := 0
	for {
		page, err := s.store.ListBooks(ctx, store.ListBooksFilter{}, store.PaginationParams{Limit: fetchPageSize, Offset: offset})
		if err != nil {
			return indexed, fmt.Errorf("list books: %w", err)
		}
		for i := range page.Items {
			docs = append(docs, search.BookDocument(&page.Items[i].Book))
		}
		if !page.HasMore {
			break
		}
		offset += fetchPageSize
	}

	offset = 0
	for {
		page, err := s.store.ListBorrowers(ctx, store.ListBorrowersFilter{}, store.PaginationParams{Limit: fetchPageSize, Offset: offset})
		if err != nil {
			return indexed, fmt.Errorf("list borrowers: %w", err)
		}
		for i := range page.Items {
			docs = append(docs, search.BorrowerDocument(&page.Items[i]))
		}
		if !page.HasMore {
			break
		}
		offset += fetchPageSize
	}

	if err := s.index.IndexDocuments(docs); err != nil {
		return indexed, fmt.Errorf("index documents: %w", err)
	}
	indexed = len(docs)

	s.logger.Info("rebuilt search index", "documents", indexed)
	return indexed, nil
}
