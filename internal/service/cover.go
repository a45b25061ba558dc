package service

import (
	"context"
	"log/slog"
	"time"

	domainerrors "github.com/libradesk/libradesk-server/internal/errors"
	"github.com/libradesk/libradesk-server/internal/media/covers"
	"github.com/libradesk/libradesk-server/internal/store"
)

// CoverService manages cover images for catalog titles.
type CoverService struct {
	storage    *covers.Storage
	downloader *covers.Downloader
	store      *store.Store
	logger     *slog.Logger
}

// NewCoverService creates a new cover service.
func NewCoverService(storage *covers.Storage, downloader *covers.Downloader, st *store.Store, logger *slog.Logger) *CoverService {
	return &CoverService{
		storage:    storage,
		downloader: downloader,
		store:      st,
		logger:     logger,
	}
}

// Get returns the cover bytes for a title along with a content hash
// usable as an ETag.
func (s *CoverService) Get(bookID string) ([]byte, string, error) {
	if !s.storage.Exists(bookID) {
		return nil, "", domainerrors.NotFoundf("no cover stored for book %s", bookID)
	}
	data, err := s.storage.Get(bookID)
	if err != nil {
		return nil, "", err
	}
	hash, err := s.storage.Hash(bookID)
	if err != nil {
		return nil, "", err
	}
	return data, hash, nil
}

// Exists reports whether a cover is stored for the title.
func (s *CoverService) Exists(bookID string) bool {
	return s.storage.Exists(bookID)
}

// Delete removes a stored cover. Missing covers are not an error.
func (s *CoverService) Delete(bookID string) error {
	return s.storage.Delete(bookID)
}

// DownloadForBook fetches a cover from a catalog URL, stores it, and
// records the computed blurhash on the title. Failures are logged and
// swallowed; a missing cover never breaks catalog operations.
func (s *CoverService) DownloadForBook(ctx context.Context, bookID, url string) {
	result := s.downloader.Download(ctx, bookID, url)
	if !result.Success {
		s.logger.Warn("cover download failed",
			"book_id", bookID,
			"url", url,
			"error", result.Error,
		)
		return
	}

	if result.BlurHash == "" {
		return
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		// Book deleted while the download was in flight.
		s.logger.Warn("cover downloaded for missing book", "book_id", bookID, "error", err)
		return
	}
	if book.CoverBlurhash == result.BlurHash {
		return
	}

	book.CoverBlurhash = result.BlurHash
	book.UpdatedAt = time.Now()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		s.logger.Warn("failed to record cover blurhash", "book_id", bookID, "error", err)
	}
}
