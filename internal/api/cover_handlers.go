package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/libradesk/libradesk-server/internal/http/response"
)

// Cover routes serve raw image bytes, so they bypass huma and hang
// directly off the chi router.
func (s *Server) registerCoverRoutes() {
	s.router.Get("/api/v1/books/{id}/cover", s.handleGetCover)
	s.router.Delete("/api/v1/books/{id}/cover", s.handleDeleteCover)
}

func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserID(r.Context()); err != nil {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	bookID := chi.URLParam(r, "id")
	data, hash, err := s.services.Cover.Get(bookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	etag := `"` + hash + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if r.Method != http.MethodHead {
		if _, err := w.Write(data); err != nil {
			s.logger.Debug("cover write aborted", "book_id", bookID, "error", err)
		}
	}
}

func (s *Server) handleDeleteCover(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserID(r.Context()); err != nil {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	bookID := chi.URLParam(r, "id")
	if err := s.services.Cover.Delete(bookID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
