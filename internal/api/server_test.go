package api

import (
	"bytes"
	"encoding/json/v2"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libradesk/libradesk-server/internal/auth"
	"github.com/libradesk/libradesk-server/internal/config"
	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/media/covers"
	"github.com/libradesk/libradesk-server/internal/search"
	"github.com/libradesk/libradesk-server/internal/service"
	"github.com/libradesk/libradesk-server/internal/store"
)

// testEnvelope mirrors the versioned response envelope for decoding in tests.
type testEnvelope[T any] struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// testServer bundles a fully wired server with a humatest client.
type testServer struct {
	*Server
	api    humatest.TestAPI
	covers *covers.Storage
}

// setupTestServer creates a server backed by a temp SQLite database and
// a temp search index.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(tmpDir, "library.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := search.NewIndex(search.Options{DataPath: tmpDir, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	key, err := auth.LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(key, 15*time.Minute, 720*time.Hour)
	require.NoError(t, err)

	coverStorage, err := covers.NewStorage(tmpDir)
	require.NoError(t, err)
	downloader := covers.NewDownloader(coverStorage, logger)
	coverService := service.NewCoverService(coverStorage, downloader, st, logger)

	services := &Services{
		Auth:     service.NewAuthService(st, tokens, logger),
		Book:     service.NewBookService(st, idx, coverService, logger),
		Borrower: service.NewBorrowerService(st, idx, logger),
		Loan:     service.NewLoanService(st, 14, logger),
		Stats:    service.NewStatsService(st, logger),
		Search:   service.NewSearchService(st, idx, logger),
		Cover:    coverService,
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Name:        "LibraDesk Test",
			CORSOrigins: []string{"*"},
		},
		Auth: config.AuthConfig{
			AccessTokenKey:       key,
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 720 * time.Hour,
		},
		Checkout: config.CheckoutConfig{LoanPeriodDays: 14},
	}

	srv := NewServer(cfg, st, services, logger)
	t.Cleanup(srv.Shutdown)

	return &testServer{
		Server: srv,
		api:    humatest.Wrap(t, srv.api),
		covers: coverStorage,
	}
}

// setupRoot completes first-run setup and returns the root credentials.
func (ts *testServer) setupRoot(t *testing.T) AuthResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/setup", map[string]any{
		"email":        "admin@library.test",
		"password":     "correct-horse-battery",
		"display_name": "Head Librarian",
	})
	require.Equal(t, http.StatusOK, resp.Code, "setup failed: %s", resp.Body.String())

	var envelope testEnvelope[AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

// createBook registers a title through the API and returns it.
func (ts *testServer) createBook(t *testing.T, token, title string, units int) domain.Book {
	t.Helper()

	resp := ts.api.Post("/api/v1/books", bearer(token), map[string]any{
		"title":         title,
		"author":        "Test Author",
		"initial_units": units,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var envelope testEnvelope[domain.Book]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

// createBorrower registers a member through the API and returns them.
func (ts *testServer) createBorrower(t *testing.T, token, name, memberID string) domain.Borrower {
	t.Helper()

	resp := ts.api.Post("/api/v1/borrowers", bearer(token), map[string]any{
		"name":      name,
		"email":     memberID + "@members.test",
		"member_id": memberID,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var envelope testEnvelope[domain.Borrower]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[HealthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.Equal(t, EnvelopeVersion, envelope.V)
	assert.True(t, envelope.Success)
	assert.Equal(t, "healthy", envelope.Data.Status)
}

func TestServer_UnknownRoute(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_AuthRequired(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)

	paths := []string{
		"/api/v1/books",
		"/api/v1/borrowers",
		"/api/v1/loans",
		"/api/v1/stats",
		"/api/v1/search?q=test",
	}

	for _, path := range paths {
		resp := ts.api.Get(path)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, "expected 401 for %s", path)
	}
}

func TestStats_CirculationCounts(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	book := ts.createBook(t, token, "The Stand", 2)
	borrower := ts.createBorrower(t, token, "Frannie Goldsmith", "M-1001")

	resp := ts.api.Post("/api/v1/loans", bearer(token), map[string]any{
		"book_id":     book.ID,
		"borrower_id": borrower.ID,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/stats", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[domain.Stats]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.Equal(t, 1, envelope.Data.TotalBooks)
	assert.Equal(t, 2, envelope.Data.TotalUnits)
	assert.Equal(t, 1, envelope.Data.AvailableUnits)
	assert.Equal(t, 1, envelope.Data.LoanedUnits)
	assert.Equal(t, 1, envelope.Data.TotalBorrowers)
	assert.Equal(t, 1, envelope.Data.ActiveBorrowers)
	assert.Equal(t, 1, envelope.Data.ActiveLoans)
	assert.Equal(t, 0, envelope.Data.OverdueLoans)
}

func TestSearch_FindsIndexedBook(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	ts.createBook(t, token, "The Left Hand of Darkness", 1)
	ts.createBorrower(t, token, "Genly Ai", "M-2001")

	resp := ts.api.Get("/api/v1/search?q=darkness", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[search.Result]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	require.NotEmpty(t, envelope.Data.Hits)
	assert.Equal(t, "The Left Hand of Darkness", envelope.Data.Hits[0].Name)
}

func TestSearchRebuild_RequiresRoot(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	ts.createBook(t, token, "Hyperion", 1)
	ts.createBorrower(t, token, "Sol Weintraub", "M-3001")

	resp := ts.api.Post("/api/v1/search/rebuild", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[struct {
		Indexed int `json:"indexed"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.Indexed)

	// Unauthenticated rebuild is rejected.
	resp = ts.api.Post("/api/v1/search/rebuild")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

// Cover endpoint tests exercise the raw chi routes.

func TestGetCover_Success(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)

	bookID := "book-cover-test"
	testCover := createTestJPEG(t, 400, 600)
	require.NoError(t, ts.covers.Save(bookID, testCover))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books/"+bookID+"/cover", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, testCover, w.Body.Bytes())

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.True(t, etag[0] == '"' && etag[len(etag)-1] == '"', "ETag should be quoted")
}

func TestGetCover_NotModified(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)

	bookID := "book-cache-test"
	require.NoError(t, ts.covers.Save(bookID, createTestJPEG(t, 200, 300)))

	req1 := httptest.NewRequest(http.MethodGet, "/api/v1/books/"+bookID+"/cover", http.NoBody)
	req1.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	w1 := httptest.NewRecorder()
	ts.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusOK, w1.Code)

	etag := w1.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/books/"+bookID+"/cover", http.NoBody)
	req2.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req2.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	ts.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusNotModified, w2.Code)
	assert.Empty(t, w2.Body.Bytes(), "304 response should have no body")
}

func TestGetCover_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books/no-such-book/cover", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCover_Unauthenticated(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books/book-1/cover", http.NoBody)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteCover(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)

	bookID := "book-delete-cover"
	require.NoError(t, ts.covers.Save(bookID, createTestJPEG(t, 100, 150)))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/books/"+bookID+"/cover", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, ts.covers.Exists(bookID))
}

// createTestJPEG encodes a gradient image for cover tests.
func createTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}
