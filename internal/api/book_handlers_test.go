package api

import (
	"encoding/json/v2"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libradesk/libradesk-server/internal/domain"
)

func TestCreateBook_WithInitialUnits(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	book := ts.createBook(t, token, "The Dispossessed", 3)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "The Dispossessed", book.Title)

	resp := ts.api.Get("/api/v1/books/"+book.ID+"/units", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	var units testEnvelope[struct {
		Units []domain.Unit `json:"units"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &units))
	require.Len(t, units.Data.Units, 3)
	for _, u := range units.Data.Units {
		assert.Equal(t, domain.UnitStatusAvailable, u.Status)
	}
}

func TestCreateBook_ValidationErrors(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "missing title",
			body:       map[string]any{"author": "Anonymous"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "invalid isbn",
			body: map[string]any{
				"title":  "Bad ISBN",
				"author": "Anonymous",
				"isbn":   "not-an-isbn",
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/books", bearer(token), tt.body)
			assert.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}

func TestGetBook_IncludesAvailability(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	book := ts.createBook(t, token, "Availability Check", 2)

	resp := ts.api.Get("/api/v1/books/"+book.ID, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	var detail testEnvelope[domain.BookWithAvailability]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	assert.Equal(t, 2, detail.Data.TotalUnits)
	assert.Equal(t, 2, detail.Data.AvailableUnits)
}

func TestUpdateBook(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	book := ts.createBook(t, token, "Old Title", 1)

	resp := ts.api.Put("/api/v1/books/"+book.ID, bearer(token), map[string]any{
		"title":  "New Title",
		"author": "Test Author",
		"genre":  "Fiction",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var updated testEnvelope[domain.Book]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	assert.Equal(t, "New Title", updated.Data.Title)
	assert.Equal(t, "Fiction", updated.Data.Genre)
}

func TestDeleteBook_GuardedByLoans(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	book := ts.createBook(t, token, "Guarded Book", 1)
	borrower := ts.createBorrower(t, token, "Holding Member", "M-8001")

	resp := ts.api.Post("/api/v1/loans", bearer(token), map[string]any{
		"book_id":     book.ID,
		"borrower_id": borrower.ID,
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var loan testEnvelope[domain.Loan]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &loan))

	// A title with a copy out cannot be removed.
	resp = ts.api.Delete("/api/v1/books/"+book.ID, bearer(token))
	assert.Equal(t, http.StatusConflict, resp.Code)

	// After return it can.
	resp = ts.api.Post("/api/v1/loans/"+loan.Data.ID+"/return", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/books/"+book.ID, bearer(token))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/books/"+book.ID, bearer(token))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUnitMaintenance_Flow(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	book := ts.createBook(t, token, "Repairable Book", 1)

	resp := ts.api.Get("/api/v1/books/"+book.ID+"/units", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	var units testEnvelope[struct {
		Units []domain.Unit `json:"units"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &units))
	require.Len(t, units.Data.Units, 1)
	unitID := units.Data.Units[0].ID

	// Pull the unit for repair.
	resp = ts.api.Put("/api/v1/units/"+unitID+"/maintenance", bearer(token), map[string]any{
		"in_maintenance": true,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var unit testEnvelope[domain.Unit]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &unit))
	assert.Equal(t, domain.UnitStatusMaintenance, unit.Data.Status)

	// Out of circulation means not lendable.
	borrower := ts.createBorrower(t, token, "Waiting Member", "M-9001")
	resp = ts.api.Post("/api/v1/loans", bearer(token), map[string]any{
		"book_id":     book.ID,
		"borrower_id": borrower.ID,
	})
	assert.Equal(t, http.StatusConflict, resp.Code)

	// Back on the shelf.
	resp = ts.api.Put("/api/v1/units/"+unitID+"/maintenance", bearer(token), map[string]any{
		"in_maintenance": false,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &unit))
	assert.Equal(t, domain.UnitStatusAvailable, unit.Data.Status)
}

func TestRemoveUnit(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	book := ts.createBook(t, token, "Shrinking Book", 2)

	resp := ts.api.Get("/api/v1/books/"+book.ID+"/units", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	var units testEnvelope[struct {
		Units []domain.Unit `json:"units"`
	}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &units))
	require.Len(t, units.Data.Units, 2)

	resp = ts.api.Delete("/api/v1/units/"+units.Data.Units[0].ID, bearer(token))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/books/"+book.ID, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	var detail testEnvelope[domain.BookWithAvailability]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	assert.Equal(t, 1, detail.Data.TotalUnits)
}

func TestAddUnit(t *testing.T) {
	ts := setupTestServer(t)
	creds := ts.setupRoot(t)
	token := creds.AccessToken

	book := ts.createBook(t, token, "Growing Book", 1)

	resp := ts.api.Post("/api/v1/books/"+book.ID+"/units", bearer(token))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var unit testEnvelope[domain.Unit]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &unit))
	assert.Equal(t, book.ID, unit.Data.BookID)
	assert.Equal(t, domain.UnitStatusAvailable, unit.Data.Status)
}
