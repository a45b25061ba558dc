package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/libradesk/libradesk-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search",
		Description: "Full-text search across books and borrowers with fuzzy matching.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "rebuild-search-index",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/rebuild",
		Summary:     "Rebuild search index",
		Description: "Drops and reindexes every book and borrower. Root only.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Search"},
	}, s.handleRebuildIndex)
}

// === DTOs ===

// SearchInput holds query parameters for full-text search.
type SearchInput struct {
	Query     string `query:"q" doc:"Search query"`
	Types     string `query:"types" doc:"Comma-separated document types (book, borrower)"`
	Genre     string `query:"genre" doc:"Filter books by genre"`
	MinYear   int    `query:"min_year" doc:"Minimum published year"`
	MaxYear   int    `query:"max_year" doc:"Maximum published year"`
	Limit     int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum hits"`
	Offset    int    `query:"offset" default:"0" minimum:"0" doc:"Hits to skip"`
	SortBy    string `query:"sort_by" enum:"relevance,name,recent" default:"relevance" doc:"Sort field"`
	SortOrder string `query:"sort_order" enum:"asc,desc" default:"desc" doc:"Sort direction"`
	Highlight bool   `query:"highlight" doc:"Include match highlights"`
}

// SearchOutput wraps search results for huma.
type SearchOutput struct {
	Body search.Result
}

// RebuildOutput wraps the rebuild result for huma.
type RebuildOutput struct {
	Body struct {
		Indexed int `json:"indexed" doc:"Number of documents indexed"`
	}
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	params := search.DefaultParams()
	params.Query = input.Query
	params.Genre = input.Genre
	params.MinYear = input.MinYear
	params.MaxYear = input.MaxYear
	params.Limit = input.Limit
	params.Offset = input.Offset
	params.SortBy = input.SortBy
	params.SortOrder = input.SortOrder
	params.Highlight = input.Highlight
	if input.Types != "" {
		for _, t := range strings.Split(input.Types, ",") {
			params.Types = append(params.Types, strings.TrimSpace(t))
		}
	}

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: *result}, nil
}

func (s *Server) handleRebuildIndex(ctx context.Context, _ *struct{}) (*RebuildOutput, error) {
	if _, err := s.RequireRoot(ctx); err != nil {
		return nil, err
	}

	indexed, err := s.services.Search.Rebuild(ctx)
	if err != nil {
		return nil, err
	}

	out := &RebuildOutput{}
	out.Body.Indexed = indexed
	return out, nil
}
