package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/libradesk/libradesk-server/internal/domain"
)

// StatsOutput wraps dashboard counts for huma.
type StatsOutput struct {
	Body domain.Stats
}

func (s *Server) registerStatsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Library stats",
		Description: "Returns dashboard counts. The overdue count is derived from due dates, never stored.",
		Security:    []map[string][]string{{"bearer": {}}},
		Tags:        []string{"Stats"},
	}, s.handleGetStats)
}

func (s *Server) handleGetStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	stats, err := s.services.Stats.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsOutput{Body: *stats}, nil
}
