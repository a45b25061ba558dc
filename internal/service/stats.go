package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/store"
)

// StatsService produces dashboard counts.
type StatsService struct {
	store  *store.Store
	logger *slog.Logger

	now func() time.Time
}

// NewStatsService creates a new stats service.
func NewStatsService(st *store.Store, logger *slog.Logger) *StatsService {
	return &StatsService{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// GetStats returns current library counts. The overdue count is derived
// from due dates against today, same as loan listings; it is never
// stored.
func (s *StatsService) GetStats(ctx context.Context) (*domain.Stats, error) {
	counts, err := s.store.GetCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get counts: %w", err)
	}

	dueDates, err := s.store.ActiveLoanDueDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list due dates: %w", err)
	}

	today := s.now()
	overdue := 0
	for _, due := range dueDates {
		if domain.OverdueOn(due, today) {
			overdue++
		}
	}

	return &domain.Stats{
		TotalBooks:       counts.TotalBooks,
		TotalUnits:       counts.TotalUnits,
		AvailableUnits:   counts.AvailableUnits,
		LoanedUnits:      counts.LoanedUnits,
		MaintenanceUnits: counts.MaintenanceUnits,
		TotalBorrowers:   counts.TotalBorrowers,
		ActiveBorrowers:  counts.ActiveBorrowers,
		ActiveLoans:      counts.ActiveLoans,
		OverdueLoans:     overdue,
		OutstandingFines: counts.OutstandingFines,
	}, nil
}
