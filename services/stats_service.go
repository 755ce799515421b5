package services

import (
	"context"
	"fmt"

	"achievementsAPI/internal/apperror"
	"achievementsAPI/internal/stats"
)

type StatsRepository interface {
	Stats(ctx context.Context) (*stats.Stats, error)
	Ping(ctx context.Context) error
}

type StatsService struct {
	repo StatsRepository
}

func NewStatsService(repo StatsRepository) *StatsService {
	return &StatsService{repo: repo}
}

func (s *StatsService) GetStats(ctx context.Context) (*stats.Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to load stats: %w", err))
	}
	return st, nil
}

// CheckDatabase pings the backing store.
func (s *StatsService) CheckDatabase(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
