// Package store persists categories, achievements, rewards and progress
// records. Two drivers share one contract: Postgres for production and an
// in-memory map store for development and tests.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"achievementsAPI/internal/stats"
	"achievementsAPI/internal/types/achievement"
	"achievementsAPI/internal/types/progress"
)

var (
	// ErrNotFound is returned when a row or a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Store is the full persistence surface. Services depend on the narrower
// interfaces they declare themselves.
type Store interface {
	ListCategories(ctx context.Context) ([]*achievement.Category, error)
	GetCategory(ctx context.Context, id string) (*achievement.Category, error)
	CreateCategory(ctx context.Context, c *achievement.Category) error
	UpdateCategory(ctx context.Context, c *achievement.Category) error
	DeleteCategory(ctx context.Context, id string) error

	ListAchievements(ctx context.Context) ([]*achievement.Achievement, error)
	GetAchievement(ctx context.Context, id string) (*achievement.Achievement, error)
	CreateAchievement(ctx context.Context, a *achievement.Achievement) error
	UpdateAchievement(ctx context.Context, a *achievement.Achievement) error
	DeleteAchievement(ctx context.Context, id string) error

	ListRewards(ctx context.Context) ([]*achievement.Reward, error)
	GetReward(ctx context.Context, id string) (*achievement.Reward, error)
	GetRewardByAchievement(ctx context.Context, achievementID string) (*achievement.Reward, error)
	CreateReward(ctx context.Context, r *achievement.Reward) error
	UpdateReward(ctx context.Context, r *achievement.Reward) error
	DeleteReward(ctx context.Context, id string) error

	ListProgress(ctx context.Context) ([]*progress.Record, error)
	ListProgressByUser(ctx context.Context, userID string) ([]*progress.Record, error)
	ListProgressByAchievement(ctx context.Context, achievementID string) ([]*progress.Record, error)
	GetProgress(ctx context.Context, id string) (*progress.Record, error)
	FindProgress(ctx context.Context, userID, achievementID string) (*progress.Record, error)
	CreateProgress(ctx context.Context, p *progress.Record) error
	UpdateProgress(ctx context.Context, p *progress.Record) error
	DeleteProgress(ctx context.Context, id string) error

	Stats(ctx context.Context) (*stats.Stats, error)
	Ping(ctx context.Context) error
	Close()
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)

func newID() string {
	return uuid.New().String()
}
