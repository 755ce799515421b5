package services

import (
	"context"
	"errors"
	"fmt"

	"achievementsAPI/internal/apperror"
	"achievementsAPI/internal/store"
	"achievementsAPI/internal/types/achievement"
	"achievementsAPI/internal/types/progress"
)

type AchievementRepository interface {
	ListAchievements(ctx context.Context) ([]*achievement.Achievement, error)
	GetAchievement(ctx context.Context, id string) (*achievement.Achievement, error)
	CreateAchievement(ctx context.Context, a *achievement.Achievement) error
	UpdateAchievement(ctx context.Context, a *achievement.Achievement) error
	DeleteAchievement(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id string) (*achievement.Category, error)
	ListProgress(ctx context.Context) ([]*progress.Record, error)
	ListProgressByAchievement(ctx context.Context, achievementID string) ([]*progress.Record, error)
}

type AchievementService struct {
	repo AchievementRepository
}

func NewAchievementService(repo AchievementRepository) *AchievementService {
	return &AchievementService{repo: repo}
}

func (s *AchievementService) List(ctx context.Context, lang string) ([]*progress.AchievementDetail, error) {
	achievements, err := s.repo.ListAchievements(ctx)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to list achievements: %w", err))
	}
	records, err := s.repo.ListProgress(ctx)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to list progress: %w", err))
	}

	byAchievement := make(map[string][]*progress.Record)
	for _, r := range records {
		byAchievement[r.AchievementID] = append(byAchievement[r.AchievementID], r)
	}

	details := make([]*progress.AchievementDetail, 0, len(achievements))
	for _, a := range achievements {
		details = append(details, progress.LocalizeAchievementDetail(a, byAchievement[a.ID], lang))
	}
	return details, nil
}

func (s *AchievementService) get(ctx context.Context, id string) (*achievement.Achievement, error) {
	a, err := s.repo.GetAchievement(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Achievement not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get achievement: %w", err))
	}
	return a, nil
}

func (s *AchievementService) Get(ctx context.Context, id, lang string) (*progress.AchievementDetail, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListProgressByAchievement(ctx, id)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to list progress: %w", err))
	}
	return progress.LocalizeAchievementDetail(a, records, lang), nil
}

func (s *AchievementService) checkCategory(ctx context.Context, id string) error {
	if !isValidID(id) {
		return apperror.Validation("Invalid categoryId format")
	}
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound("Category not found")
		}
		return apperror.Internal(fmt.Errorf("failed to get category: %w", err))
	}
	return nil
}

func validateTarget(target *int) error {
	return validateCount(target, "target")
}

func (s *AchievementService) Create(ctx context.Context, req *achievement.CreateAchievementRequest, lang string) (*achievement.AchievementView, error) {
	if !req.Title.IsSet() || !req.Description.IsSet() || req.CategoryID == nil || *req.CategoryID == "" {
		return nil, apperror.Validation("title, description and categoryId are required")
	}
	if err := s.checkCategory(ctx, *req.CategoryID); err != nil {
		return nil, err
	}
	if err := validateTarget(req.Target); err != nil {
		return nil, err
	}
	icon, err := sanitizeIcon(req.Icon)
	if err != nil {
		return nil, err
	}
	title, err := requireTranslations(req.Title, "title")
	if err != nil {
		return nil, err
	}
	description, err := requireTranslations(req.Description, "description")
	if err != nil {
		return nil, err
	}

	a := &achievement.Achievement{
		Title:       title,
		Description: description,
		Icon:        icon,
		CategoryID:  *req.CategoryID,
	}
	if req.Hidden != nil {
		a.Hidden = *req.Hidden
	}
	if req.Target != nil {
		a.Target = *req.Target
	}

	if err := s.repo.CreateAchievement(ctx, a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Category not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to create achievement: %w", err))
	}

	created, err := s.get(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return achievement.LocalizeAchievement(created, lang), nil
}

func (s *AchievementService) Update(ctx context.Context, id string, req *achievement.UpdateAchievementRequest, lang string) (*achievement.AchievementView, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil && *req.CategoryID != a.CategoryID {
		if err := s.checkCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		a.CategoryID = *req.CategoryID
	}
	if err := validateTarget(req.Target); err != nil {
		return nil, err
	}
	if req.Target != nil {
		a.Target = *req.Target
	}
	if req.Icon != nil {
		if a.Icon, err = sanitizeIcon(req.Icon); err != nil {
			return nil, err
		}
	}
	if req.Hidden != nil {
		a.Hidden = *req.Hidden
	}
	if req.Title.IsSet() {
		if a.Title, err = requireTranslations(req.Title, "title"); err != nil {
			return nil, err
		}
	}
	if req.Description.IsSet() {
		if a.Description, err = requireTranslations(req.Description, "description"); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateAchievement(ctx, a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Achievement not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to update achievement: %w", err))
	}

	updated, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return achievement.LocalizeAchievement(updated, lang), nil
}

func (s *AchievementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteAchievement(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound("Achievement not found")
		}
		return apperror.Internal(fmt.Errorf("failed to delete achievement: %w", err))
	}
	return nil
}
