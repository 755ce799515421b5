package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"achievementsAPI/internal/apperror"
	"achievementsAPI/internal/store"
	"achievementsAPI/internal/types/achievement"
)

type RewardRepository interface {
	ListRewards(ctx context.Context) ([]*achievement.Reward, error)
	GetReward(ctx context.Context, id string) (*achievement.Reward, error)
	GetRewardByAchievement(ctx context.Context, achievementID string) (*achievement.Reward, error)
	CreateReward(ctx context.Context, r *achievement.Reward) error
	UpdateReward(ctx context.Context, r *achievement.Reward) error
	DeleteReward(ctx context.Context, id string) error
	GetAchievement(ctx context.Context, id string) (*achievement.Achievement, error)
}

type RewardService struct {
	repo RewardRepository
}

func NewRewardService(repo RewardRepository) *RewardService {
	return &RewardService{repo: repo}
}

func (s *RewardService) List(ctx context.Context, lang string) ([]*achievement.RewardView, error) {
	rewards, err := s.repo.ListRewards(ctx)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to list rewards: %w", err))
	}
	views := make([]*achievement.RewardView, 0, len(rewards))
	for _, r := range rewards {
		views = append(views, achievement.LocalizeReward(r, lang))
	}
	return views, nil
}

func (s *RewardService) get(ctx context.Context, id string) (*achievement.Reward, error) {
	r, err := s.repo.GetReward(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Reward not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get reward: %w", err))
	}
	return r, nil
}

func (s *RewardService) Get(ctx context.Context, id, lang string) (*achievement.RewardView, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return achievement.LocalizeReward(r, lang), nil
}

func parseRewardType(raw string) (achievement.RewardType, error) {
	t, ok := achievement.ParseRewardType(raw)
	if !ok {
		return "", apperror.Validation("Invalid reward type. Must be one of: %s", achievement.RewardTypeList()).
			With("receivedType", raw)
	}
	return t, nil
}

// parseDetails accepts a JSON object. Absent or null details yield nil.
func parseDetails(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '{' {
		return nil, apperror.Validation("details must be an object")
	}
	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, apperror.Validation("details must be an object")
	}
	return details, nil
}

// checkAchievement verifies achievementID names an achievement that has no
// reward other than exceptRewardID.
func (s *RewardService) checkAchievement(ctx context.Context, achievementID, exceptRewardID string) error {
	if !isValidID(achievementID) {
		return apperror.Validation("Invalid achievementId format")
	}
	if _, err := s.repo.GetAchievement(ctx, achievementID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound("Achievement not found")
		}
		return apperror.Internal(fmt.Errorf("failed to get achievement: %w", err))
	}

	existing, err := s.repo.GetRewardByAchievement(ctx, achievementID)
	switch {
	case err == nil && existing.ID != exceptRewardID:
		return apperror.Conflict("Achievement already has a reward")
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return apperror.Internal(fmt.Errorf("failed to check existing reward: %w", err))
	}
	return nil
}

func rewardWriteError(err error, action string) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return apperror.Conflict("Achievement already has a reward")
	case errors.Is(err, store.ErrNotFound):
		return apperror.NotFound("Achievement not found")
	}
	return apperror.Internal(fmt.Errorf("failed to %s reward: %w", action, err))
}

func (s *RewardService) Create(ctx context.Context, req *achievement.CreateRewardRequest, lang string) (*achievement.RewardView, error) {
	if req.Type == nil || *req.Type == "" || !req.Title.IsSet() || !req.Description.IsSet() ||
		req.AchievementID == nil || *req.AchievementID == "" {
		return nil, apperror.Validation("type, title, description and achievementId are required")
	}
	rewardType, err := parseRewardType(*req.Type)
	if err != nil {
		return nil, err
	}
	if err := s.checkAchievement(ctx, *req.AchievementID, ""); err != nil {
		return nil, err
	}
	icon, err := sanitizeIcon(req.Icon)
	if err != nil {
		return nil, err
	}
	details, err := parseDetails(req.Details)
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

	r := &achievement.Reward{
		Type:          rewardType,
		Title:         title,
		Description:   description,
		Icon:          icon,
		Details:       details,
		AchievementID: *req.AchievementID,
	}
	if req.IsApplicable != nil {
		r.IsApplicable = *req.IsApplicable
	}

	if err := s.repo.CreateReward(ctx, r); err != nil {
		return nil, rewardWriteError(err, "create")
	}

	created, err := s.get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return achievement.LocalizeReward(created, lang), nil
}

func (s *RewardService) Update(ctx context.Context, id string, req *achievement.UpdateRewardRequest, lang string) (*achievement.RewardView, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Type != nil {
		if r.Type, err = parseRewardType(*req.Type); err != nil {
			return nil, err
		}
	}
	if req.AchievementID != nil && *req.AchievementID != r.AchievementID {
		if err := s.checkAchievement(ctx, *req.AchievementID, r.ID); err != nil {
			return nil, err
		}
		r.AchievementID = *req.AchievementID
	}
	if req.Icon != nil {
		if r.Icon, err = sanitizeIcon(req.Icon); err != nil {
			return nil, err
		}
	}
	if req.Details != nil {
		details, err := parseDetails(req.Details)
		if err != nil {
			return nil, err
		}
		r.Details = details
	}
	if req.IsApplicable != nil {
		r.IsApplicable = *req.IsApplicable
	}
	if req.Title.IsSet() {
		if r.Title, err = requireTranslations(req.Title, "title"); err != nil {
			return nil, err
		}
	}
	if req.Description.IsSet() {
		if r.Description, err = requireTranslations(req.Description, "description"); err != nil {
			return nil, err
		}
	}

	r.Achievement = nil
	if err := s.repo.UpdateReward(ctx, r); err != nil {
		return nil, rewardWriteError(err, "update")
	}

	updated, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return achievement.LocalizeReward(updated, lang), nil
}

func (s *RewardService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteReward(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound("Reward not found")
		}
		return apperror.Internal(fmt.Errorf("failed to delete reward: %w", err))
	}
	return nil
}
