package achievement

import (
	"encoding/json"
	"time"

	"achievementsAPI/internal/translation"
)

type CreateCategoryRequest struct {
	Key  *string           `json:"key"`
	Name translation.Input `json:"name"`
}

type UpdateCategoryRequest struct {
	Key  *string           `json:"key,omitempty"`
	Name translation.Input `json:"name"`
}

type CreateAchievementRequest struct {
	Title       translation.Input `json:"title"`
	Description translation.Input `json:"description"`
	Icon        *string           `json:"icon"`
	Hidden      *bool             `json:"hidden"`
	Target      *int              `json:"target"`
	CategoryID  *string           `json:"categoryId"`
}

type UpdateAchievementRequest struct {
	Title       translation.Input `json:"title"`
	Description translation.Input `json:"description"`
	Icon        *string           `json:"icon,omitempty"`
	Hidden      *bool             `json:"hidden,omitempty"`
	Target      *int              `json:"target,omitempty"`
	CategoryID  *string           `json:"categoryId,omitempty"`
}

type CreateRewardRequest struct {
	Type          *string           `json:"type"`
	Title         translation.Input `json:"title"`
	Description   translation.Input `json:"description"`
	Icon          *string           `json:"icon"`
	IsApplicable  *bool             `json:"isApplicable"`
	Details       json.RawMessage   `json:"details"`
	AchievementID *string           `json:"achievementId"`
}

type UpdateRewardRequest struct {
	Type          *string           `json:"type,omitempty"`
	Title         translation.Input `json:"title"`
	Description   translation.Input `json:"description"`
	Icon          *string           `json:"icon,omitempty"`
	IsApplicable  *bool             `json:"isApplicable,omitempty"`
	Details       json.RawMessage   `json:"details,omitempty"`
	AchievementID *string           `json:"achievementId,omitempty"`
}

// Response shapes. Text fields are either one string or the full map,
// depending on whether the caller asked for a language.

type CategoryView struct {
	ID           string             `json:"id"`
	Key          string             `json:"key"`
	Name         translation.Text   `json:"name"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Achievements []*AchievementView `json:"achievements"`
}

type CategorySummary struct {
	ID        string           `json:"id"`
	Key       string           `json:"key"`
	Name      translation.Text `json:"name"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type AchievementView struct {
	ID          string           `json:"id"`
	Title       translation.Text `json:"title"`
	Description translation.Text `json:"description"`
	Icon        *string          `json:"icon"`
	Hidden      bool             `json:"hidden"`
	Target      int              `json:"target"`
	CategoryID  string           `json:"categoryId"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Category    *CategorySummary `json:"category,omitempty"`
	Reward      *RewardView      `json:"reward"`
}

type RewardView struct {
	ID            string           `json:"id"`
	Type          RewardType       `json:"type"`
	Title         translation.Text `json:"title"`
	Description   translation.Text `json:"description"`
	Icon          *string          `json:"icon"`
	IsApplicable  bool             `json:"isApplicable"`
	Details       map[string]any   `json:"details"`
	AchievementID string           `json:"achievementId"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	Achievement   *AchievementView `json:"achievement,omitempty"`
}

func LocalizeReward(r *Reward, lang string) *RewardView {
	if r == nil {
		return nil
	}
	details := r.Details
	if details == nil {
		details = map[string]any{}
	}
	v := &RewardView{
		ID:            r.ID,
		Type:          r.Type,
		Title:         translation.Localize(r.Title, lang),
		Description:   translation.Localize(r.Description, lang),
		Icon:          r.Icon,
		IsApplicable:  r.IsApplicable,
		Details:       details,
		AchievementID: r.AchievementID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Achievement != nil {
		v.Achievement = LocalizeAchievement(r.Achievement, lang)
	}
	return v
}

// LocalizeAchievement includes the reward and, when loaded, the category (without
// its achievement list).
func LocalizeAchievement(a *Achievement, lang string) *AchievementView {
	if a == nil {
		return nil
	}
	v := &AchievementView{
		ID:          a.ID,
		Title:       translation.Localize(a.Title, lang),
		Description: translation.Localize(a.Description, lang),
		Icon:        a.Icon,
		Hidden:      a.Hidden,
		Target:      a.Target,
		CategoryID:  a.CategoryID,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		Reward:      LocalizeReward(a.Reward, lang),
	}
	if a.Category != nil {
		v.Category = &CategorySummary{
			ID:        a.Category.ID,
			Key:       a.Category.Key,
			Name:      translation.Localize(a.Category.Name, lang),
			CreatedAt: a.Category.CreatedAt,
			UpdatedAt: a.Category.UpdatedAt,
		}
	}
	return v
}

func LocalizeCategory(c *Category, lang string) *CategoryView {
	v := &CategoryView{
		ID:           c.ID,
		Key:          c.Key,
		Name:         translation.Localize(c.Name, lang),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Achievements: make([]*AchievementView, 0, len(c.Achievements)),
	}
	for _, a := range c.Achievements {
		v.Achievements = append(v.Achievements, LocalizeAchievement(a, lang))
	}
	return v
}
