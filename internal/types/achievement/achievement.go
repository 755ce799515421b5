package achievement

import (
	"strings"
	"time"

	"achievementsAPI/internal/translation"
)

type RewardType string

const (
	RewardBadge              RewardType = "badge"
	RewardBonusCrypto        RewardType = "bonus_crypto"
	RewardDiscountCommission RewardType = "discount_commission"
	RewardCatAccessories     RewardType = "cat_accessories"
	RewardVisualEffects      RewardType = "visual_effects"
)

var RewardTypes = []RewardType{
	RewardBadge,
	RewardBonusCrypto,
	RewardDiscountCommission,
	RewardCatAccessories,
	RewardVisualEffects,
}

func ParseRewardType(s string) (RewardType, bool) {
	for _, t := range RewardTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

func RewardTypeList() string {
	names := make([]string, len(RewardTypes))
	for i, t := range RewardTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

type Category struct {
	ID           string                   `json:"id" db:"id"`
	Key          string                   `json:"key" db:"key"`
	Name         translation.Translations `json:"name" db:"name"`
	CreatedAt    time.Time                `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time                `json:"updatedAt" db:"updated_at"`
	Achievements []*Achievement           `json:"achievements,omitempty"`
}

// Achievement is unlocked once a user's step count reaches Target. A zero
// target means the achievement completes without step counting.
type Achievement struct {
	ID          string                   `json:"id" db:"id"`
	Title       translation.Translations `json:"title" db:"title"`
	Description translation.Translations `json:"description" db:"description"`
	Icon        *string                  `json:"icon" db:"icon"`
	Hidden      bool                     `json:"hidden" db:"hidden"`
	Target      int                      `json:"target" db:"target"`
	CategoryID  string                   `json:"categoryId" db:"category_id"`
	CreatedAt   time.Time                `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time                `json:"updatedAt" db:"updated_at"`
	Category    *Category                `json:"category,omitempty"`
	Reward      *Reward                  `json:"reward,omitempty"`
}

type Reward struct {
	ID            string                   `json:"id" db:"id"`
	Type          RewardType               `json:"type" db:"type"`
	Title         translation.Translations `json:"title" db:"title"`
	Description   translation.Translations `json:"description" db:"description"`
	Icon          *string                  `json:"icon" db:"icon"`
	IsApplicable  bool                     `json:"isApplicable" db:"is_applicable"`
	Details       map[string]any           `json:"details" db:"details"`
	AchievementID string                   `json:"achievementId" db:"achievement_id"`
	CreatedAt     time.Time                `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time                `json:"updatedAt" db:"updated_at"`
	Achievement   *Achievement             `json:"achievement,omitempty"`
}
