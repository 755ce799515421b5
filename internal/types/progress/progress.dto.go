package progress

import (
	"time"

	"achievementsAPI/internal/types/achievement"
)

// CreateRequest and UpdateRequest accept the status under "progress" (the
// stored field name) or "status".
type CreateRequest struct {
	UserID        *string `json:"userId"`
	AchievementID *string `json:"achievementId"`
	Progress      *string `json:"progress"`
	Status        *string `json:"status"`
	CurrentStep   *int    `json:"currentStep"`
}

type UpdateRequest struct {
	UserID        *string `json:"userId,omitempty"`
	AchievementID *string `json:"achievementId,omitempty"`
	Progress      *string `json:"progress,omitempty"`
	Status        *string `json:"status,omitempty"`
	CurrentStep   *int    `json:"currentStep,omitempty"`
}

func (r *CreateRequest) RequestedStatus() *string {
	if r.Progress != nil {
		return r.Progress
	}
	return r.Status
}

func (r *UpdateRequest) RequestedStatus() *string {
	if r.Progress != nil {
		return r.Progress
	}
	return r.Status
}

// View is a progress record with its achievement and reward localized.
type View struct {
	ID            string                       `json:"id"`
	UserID        string                       `json:"userId"`
	AchievementID string                       `json:"achievementId"`
	Status        Status                       `json:"progress"`
	CurrentStep   int                          `json:"currentStep"`
	CreatedAt     time.Time                    `json:"createdAt"`
	UpdatedAt     time.Time                    `json:"updatedAt"`
	Achievement   *achievement.AchievementView `json:"achievement,omitempty"`
}

func Localize(r *Record, lang string) *View {
	return &View{
		ID:            r.ID,
		UserID:        r.UserID,
		AchievementID: r.AchievementID,
		Status:        r.Status,
		CurrentStep:   r.CurrentStep,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Achievement:   achievement.LocalizeAchievement(r.Achievement, lang),
	}
}

// AchievementDetail is an achievement with the progress every user has made
// on it. The nested progress entries omit the achievement.
type AchievementDetail struct {
	*achievement.AchievementView
	Progress []*View `json:"progress"`
}

func LocalizeAchievementDetail(a *achievement.Achievement, records []*Record, lang string) *AchievementDetail {
	d := &AchievementDetail{
		AchievementView: achievement.LocalizeAchievement(a, lang),
		Progress:        make([]*View, 0, len(records)),
	}
	for _, r := range records {
		v := Localize(r, lang)
		v.Achievement = nil
		d.Progress = append(d.Progress, v)
	}
	return d
}

// Lookup is the answer for a (user, achievement) pair. A missing row is a
// normal answer with Found false, not an error.
type Lookup struct {
	Found         bool   `json:"found"`
	Status        bool   `json:"status"`
	Progress      *View  `json:"progress,omitempty"`
	Message       string `json:"message,omitempty"`
	UserID        string `json:"userId,omitempty"`
	AchievementID string `json:"achievementId,omitempty"`
}
