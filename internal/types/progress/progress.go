package progress

import (
	"strings"
	"time"

	"achievementsAPI/internal/types/achievement"
)

type Status string

const (
	StatusInProgress Status = "INPROGRESS"
	StatusBlocked    Status = "BLOCKED"
	StatusFinished   Status = "FINISHED"
)

var Statuses = []Status{StatusInProgress, StatusBlocked, StatusFinished}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func StatusList() string {
	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

// Record is one user's progress toward one achievement. The pair
// (UserID, AchievementID) is unique.
type Record struct {
	ID            string                   `json:"id" db:"id"`
	UserID        string                   `json:"userId" db:"user_id"`
	AchievementID string                   `json:"achievementId" db:"achievement_id"`
	Status        Status                   `json:"progress" db:"progress"`
	CurrentStep   int                      `json:"currentStep" db:"current_step"`
	CreatedAt     time.Time                `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time                `json:"updatedAt" db:"updated_at"`
	Achievement   *achievement.Achievement `json:"achievement,omitempty"`
}
