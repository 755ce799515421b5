package stats

// Stats is the dashboard summary served by /api/stats.
type Stats struct {
	Categories       int              `json:"categories"`
	Achievements     int              `json:"achievements"`
	Rewards          int              `json:"rewards"`
	Progress         int              `json:"progress"`
	ProgressStats    ProgressStats    `json:"progressStats"`
	AchievementStats AchievementStats `json:"achievementStats"`
	RewardStats      RewardStats      `json:"rewardStats"`
}

type ProgressStats struct {
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	Blocked    int `json:"blocked"`
}

type AchievementStats struct {
	Hidden  int `json:"hidden"`
	Visible int `json:"visible"`
}

type RewardStats struct {
	Applicable int `json:"applicable"`
	Total      int `json:"total"`
}
