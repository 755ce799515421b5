package notification

import (
	"fmt"
)

type NotificationType string

const (
	NotificationAchievementFinished NotificationType = "achievement_finished"
)

// Message is one push notification addressed to an FCM topic.
type Message struct {
	Type  NotificationType `json:"type"`
	Topic string           `json:"topic"`
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  map[string]any   `json:"data"`
}

// UserTopic is the topic a user's devices subscribe to.
func UserTopic(userID string) string {
	return "user-" + userID
}

// AchievementFinished builds the message sent when a user completes an
// achievement. title is the achievement title in the default language.
func AchievementFinished(userID, achievementID, progressID, title string) *Message {
	body := "You completed an achievement"
	if title != "" {
		body = fmt.Sprintf("You completed \"%s\"", title)
	}
	return &Message{
		Type:  NotificationAchievementFinished,
		Topic: UserTopic(userID),
		Title: "Achievement unlocked",
		Body:  body,
		Data: map[string]any{
			"type":          string(NotificationAchievementFinished),
			"userId":        userID,
			"achievementId": achievementID,
			"progressId":    progressID,
		},
	}
}
