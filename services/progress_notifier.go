package services

import (
	"context"
	"encoding/json"
	"log"

	"achievementsAPI/internal/notification"
	"achievementsAPI/internal/translation"
	"achievementsAPI/internal/types/progress"
)

const (
	EventProgress = "progress"
	EventWork     = "work"
)

type EventSender interface {
	SendTo(id, event string, data []byte) bool
}

// LiveNotifier pushes the committed record to the owning user's open push
// channel, followed by a "work" ping.
type LiveNotifier struct {
	sender EventSender
}

func NewLiveNotifier(sender EventSender) *LiveNotifier {
	return &LiveNotifier{sender: sender}
}

func (n *LiveNotifier) ProgressChanged(ctx context.Context, change ProgressChange) {
	payload, err := json.Marshal(change.View)
	if err != nil {
		log.Printf("Failed to encode progress %s for live delivery: %v", change.Record.ID, err)
		return
	}

	userID := change.Record.UserID
	if !n.sender.SendTo(userID, EventProgress, payload) {
		return
	}
	log.Printf("Sent progress %s to live client %s", change.Record.ID, userID)
	n.sender.SendTo(userID, EventWork, []byte("work"))
}

type MessageDispatcher interface {
	Dispatch(msg *notification.Message) bool
}

// PushNotifier queues a mobile push when a record becomes FINISHED.
type PushNotifier struct {
	dispatcher MessageDispatcher
}

func NewPushNotifier(dispatcher MessageDispatcher) *PushNotifier {
	return &PushNotifier{dispatcher: dispatcher}
}

func (n *PushNotifier) ProgressChanged(ctx context.Context, change ProgressChange) {
	r := change.Record
	if r.Status != progress.StatusFinished {
		return
	}
	if p := change.Previous; p != nil && p.Status == progress.StatusFinished && p.AchievementID == r.AchievementID {
		return
	}

	title := ""
	if r.Achievement != nil {
		title = translation.Pick(r.Achievement.Title, translation.Default)
	}
	n.dispatcher.Dispatch(notification.AchievementFinished(r.UserID, r.AchievementID, r.ID, title))
}
