package trade

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deckbinder/deckbinder/internal/broadcast"
	"github.com/deckbinder/deckbinder/internal/database/models"
)

type EventKind string

const (
	EventPartnerJoined     EventKind = "partner-joined"
	EventSelectionUpdated  EventKind = "selection-updated"
	EventAcceptanceUpdated EventKind = "acceptance-updated"
	EventMessage           EventKind = "message"
	EventCompleted         EventKind = "completed"
	EventDeleted           EventKind = "deleted"
)

// Event is the payload published to the session topic.
type Event struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	SessionCode string    `json:"session_code"`
	ActorID     string    `json:"actor_id"`
	Body        string    `json:"body,omitempty"`
	At          time.Time `json:"at"`
}

// publishEvent is fire-and-forget: a broker hiccup must never fail the
// request that caused the event.
func (s *Service) publishEvent(ctx context.Context, kind EventKind, sessionCode, actorID, body string) {
	event := Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		SessionCode: sessionCode,
		ActorID:     actorID,
		Body:        body,
		At:          time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode session event", slog.Any("error", err))
		return
	}

	if err := s.broadcaster.Publish(ctx, broadcast.SessionTopic(sessionCode), payload); err != nil {
		slog.Warn("Failed to publish session event",
			slog.String("kind", string(kind)),
			slog.String("session_code", sessionCode),
			slog.Any("error", err))
	}
}

// notify writes the durable notification row and mirrors it to the user's
// broadcast topic.
func (s *Service) notify(ctx context.Context, userID string, kind models.NotificationKind, sessionCode, actorID, body string) {
	notification := &models.Notification{
		UserID:      userID,
		Kind:        kind,
		SessionCode: sessionCode,
		ActorID:     actorID,
		Body:        body,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		slog.Error("Failed to create notification",
			slog.String("user_id", userID),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
		return
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, broadcast.UserTopic(userID), payload); err != nil {
		slog.Warn("Failed to publish notification",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}
