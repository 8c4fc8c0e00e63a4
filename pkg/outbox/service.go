package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/forkcast-backend/pkg/db/models"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
	"github.com/angelmondragon/forkcast-backend/pkg/pubsub"
)

type eventWriter interface {
	Insert(ctx context.Context, event models.OutboxEvent) error
}

// Service queues party events for cmd/outbox-publisher. It satisfies the same
// Publish contract as pubsub.EventPublisher, returning the event id.
type Service struct {
	repo eventWriter
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo eventWriter, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

func (s *Service) Publish(ctx context.Context, eventType, partyCode string, data any) (string, error) {
	if s == nil || s.repo == nil {
		return "", errors.New("outbox not configured")
	}
	env, err := pubsub.NewEnvelope(eventType, data, s.now())
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	row := models.OutboxEvent{
		ID:        env.EventID,
		EventType: eventType,
		PartyCode: partyCode,
		Payload:   string(payload),
		CreatedAt: env.OccurredAt,
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return "", fmt.Errorf("queue %s: %w", eventType, err)
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":   env.EventID,
			"event_type": eventType,
			"party_code": partyCode,
		}), "outbox.event_queued")
	}
	return env.EventID, nil
}

// DecodeEnvelope parses a stored payload back into the envelope that gets published.
func DecodeEnvelope(event models.OutboxEvent) (pubsub.Envelope, error) {
	var env pubsub.Envelope
	if err := json.Unmarshal([]byte(event.Payload), &env); err != nil {
		return pubsub.Envelope{}, fmt.Errorf("decode outbox event %s: %w", event.ID, err)
	}
	if env.EventID == "" || env.EventType == "" {
		return pubsub.Envelope{}, fmt.Errorf("outbox event %s has an incomplete envelope", event.ID)
	}
	return env, nil
}
