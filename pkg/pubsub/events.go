package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const (
	envelopeVersion       = 1
	defaultPublishTimeout = 5 * time.Second

	EventPreferencesAggregated = "party.preferences_aggregated"
	EventResultsReady          = "party.results_ready"
	AggregateParty             = "party"
)

// Envelope is the stable message body published for party events.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// EventPublisher publishes party lifecycle events to one topic.
type EventPublisher struct {
	pub     publisher
	timeout time.Duration
	now     func() time.Time
}

// NewEventPublisher wraps a Pub/Sub publisher handle.
func NewEventPublisher(p *gcppubsub.Publisher, timeout time.Duration) (*EventPublisher, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return newEventPublisher(&gcpPublisher{Publisher: p}, timeout), nil
}

func newEventPublisher(p publisher, timeout time.Duration) *EventPublisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &EventPublisher{pub: p, timeout: timeout, now: time.Now}
}

// NewEnvelope wraps data for eventType with a fresh event id.
func NewEnvelope(eventType string, data any, occurredAt time.Time) (Envelope, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       body,
	}, nil
}

// Publish wraps data in an Envelope and blocks until the server acknowledges it.
// It returns the server-assigned message id.
func (p *EventPublisher) Publish(ctx context.Context, eventType, partyCode string, data any) (string, error) {
	if p == nil || p.pub == nil {
		return "", errors.New("event publisher not configured")
	}
	env, err := NewEnvelope(eventType, data, p.now())
	if err != nil {
		return "", err
	}
	return p.PublishEnvelope(ctx, env, partyCode)
}

// PublishEnvelope publishes an envelope built earlier, keeping its event id so
// consumers can deduplicate redeliveries.
func (p *EventPublisher) PublishEnvelope(ctx context.Context, env Envelope, partyCode string) (string, error) {
	if p == nil || p.pub == nil {
		return "", errors.New("event publisher not configured")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal %s envelope: %w", env.EventType, err)
	}

	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     env.EventType,
			"aggregate_type": AggregateParty,
			"aggregate_id":   partyCode,
			"created_at":     env.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		return "", fmt.Errorf("publisher returned nil for %s", env.EventType)
	}
	id, err := result.Get(publishCtx)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", env.EventType, err)
	}
	return id, nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
