package models

import "time"

// OutboxEvent is a party event waiting to be forwarded to Pub/Sub. Payload holds
// the serialized envelope and ID matches the envelope's event id.
type OutboxEvent struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type;not null"`
	PartyCode    string     `gorm:"column:party_code;not null"`
	Payload      string     `gorm:"column:payload;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	AttemptCount int        `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string    `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
