package models

import (
	"time"

	"github.com/angelmondragon/forkcast-backend/pkg/enums"
)

// Party is a group outing keyed by its shareable code.
type Party struct {
	Code      string            `gorm:"column:code;primaryKey"`
	HostName  string            `gorm:"column:host_name;not null"`
	Status    enums.PartyStatus `gorm:"column:status;not null;default:created"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Party) TableName() string { return "parties" }

// PartyGuest holds one guest's raw preference document.
type PartyGuest struct {
	PartyCode   string            `gorm:"column:party_code;primaryKey"`
	GuestID     string            `gorm:"column:guest_id;primaryKey"`
	Preferences string            `gorm:"column:preferences;not null"`
	Status      enums.GuestStatus `gorm:"column:status;not null;default:submitted"`
	UploadedAt  time.Time         `gorm:"column:uploaded_at;not null"`
}

func (PartyGuest) TableName() string { return "party_guests" }

// PartyCombinedPreferences is the latest combined envelope of a party.
type PartyCombinedPreferences struct {
	PartyCode           string    `gorm:"column:party_code;primaryKey"`
	Document            string    `gorm:"column:document;not null"`
	Status              string    `gorm:"column:status;not null"`
	IterationCount      int       `gorm:"column:iteration_count;not null"`
	GuestCount          int       `gorm:"column:guest_count;not null"`
	HostInputIntegrated bool      `gorm:"column:host_input_integrated;not null"`
	UpdatedAt           time.Time `gorm:"column:updated_at;not null"`
}

func (PartyCombinedPreferences) TableName() string { return "party_combined_preferences" }

// PartyResult is one uploaded recommendations document; the newest row is current.
type PartyResult struct {
	ID                   string    `gorm:"column:id;primaryKey"`
	PartyCode            string    `gorm:"column:party_code;not null;index:idx_party_results_party_created"`
	Document             string    `gorm:"column:document;not null"`
	TotalRecommendations int       `gorm:"column:total_recommendations;not null"`
	ConfidenceLevel      string    `gorm:"column:confidence_level;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;not null;index:idx_party_results_party_created"`
}

func (PartyResult) TableName() string { return "party_results" }
