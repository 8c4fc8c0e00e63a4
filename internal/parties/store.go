package parties

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/forkcast-backend/pkg/enums"
)

var (
	ErrPartyNotFound = errors.New("party not found")
	ErrPartyExists   = errors.New("party code already in use")
	ErrNoCombined    = errors.New("party has no combined preferences yet")
	ErrNoResults     = errors.New("party has no results yet")
)

// Party is the storage-neutral party row.
type Party struct {
	Code      string
	HostName  string
	Status    enums.PartyStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GuestSubmission is one guest's stored preference document.
type GuestSubmission struct {
	PartyCode   string
	GuestID     string
	Preferences json.RawMessage
	Status      enums.GuestStatus
	UploadedAt  time.Time
}

// CombinedRecord is a persisted combined-preferences envelope.
type CombinedRecord struct {
	PartyCode           string
	Document            json.RawMessage
	Status              string
	IterationCount      int
	GuestCount          int
	HostInputIntegrated bool
	UpdatedAt           time.Time
}

// ResultsRecord is an uploaded final results document.
type ResultsRecord struct {
	ID                   string
	PartyCode            string
	Document             json.RawMessage
	TotalRecommendations int
	ConfidenceLevel      string
	CreatedAt            time.Time
}

// Store persists parties and their documents. Implementations translate their
// native not-found and duplicate conditions into the sentinel errors above.
type Store interface {
	CreateParty(ctx context.Context, party Party) error
	GetParty(ctx context.Context, code string) (*Party, error)
	UpdatePartyStatus(ctx context.Context, code string, status enums.PartyStatus, at time.Time) error

	UpsertGuest(ctx context.Context, guest GuestSubmission) error
	// ListGuests returns every submission of an existing party in upload order,
	// or ErrPartyNotFound.
	ListGuests(ctx context.Context, code string) ([]GuestSubmission, error)

	SaveCombined(ctx context.Context, rec CombinedRecord) error
	LatestCombined(ctx context.Context, code string) (*CombinedRecord, error)

	SaveResults(ctx context.Context, rec ResultsRecord) error
	LatestResults(ctx context.Context, code string) (*ResultsRecord, error)

	Ping(ctx context.Context) error
}
