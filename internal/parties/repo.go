package parties

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/forkcast-backend/internal/repo"
	"github.com/angelmondragon/forkcast-backend/pkg/db"
	"github.com/angelmondragon/forkcast-backend/pkg/db/models"
	"github.com/angelmondragon/forkcast-backend/pkg/enums"
)

// Repository is the SQL Store, shared by the postgres and sqlite backends.
type Repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to party operations.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

var _ Store = (*Repository)(nil)

func (r *Repository) CreateParty(ctx context.Context, party Party) error {
	m := models.Party{
		Code:      party.Code,
		HostName:  party.HostName,
		Status:    party.Status,
		CreatedAt: party.CreatedAt,
		UpdatedAt: party.UpdatedAt,
	}
	if err := r.DB(ctx).Create(&m).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return ErrPartyExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetParty(ctx context.Context, code string) (*Party, error) {
	var m models.Party
	if err := r.DB(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}
	return partyFromModel(m), nil
}

func (r *Repository) UpdatePartyStatus(ctx context.Context, code string, status enums.PartyStatus, at time.Time) error {
	res := r.DB(ctx).Model(&models.Party{}).
		Where("code = ?", code).
		Updates(map[string]any{"status": status, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPartyNotFound
	}
	return nil
}

func (r *Repository) UpsertGuest(ctx context.Context, guest GuestSubmission) error {
	m := models.PartyGuest{
		PartyCode:   guest.PartyCode,
		GuestID:     guest.GuestID,
		Preferences: string(guest.Preferences),
		Status:      guest.Status,
		UploadedAt:  guest.UploadedAt,
	}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "party_code"}, {Name: "guest_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"preferences", "status", "uploaded_at"}),
	}).Create(&m).Error
}

// ListGuests reads the party and its guests in one transaction so the snapshot
// is consistent.
func (r *Repository) ListGuests(ctx context.Context, code string) ([]GuestSubmission, error) {
	var rows []models.PartyGuest
	err := r.InTx(ctx, func(ctx context.Context) error {
		if err := r.requireParty(ctx, code); err != nil {
			return err
		}
		return r.DB(ctx).Where("party_code = ?", code).
			Order("uploaded_at ASC").
			Order("guest_id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]GuestSubmission, 0, len(rows))
	for _, row := range rows {
		out = append(out, GuestSubmission{
			PartyCode:   row.PartyCode,
			GuestID:     row.GuestID,
			Preferences: []byte(row.Preferences),
			Status:      row.Status,
			UploadedAt:  row.UploadedAt,
		})
	}
	return out, nil
}

func (r *Repository) SaveCombined(ctx context.Context, rec CombinedRecord) error {
	m := models.PartyCombinedPreferences{
		PartyCode:           rec.PartyCode,
		Document:            string(rec.Document),
		Status:              rec.Status,
		IterationCount:      rec.IterationCount,
		GuestCount:          rec.GuestCount,
		HostInputIntegrated: rec.HostInputIntegrated,
		UpdatedAt:           rec.UpdatedAt,
	}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "party_code"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (r *Repository) LatestCombined(ctx context.Context, code string) (*CombinedRecord, error) {
	var m models.PartyCombinedPreferences
	if err := r.DB(ctx).Where("party_code = ?", code).First(&m).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNoCombined
		}
		return nil, err
	}
	return &CombinedRecord{
		PartyCode:           m.PartyCode,
		Document:            []byte(m.Document),
		Status:              m.Status,
		IterationCount:      m.IterationCount,
		GuestCount:          m.GuestCount,
		HostInputIntegrated: m.HostInputIntegrated,
		UpdatedAt:           m.UpdatedAt,
	}, nil
}

func (r *Repository) SaveResults(ctx context.Context, rec ResultsRecord) error {
	m := models.PartyResult{
		ID:                   rec.ID,
		PartyCode:            rec.PartyCode,
		Document:             string(rec.Document),
		TotalRecommendations: rec.TotalRecommendations,
		ConfidenceLevel:      rec.ConfidenceLevel,
		CreatedAt:            rec.CreatedAt,
	}
	return r.InTx(ctx, func(ctx context.Context) error {
		if err := r.requireParty(ctx, rec.PartyCode); err != nil {
			return err
		}
		if err := r.DB(ctx).Create(&m).Error; err != nil {
			return fmt.Errorf("insert party result: %w", err)
		}
		return nil
	})
}

func (r *Repository) LatestResults(ctx context.Context, code string) (*ResultsRecord, error) {
	var m models.PartyResult
	err := r.DB(ctx).
		Where("party_code = ?", code).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNoResults
		}
		return nil, err
	}
	return &ResultsRecord{
		ID:                   m.ID,
		PartyCode:            m.PartyCode,
		Document:             []byte(m.Document),
		TotalRecommendations: m.TotalRecommendations,
		ConfidenceLevel:      m.ConfidenceLevel,
		CreatedAt:            m.CreatedAt,
	}, nil
}

func (r *Repository) requireParty(ctx context.Context, code string) error {
	var count int64
	if err := r.DB(ctx).Model(&models.Party{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPartyNotFound
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB(ctx).DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func partyFromModel(m models.Party) *Party {
	return &Party{
		Code:      m.Code,
		HostName:  m.HostName,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
