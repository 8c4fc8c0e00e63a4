package parties

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/forkcast-backend/pkg/enums"
)

// PartyDTO exposes party data in API responses.
type PartyDTO struct {
	Code      string            `json:"party_code"`
	HostName  string            `json:"host_name"`
	Status    enums.PartyStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// GuestSubmissionDTO acknowledges a stored guest document.
type GuestSubmissionDTO struct {
	PartyCode  string            `json:"party_code"`
	GuestID    string            `json:"user_id"`
	Status     enums.GuestStatus `json:"status"`
	UploadedAt time.Time         `json:"uploaded_at"`
	Issues     []FieldIssueDTO   `json:"issues,omitempty"`
}

// FieldIssueDTO reports a field dropped under the permissive policy.
type FieldIssueDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ResultsDTO summarizes an uploaded results document.
type ResultsDTO struct {
	ID                   string              `json:"id"`
	PartyCode            string              `json:"party_code"`
	Status               enums.ResultsStatus `json:"status"`
	TotalRecommendations int                 `json:"total_recommendations"`
	ConfidenceLevel      string              `json:"confidence_level"`
	UploadedAt           time.Time           `json:"uploaded_at"`
	FinalResults         json.RawMessage     `json:"final_results,omitempty"`
}

// CreatePartyInput carries the fields needed to open a party.
type CreatePartyInput struct {
	HostName string
}

func partyDTO(p *Party) *PartyDTO {
	if p == nil {
		return nil
	}
	return &PartyDTO{
		Code:      p.Code,
		HostName:  p.HostName,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func resultsDTO(r *ResultsRecord, withDocument bool) *ResultsDTO {
	dto := &ResultsDTO{
		ID:                   r.ID,
		PartyCode:            r.PartyCode,
		Status:               enums.ResultsStatusCompleted,
		TotalRecommendations: r.TotalRecommendations,
		ConfidenceLevel:      r.ConfidenceLevel,
		UploadedAt:           r.CreatedAt,
	}
	if withDocument {
		dto.FinalResults = r.Document
	}
	return dto
}
