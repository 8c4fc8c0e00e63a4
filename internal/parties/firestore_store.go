package parties

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcpfirestore "cloud.google.com/go/firestore"

	"github.com/angelmondragon/forkcast-backend/pkg/enums"
	"github.com/angelmondragon/forkcast-backend/pkg/firestore"
)

const (
	partiesCollection  = "parties"
	guestsCollection   = "guests"
	combinedCollection = "combined"
	resultsCollection  = "results"
	latestDoc          = "latest"
)

// FirestoreStore keeps parties as documents:
//
//	parties/{code}
//	parties/{code}/guests/{guest_id}
//	parties/{code}/combined/latest
//	parties/{code}/results/latest and parties/{code}/results/{unix_nanos}
type FirestoreStore struct {
	fs *gcpfirestore.Client
}

func NewFirestoreStore(fs *gcpfirestore.Client) *FirestoreStore {
	return &FirestoreStore{fs: fs}
}

var _ Store = (*FirestoreStore)(nil)

type partyDoc struct {
	PartyCode   string    `firestore:"party_code"`
	HostName    string    `firestore:"host_name"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"created_at"`
	LastUpdated time.Time `firestore:"last_updated"`
}

type guestDoc struct {
	UserID      string         `firestore:"user_id"`
	Preferences map[string]any `firestore:"preferences"`
	Status      string         `firestore:"status"`
	UploadedAt  time.Time      `firestore:"uploaded_at"`
}

type combinedDoc struct {
	Document            map[string]any `firestore:"document"`
	Status              string         `firestore:"status"`
	IterationCount      int            `firestore:"iteration_count"`
	GuestCount          int            `firestore:"guest_count"`
	HostInputIntegrated bool           `firestore:"host_input_integrated"`
	UpdatedAt           time.Time      `firestore:"updated_at"`
}

type resultsDoc struct {
	ID                   string         `firestore:"id"`
	PartyCode            string         `firestore:"party_code"`
	FinalResults         map[string]any `firestore:"final_results"`
	Status               string         `firestore:"status"`
	TotalRecommendations int            `firestore:"total_recommendations"`
	ConfidenceLevel      string         `firestore:"confidence_level"`
	UploadedAt           time.Time      `firestore:"uploaded_at"`
}

func (s *FirestoreStore) party(code string) *gcpfirestore.DocumentRef {
	return s.fs.Collection(partiesCollection).Doc(code)
}

func (s *FirestoreStore) CreateParty(ctx context.Context, party Party) error {
	_, err := s.party(party.Code).Create(ctx, partyDoc{
		PartyCode:   party.Code,
		HostName:    party.HostName,
		Status:      party.Status.String(),
		CreatedAt:   party.CreatedAt,
		LastUpdated: party.UpdatedAt,
	})
	if firestore.IsAlreadyExists(err) {
		return ErrPartyExists
	}
	return err
}

func (s *FirestoreStore) GetParty(ctx context.Context, code string) (*Party, error) {
	snap, err := s.party(code).Get(ctx)
	if err != nil {
		if firestore.IsNotFound(err) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}
	var doc partyDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode party %s: %w", code, err)
	}
	return &Party{
		Code:      code,
		HostName:  doc.HostName,
		Status:    enums.PartyStatus(doc.Status),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.LastUpdated,
	}, nil
}

func (s *FirestoreStore) UpdatePartyStatus(ctx context.Context, code string, status enums.PartyStatus, at time.Time) error {
	_, err := s.party(code).Update(ctx, []gcpfirestore.Update{
		{Path: "status", Value: status.String()},
		{Path: "last_updated", Value: at},
	})
	if firestore.IsNotFound(err) {
		return ErrPartyNotFound
	}
	return err
}

func (s *FirestoreStore) UpsertGuest(ctx context.Context, guest GuestSubmission) error {
	prefs, err := toMap(guest.Preferences)
	if err != nil {
		return fmt.Errorf("guest %s preferences: %w", guest.GuestID, err)
	}
	_, err = s.party(guest.PartyCode).Collection(guestsCollection).Doc(guest.GuestID).Set(ctx, guestDoc{
		UserID:      guest.GuestID,
		Preferences: prefs,
		Status:      string(guest.Status),
		UploadedAt:  guest.UploadedAt,
	})
	return err
}

func (s *FirestoreStore) ListGuests(ctx context.Context, code string) ([]GuestSubmission, error) {
	if _, err := s.GetParty(ctx, code); err != nil {
		return nil, err
	}

	snaps, err := s.party(code).Collection(guestsCollection).
		OrderBy("uploaded_at", gcpfirestore.Asc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("list guests of %s: %w", code, err)
	}

	out := make([]GuestSubmission, 0, len(snaps))
	for _, snap := range snaps {
		var doc guestDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode guest %s: %w", snap.Ref.ID, err)
		}
		raw, err := json.Marshal(doc.Preferences)
		if err != nil {
			return nil, fmt.Errorf("encode guest %s: %w", snap.Ref.ID, err)
		}
		out = append(out, GuestSubmission{
			PartyCode:   code,
			GuestID:     snap.Ref.ID,
			Preferences: raw,
			Status:      enums.GuestStatus(doc.Status),
			UploadedAt:  doc.UploadedAt,
		})
	}
	return out, nil
}

func (s *FirestoreStore) SaveCombined(ctx context.Context, rec CombinedRecord) error {
	document, err := toMap(rec.Document)
	if err != nil {
		return fmt.Errorf("combined document: %w", err)
	}
	_, err = s.party(rec.PartyCode).Collection(combinedCollection).Doc(latestDoc).Set(ctx, combinedDoc{
		Document:            document,
		Status:              rec.Status,
		IterationCount:      rec.IterationCount,
		GuestCount:          rec.GuestCount,
		HostInputIntegrated: rec.HostInputIntegrated,
		UpdatedAt:           rec.UpdatedAt,
	})
	return err
}

func (s *FirestoreStore) LatestCombined(ctx context.Context, code string) (*CombinedRecord, error) {
	snap, err := s.party(code).Collection(combinedCollection).Doc(latestDoc).Get(ctx)
	if err != nil {
		if firestore.IsNotFound(err) {
			return nil, ErrNoCombined
		}
		return nil, err
	}
	var doc combinedDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode combined %s: %w", code, err)
	}
	raw, err := json.Marshal(doc.Document)
	if err != nil {
		return nil, err
	}
	return &CombinedRecord{
		PartyCode:           code,
		Document:            raw,
		Status:              doc.Status,
		IterationCount:      doc.IterationCount,
		GuestCount:          doc.GuestCount,
		HostInputIntegrated: doc.HostInputIntegrated,
		UpdatedAt:           doc.UpdatedAt,
	}, nil
}

// SaveResults writes the latest document and a history copy in one transaction.
func (s *FirestoreStore) SaveResults(ctx context.Context, rec ResultsRecord) error {
	final, err := toMap(rec.Document)
	if err != nil {
		return fmt.Errorf("results document: %w", err)
	}
	doc := resultsDoc{
		ID:                   rec.ID,
		PartyCode:            rec.PartyCode,
		FinalResults:         final,
		Status:               string(enums.ResultsStatusCompleted),
		TotalRecommendations: rec.TotalRecommendations,
		ConfidenceLevel:      rec.ConfidenceLevel,
		UploadedAt:           rec.CreatedAt,
	}
	results := s.party(rec.PartyCode).Collection(resultsCollection)
	history := results.Doc(fmt.Sprintf("%d", rec.CreatedAt.UnixNano()))

	return s.fs.RunTransaction(ctx, func(_ context.Context, tx *gcpfirestore.Transaction) error {
		if err := tx.Set(results.Doc(latestDoc), doc); err != nil {
			return err
		}
		return tx.Set(history, doc)
	})
}

func (s *FirestoreStore) LatestResults(ctx context.Context, code string) (*ResultsRecord, error) {
	snap, err := s.party(code).Collection(resultsCollection).Doc(latestDoc).Get(ctx)
	if err != nil {
		if firestore.IsNotFound(err) {
			return nil, ErrNoResults
		}
		return nil, err
	}
	var doc resultsDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", code, err)
	}
	raw, err := json.Marshal(doc.FinalResults)
	if err != nil {
		return nil, err
	}
	return &ResultsRecord{
		ID:                   doc.ID,
		PartyCode:            code,
		Document:             raw,
		TotalRecommendations: doc.TotalRecommendations,
		ConfidenceLevel:      doc.ConfidenceLevel,
		CreatedAt:            doc.UploadedAt,
	}, nil
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	if _, err := s.fs.Collections(ctx).Next(); err != nil && !firestore.IsDone(err) {
		return err
	}
	return nil
}

func toMap(raw json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("document is not an object")
	}
	return m, nil
}
