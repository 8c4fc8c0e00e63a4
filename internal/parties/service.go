package parties

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/forkcast-backend/internal/location"
	"github.com/angelmondragon/forkcast-backend/internal/preferences"
	"github.com/angelmondragon/forkcast-backend/pkg/config"
	"github.com/angelmondragon/forkcast-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/forkcast-backend/pkg/errors"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
	"github.com/angelmondragon/forkcast-backend/pkg/metrics"
	"github.com/angelmondragon/forkcast-backend/pkg/pubsub"
)

const (
	maxGuestIDLen         = 128
	maxHostNameLen        = 120
	createCodeAttempts    = 5
	defaultConfidence     = "Unknown"
	defaultAggregateLimit = 15 * time.Second
)

type combinedCache interface {
	SetCombined(ctx context.Context, partyCode string, doc []byte, ttl time.Duration) error
	GetCombined(ctx context.Context, partyCode string) ([]byte, bool, error)
	InvalidateCombined(ctx context.Context, partyCode string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType, partyCode string, data any) (string, error)
}

type geocoder interface {
	Geocode(ctx context.Context, query string) (location.Location, error)
}

type clarifier interface {
	Suggest(ctx context.Context, missing []string, prefs preferences.Preferences) string
}

// Service exposes party operations.
type Service interface {
	CreateParty(ctx context.Context, input CreatePartyInput) (*PartyDTO, error)
	GetParty(ctx context.Context, code string) (*PartyDTO, error)
	SubmitGuestPreferences(ctx context.Context, code, guestID string, raw []byte) (*GuestSubmissionDTO, error)
	AggregateParty(ctx context.Context, code string, hostRaw []byte) (*preferences.CombinedPreferences, error)
	LatestPreferences(ctx context.Context, code string) (*preferences.CombinedPreferences, error)
	SaveResults(ctx context.Context, code string, raw []byte) (*ResultsDTO, error)
	LatestResults(ctx context.Context, code string) (*ResultsDTO, error)
}

// ServiceParams wires the party service. Store and Logger are required; the
// rest are optional collaborators.
type ServiceParams struct {
	Store       Store
	Logger      *logger.Logger
	Config      config.PreferencesConfig
	Cache       combinedCache
	CombinedTTL time.Duration
	Publisher   eventPublisher
	Geocoder    geocoder
	Clarifier   clarifier
	Metrics     *metrics.AggregationMetrics
}

type service struct {
	store       Store
	logg        *logger.Logger
	policy      preferences.Policy
	maxDocBytes int64
	timeout     time.Duration
	cache       combinedCache
	combinedTTL time.Duration
	publisher   eventPublisher
	geocoder    geocoder
	clarifier   clarifier
	metrics     *metrics.AggregationMetrics
	now         func() time.Time
	newCode     func() string
}

// NewService builds a party service with the provided collaborators.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("party store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	policy, err := preferences.ParsePolicy(params.Config.ParsePolicy)
	if err != nil {
		return nil, err
	}
	timeout := params.Config.AggregateTimeout
	if timeout <= 0 {
		timeout = defaultAggregateLimit
	}
	return &service{
		store:       params.Store,
		logg:        params.Logger,
		policy:      policy,
		maxDocBytes: params.Config.MaxDocumentBytes,
		timeout:     timeout,
		cache:       params.Cache,
		combinedTTL: params.CombinedTTL,
		publisher:   params.Publisher,
		geocoder:    params.Geocoder,
		clarifier:   params.Clarifier,
		metrics:     params.Metrics,
		now:         func() time.Time { return time.Now().UTC() },
		newCode:     NewCode,
	}, nil
}

func (s *service) CreateParty(ctx context.Context, input CreatePartyInput) (*PartyDTO, error) {
	host := strings.TrimSpace(input.HostName)
	if host == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "host_name is required")
	}
	if len(host) > maxHostNameLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "host_name is too long")
	}

	now := s.now()
	for attempt := 0; attempt < createCodeAttempts; attempt++ {
		party := Party{
			Code:      s.newCode(),
			HostName:  host,
			Status:    enums.PartyStatusCreated,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := s.store.CreateParty(ctx, party)
		if err == nil {
			s.logg.Info(s.logg.WithPartyCode(ctx, party.Code), "party.created")
			return partyDTO(&party), nil
		}
		if !errors.Is(err, ErrPartyExists) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create party")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a party code")
}

func (s *service) GetParty(ctx context.Context, code string) (*PartyDTO, error) {
	party, err := s.loadParty(ctx, code)
	if err != nil {
		return nil, err
	}
	return partyDTO(party), nil
}

func (s *service) loadParty(ctx context.Context, raw string) (*Party, error) {
	code, ok := NormalizeCode(raw)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid party code")
	}
	party, err := s.store.GetParty(ctx, code)
	if err != nil {
		return nil, mapStoreError(err, "load party")
	}
	return party, nil
}

// SubmitGuestPreferences validates and stores one guest's document. Re-submitting
// replaces the guest's previous document.
func (s *service) SubmitGuestPreferences(ctx context.Context, code, guestID string, raw []byte) (*GuestSubmissionDTO, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" || len(guestID) > maxGuestIDLen || strings.Contains(guestID, "/") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid guest id")
	}
	if err := s.checkSize(raw); err != nil {
		return nil, err
	}

	party, err := s.loadParty(ctx, code)
	if err != nil {
		return nil, err
	}
	if !party.Status.AcceptsGuests() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "party no longer accepts guest preferences").
			WithDetails(map[string]any{"status": party.Status})
	}

	body, err := preferences.ExtractPreferences(raw)
	if err != nil {
		return nil, recordError(&preferences.MalformedRecordError{RecordID: guestID, Err: err})
	}
	rec, err := preferences.ParseRecord(guestID, body, s.policy)
	if err != nil {
		return nil, recordError(err)
	}

	ctx = s.logg.WithGuestID(s.logg.WithPartyCode(ctx, party.Code), guestID)
	now := s.now()
	sub := GuestSubmission{
		PartyCode:   party.Code,
		GuestID:     guestID,
		Preferences: body,
		Status:      enums.GuestStatusSubmitted,
		UploadedAt:  now,
	}
	if err := s.store.UpsertGuest(ctx, sub); err != nil {
		return nil, mapStoreError(err, "store guest preferences")
	}
	if party.Status == enums.PartyStatusCreated {
		if err := s.store.UpdatePartyStatus(ctx, party.Code, enums.PartyStatusCollectingPreferences, now); err != nil {
			return nil, mapStoreError(err, "update party status")
		}
	}
	s.invalidate(ctx, party.Code)

	if len(rec.Issues) > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "issues", issuesError(rec.Issues).Error()), "guest preferences stored with dropped fields")
	} else {
		s.logg.Info(ctx, "guest.preferences_submitted")
	}

	dto := &GuestSubmissionDTO{
		PartyCode:  party.Code,
		GuestID:    guestID,
		Status:     sub.Status,
		UploadedAt: now,
	}
	for _, issue := range rec.Issues {
		dto.Issues = append(dto.Issues, FieldIssueDTO{Field: issue.Field, Message: issue.Reason})
	}
	return dto, nil
}

// AggregateParty reads every guest record, merges in the host document and stores
// the resulting envelope as the party's latest.
func (s *service) AggregateParty(ctx context.Context, code string, hostRaw []byte) (*preferences.CombinedPreferences, error) {
	started := time.Now()
	combined, err := s.aggregate(ctx, code, hostRaw)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.ObserveRun(outcome, time.Since(started))
	return combined, err
}

func (s *service) aggregate(ctx context.Context, code string, hostRaw []byte) (*preferences.CombinedPreferences, error) {
	if err := s.checkSize(hostRaw); err != nil {
		return nil, err
	}
	normalized, ok := NormalizeCode(code)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid party code")
	}
	code = normalized

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = s.logg.WithPartyCode(ctx, code)

	guests, err := s.store.ListGuests(ctx, code)
	if err != nil {
		return nil, mapStoreError(err, "list guest preferences")
	}

	records, err := s.parseGuests(ctx, guests)
	if err != nil {
		return nil, err
	}
	base, err := preferences.Aggregate(records)
	if err != nil {
		if errors.Is(err, preferences.ErrNoGuestData) {
			if skipped := len(guests) - len(records); skipped > 0 {
				return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "every submitted guest record was malformed").
					WithDetail("skipped_records", skipped)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "no guest preferences submitted yet")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate guest preferences")
	}
	s.metrics.ObserveGuests(base.GuestCount)

	var opts []preferences.MergeOption
	if prev := s.previous(ctx, code); prev != nil {
		opts = append(opts, preferences.WithPrevious(prev))
	}

	var host *preferences.PreferenceRecord
	if hasDocument(hostRaw) {
		rec, err := preferences.ParseHostRecord(hostRaw, s.policy)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "host preferences rejected, continuing with guest data")
			opts = append(opts, preferences.WithHostError(err))
		} else {
			host = &rec
		}
	}

	combined := preferences.Merge(base, host, opts...)
	combined = s.fillCoordinates(ctx, combined)

	readiness := preferences.Assess(combined)
	combined = combined.WithReadiness(readiness)
	s.metrics.IncMissing(readiness.Missing...)
	if s.clarifier != nil {
		combined = combined.WithClarificationQuestion(s.clarifier.Suggest(ctx, readiness.Missing, combined.Preferences))
	}

	doc, err := json.Marshal(combined)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode combined preferences")
	}
	now := s.now()
	rec := CombinedRecord{
		PartyCode:           code,
		Document:            doc,
		Status:              string(combined.Status),
		IterationCount:      combined.ProcessingFlags.IterationCount,
		GuestCount:          combined.ProcessingFlags.GuestCount,
		HostInputIntegrated: combined.ProcessingFlags.HostInputIntegrated,
		UpdatedAt:           now,
	}
	if err := s.store.SaveCombined(ctx, rec); err != nil {
		return nil, mapStoreError(err, "store combined preferences")
	}
	if err := s.store.UpdatePartyStatus(ctx, code, enums.PartyStatusPreferencesAggregated, now); err != nil {
		return nil, mapStoreError(err, "update party status")
	}

	s.cacheCombined(ctx, code, doc)
	s.publish(ctx, pubsub.EventPreferencesAggregated, code, map[string]any{
		"party_code":            code,
		"status":                combined.Status,
		"guest_count":           combined.ProcessingFlags.GuestCount,
		"iteration_count":       combined.ProcessingFlags.IterationCount,
		"host_input_integrated": combined.ProcessingFlags.HostInputIntegrated,
		"missing_fields":        combined.ProcessingFlags.MissingCriticalFields,
	})

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"guest_count":     combined.ProcessingFlags.GuestCount,
		"iteration_count": combined.ProcessingFlags.IterationCount,
		"host_integrated": combined.ProcessingFlags.HostInputIntegrated,
		"status":          combined.Status,
	}), "party.aggregated")

	return &combined, nil
}

// parseGuests applies the configured policy. Strict aborts on the first bad
// record; permissive skips it and logs every problem as one combined error.
func (s *service) parseGuests(ctx context.Context, guests []GuestSubmission) ([]preferences.PreferenceRecord, error) {
	records := make([]preferences.PreferenceRecord, 0, len(guests))
	var problems error
	for _, g := range guests {
		rec, err := preferences.ParseRecord(g.GuestID, g.Preferences, s.policy)
		if err != nil {
			if s.policy == preferences.Strict {
				return nil, recordError(err)
			}
			s.metrics.IncSkipped("malformed")
			problems = multierr.Append(problems, err)
			continue
		}
		if len(rec.Issues) > 0 {
			problems = multierr.Append(problems, fmt.Errorf("guest %s: %w", g.GuestID, issuesError(rec.Issues)))
		}
		records = append(records, rec)
	}
	if problems != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"problem_count": len(multierr.Errors(problems)),
			"problems":      problems.Error(),
		}), "guest preferences aggregated with problems")
	}
	return records, nil
}

func (s *service) previous(ctx context.Context, code string) *preferences.CombinedPreferences {
	rec, err := s.store.LatestCombined(ctx, code)
	if err != nil {
		if !errors.Is(err, ErrNoCombined) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "could not load previous combined preferences")
		}
		return nil
	}
	prev, err := preferences.DecodeCombined(rec.Document)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stored combined preferences unreadable")
		return nil
	}
	return &prev
}

func (s *service) fillCoordinates(ctx context.Context, c preferences.CombinedPreferences) preferences.CombinedPreferences {
	loc := c.Preferences.Location
	if s.geocoder == nil || loc.Coordinates.Complete() || loc.PrimaryText == nil {
		return c
	}
	found, err := s.geocoder.Geocode(ctx, *loc.PrimaryText)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "geocoding primary location failed")
		return c
	}
	return c.WithCoordinates(found.Latitude, found.Longitude)
}

// LatestPreferences serves the cached envelope and falls back to the store.
func (s *service) LatestPreferences(ctx context.Context, code string) (*preferences.CombinedPreferences, error) {
	party, err := s.loadParty(ctx, code)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithPartyCode(ctx, party.Code)

	if s.cache != nil {
		doc, found, err := s.cache.GetCombined(ctx, party.Code)
		if err != nil {
			s.logg.Error(ctx, "combined preferences cache read failed", err)
		} else if found {
			if combined, err := preferences.DecodeCombined(doc); err == nil {
				return &combined, nil
			}
		}
	}

	rec, err := s.store.LatestCombined(ctx, party.Code)
	if err != nil {
		if errors.Is(err, ErrNoCombined) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "party has not been aggregated yet")
		}
		return nil, mapStoreError(err, "load combined preferences")
	}
	combined, err := preferences.DecodeCombined(rec.Document)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode combined preferences")
	}
	s.cacheCombined(ctx, party.Code, rec.Document)
	return &combined, nil
}

// SaveResults stores a final results document. The body must carry a
// "final_results" object; its summary supplies the recommendation count and
// confidence level.
func (s *service) SaveResults(ctx context.Context, code string, raw []byte) (*ResultsDTO, error) {
	if err := s.checkSize(raw); err != nil {
		return nil, err
	}
	party, err := s.loadParty(ctx, code)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithPartyCode(ctx, party.Code)

	var body struct {
		FinalResults json.RawMessage `json:"final_results"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "results must be a JSON object")
	}
	final := bytes.TrimSpace(body.FinalResults)
	if len(final) == 0 || final[0] != '{' {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "final_results object is required")
	}

	var summary struct {
		Summary struct {
			TotalRecommendations *int    `json:"total_recommendations"`
			ConfidenceLevel      *string `json:"confidence_level"`
		} `json:"summary"`
	}
	_ = json.Unmarshal(final, &summary)

	rec := ResultsRecord{
		ID:              uuid.NewString(),
		PartyCode:       party.Code,
		Document:        final,
		ConfidenceLevel: defaultConfidence,
		CreatedAt:       s.now(),
	}
	if v := summary.Summary.TotalRecommendations; v != nil && *v >= 0 {
		rec.TotalRecommendations = *v
	}
	if v := summary.Summary.ConfidenceLevel; v != nil && strings.TrimSpace(*v) != "" {
		rec.ConfidenceLevel = strings.TrimSpace(*v)
	}

	if err := s.store.SaveResults(ctx, rec); err != nil {
		return nil, mapStoreError(err, "store results")
	}
	if err := s.store.UpdatePartyStatus(ctx, party.Code, enums.PartyStatusResultsReady, rec.CreatedAt); err != nil {
		return nil, mapStoreError(err, "update party status")
	}

	s.publish(ctx, pubsub.EventResultsReady, party.Code, map[string]any{
		"party_code":            party.Code,
		"results_id":            rec.ID,
		"total_recommendations": rec.TotalRecommendations,
		"confidence_level":      rec.ConfidenceLevel,
	})
	s.logg.Info(s.logg.WithField(ctx, "results_id", rec.ID), "party.results_saved")
	return resultsDTO(&rec, false), nil
}

func (s *service) LatestResults(ctx context.Context, code string) (*ResultsDTO, error) {
	party, err := s.loadParty(ctx, code)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.LatestResults(ctx, party.Code)
	if err != nil {
		if errors.Is(err, ErrNoResults) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "party has no results yet")
		}
		return nil, mapStoreError(err, "load results")
	}
	return resultsDTO(rec, true), nil
}

func (s *service) checkSize(raw []byte) error {
	if s.maxDocBytes > 0 && int64(len(raw)) > s.maxDocBytes {
		return pkgerrors.New(pkgerrors.CodePayloadSize, "document too large").
			WithDetails(map[string]any{"limit_bytes": s.maxDocBytes})
	}
	return nil
}

func (s *service) cacheCombined(ctx context.Context, code string, doc []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetCombined(ctx, code, doc, s.combinedTTL); err != nil {
		s.logg.Error(ctx, "combined preferences cache write failed", err)
	}
}

func (s *service) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCombined(ctx, code); err != nil {
		s.logg.Error(ctx, "combined preferences cache invalidation failed", err)
	}
}

func (s *service) publish(ctx context.Context, eventType, code string, data any) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, eventType, code, data); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "event_type", eventType), "party event publish failed", err)
	}
}

func hasDocument(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func issuesError(issues []preferences.FieldIssue) error {
	var err error
	for _, issue := range issues {
		err = multierr.Append(err, fmt.Errorf("%s: %s", issue.Field, issue.Reason))
	}
	return err
}

// recordError maps a parse failure onto a validation error naming the record and field.
func recordError(err error) error {
	typed := pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed preference record")
	var malformed *preferences.MalformedRecordError
	if errors.As(err, &malformed) {
		typed.WithDetail("record_id", malformed.RecordID)
		if malformed.Field != "" {
			typed.WithDetail("field", malformed.Field)
		}
	}
	return typed
}

func mapStoreError(err error, op string) error {
	switch {
	case errors.Is(err, ErrPartyNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "party not found")
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" timed out")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
	}
}
