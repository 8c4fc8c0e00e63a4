package parties

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/forkcast-backend/internal/location"
	"github.com/angelmondragon/forkcast-backend/internal/preferences"
	"github.com/angelmondragon/forkcast-backend/pkg/config"
	"github.com/angelmondragon/forkcast-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/forkcast-backend/pkg/errors"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
	"github.com/angelmondragon/forkcast-backend/pkg/pubsub"
)

const (
	guestThai = `{"context_preferences":{"group_size":4,"date_time":{"time_preference":"19:30"}},
		"location_preferences":{"text_input_primary":"Mission, SF"},
		"cuisine_type_preferences":{"desired":["Thai"]},
		"restaurant_specific_preferences":{"price_levels":[2,3]}}`
	guestSushi = `{"preferences":{"context_preferences":{"group_size":4},
		"cuisine_type_preferences":{"desired":["Sushi"]},
		"restaurant_specific_preferences":{"price_levels":[2]}}}`
)

type memStore struct {
	mu       sync.Mutex
	parties  map[string]Party
	guests   map[string][]GuestSubmission
	combined map[string]CombinedRecord
	results  map[string][]ResultsRecord

	createErr       error
	latestCombErr   error
	saveCombinedErr error
}

func newMemStore() *memStore {
	return &memStore{
		parties:  map[string]Party{},
		guests:   map[string][]GuestSubmission{},
		combined: map[string]CombinedRecord{},
		results:  map[string][]ResultsRecord{},
	}
}

func (m *memStore) CreateParty(_ context.Context, p Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.parties[p.Code]; ok {
		return ErrPartyExists
	}
	m.parties[p.Code] = p
	return nil
}

func (m *memStore) GetParty(_ context.Context, code string) (*Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parties[code]
	if !ok {
		return nil, ErrPartyNotFound
	}
	return &p, nil
}

func (m *memStore) UpdatePartyStatus(_ context.Context, code string, status enums.PartyStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parties[code]
	if !ok {
		return ErrPartyNotFound
	}
	p.Status = status
	p.UpdatedAt = at
	m.parties[code] = p
	return nil
}

func (m *memStore) UpsertGuest(_ context.Context, g GuestSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.guests[g.PartyCode]
	for i := range list {
		if list[i].GuestID == g.GuestID {
			list[i] = g
			return nil
		}
	}
	m.guests[g.PartyCode] = append(list, g)
	return nil
}

func (m *memStore) ListGuests(_ context.Context, code string) ([]GuestSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parties[code]; !ok {
		return nil, ErrPartyNotFound
	}
	out := append([]GuestSubmission(nil), m.guests[code]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (m *memStore) SaveCombined(_ context.Context, rec CombinedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveCombinedErr != nil {
		return m.saveCombinedErr
	}
	m.combined[rec.PartyCode] = rec
	return nil
}

func (m *memStore) LatestCombined(_ context.Context, code string) (*CombinedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestCombErr != nil {
		return nil, m.latestCombErr
	}
	rec, ok := m.combined[code]
	if !ok {
		return nil, ErrNoCombined
	}
	return &rec, nil
}

func (m *memStore) SaveResults(_ context.Context, rec ResultsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[rec.PartyCode] = append(m.results[rec.PartyCode], rec)
	return nil
}

func (m *memStore) LatestResults(_ context.Context, code string) (*ResultsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.results[code]
	if len(list) == 0 {
		return nil, ErrNoResults
	}
	rec := list[len(list)-1]
	return &rec, nil
}

func (m *memStore) Ping(context.Context) error { return nil }

type fakeCache struct {
	docs        map[string][]byte
	invalidated []string
	getErr      error
}

func (c *fakeCache) SetCombined(_ context.Context, code string, doc []byte, _ time.Duration) error {
	c.docs[code] = doc
	return nil
}

func (c *fakeCache) GetCombined(_ context.Context, code string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	doc, ok := c.docs[code]
	return doc, ok, nil
}

func (c *fakeCache) InvalidateCombined(_ context.Context, code string) error {
	delete(c.docs, code)
	c.invalidated = append(c.invalidated, code)
	return nil
}

type publishedEvent struct {
	eventType string
	partyCode string
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, eventType, partyCode string, _ any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, publishedEvent{eventType: eventType, partyCode: partyCode})
	return "evt-1", nil
}

type fakeGeocoder struct {
	queries []string
	err     error
}

func (g *fakeGeocoder) Geocode(_ context.Context, query string) (location.Location, error) {
	g.queries = append(g.queries, query)
	if g.err != nil {
		return location.Location{}, g.err
	}
	return location.Location{FormattedAddress: query, Latitude: 37.76, Longitude: -122.42}, nil
}

type fakeClarifier struct {
	missing []string
}

func (c *fakeClarifier) Suggest(_ context.Context, missing []string, _ preferences.Preferences) string {
	c.missing = missing
	if len(missing) == 0 {
		return "ready?"
	}
	return "need " + missing[0]
}

type harness struct {
	svc       *service
	store     *memStore
	cache     *fakeCache
	publisher *fakePublisher
	geocoder  *fakeGeocoder
	clarifier *fakeClarifier
}

func newHarness(t *testing.T, policy string) *harness {
	t.Helper()
	h := &harness{
		store:     newMemStore(),
		cache:     &fakeCache{docs: map[string][]byte{}},
		publisher: &fakePublisher{},
		geocoder:  &fakeGeocoder{},
		clarifier: &fakeClarifier{},
	}
	svc, err := NewService(ServiceParams{
		Store:       h.store,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Config:      config.PreferencesConfig{ParsePolicy: policy, AggregateTimeout: time.Second, MaxDocumentBytes: 4096},
		Cache:       h.cache,
		CombinedTTL: time.Minute,
		Publisher:   h.publisher,
		Geocoder:    h.geocoder,
		Clarifier:   h.clarifier,
	})
	require.NoError(t, err)
	h.svc = svc.(*service)

	clock := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return h
}

func (h *harness) party(t *testing.T) string {
	t.Helper()
	dto, err := h.svc.CreateParty(context.Background(), CreatePartyInput{HostName: "Ana"})
	require.NoError(t, err)
	return dto.Code
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestNewServiceRequiresStoreAndLogger(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Store: newMemStore()})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{
		Store:  newMemStore(),
		Logger: logger.New(logger.Options{Output: io.Discard}),
		Config: config.PreferencesConfig{ParsePolicy: "sloppy"},
	})
	assert.Error(t, err)
}

func TestCreateParty(t *testing.T) {
	h := newHarness(t, "strict")

	dto, err := h.svc.CreateParty(context.Background(), CreatePartyInput{HostName: "  Ana "})
	require.NoError(t, err)
	assert.Equal(t, "Ana", dto.HostName)
	assert.Equal(t, enums.PartyStatusCreated, dto.Status)
	assert.Len(t, dto.Code, codeLength)

	_, err = h.svc.CreateParty(context.Background(), CreatePartyInput{HostName: " "})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreatePartyRetriesOnCollision(t *testing.T) {
	h := newHarness(t, "strict")
	codes := []string{"DUPE22", "DUPE22", "FRESH2"}
	h.svc.newCode = func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	}

	first, err := h.svc.CreateParty(context.Background(), CreatePartyInput{HostName: "Ana"})
	require.NoError(t, err)
	second, err := h.svc.CreateParty(context.Background(), CreatePartyInput{HostName: "Ben"})
	require.NoError(t, err)
	assert.Equal(t, "DUPE22", first.Code)
	assert.Equal(t, "FRESH2", second.Code)
}

func TestCreatePartyStoreFailure(t *testing.T) {
	h := newHarness(t, "strict")
	h.store.createErr = errors.New("db down")

	_, err := h.svc.CreateParty(context.Background(), CreatePartyInput{HostName: "Ana"})
	assertCode(t, err, pkgerrors.CodeDependency)
}

func TestGetParty(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)

	got, err := h.svc.GetParty(context.Background(), " "+code+" ")
	require.NoError(t, err)
	assert.Equal(t, code, got.Code)

	_, err = h.svc.GetParty(context.Background(), "ZZZZ99")
	assertCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.GetParty(context.Background(), "x")
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestSubmitGuestPreferences(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	h.cache.docs[code] = []byte(`{}`)

	dto, err := h.svc.SubmitGuestPreferences(context.Background(), code, "guest-1", []byte(guestSushi))
	require.NoError(t, err)
	assert.Equal(t, enums.GuestStatusSubmitted, dto.Status)
	assert.Empty(t, dto.Issues)

	party, _ := h.store.GetParty(context.Background(), code)
	assert.Equal(t, enums.PartyStatusCollectingPreferences, party.Status)
	assert.Equal(t, []string{code}, h.cache.invalidated)

	// the wrapper is stripped before storage
	stored := h.store.guests[code][0]
	assert.NotContains(t, string(stored.Preferences), `"preferences"`)
}

func TestSubmitGuestPreferencesValidation(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()

	_, err := h.svc.SubmitGuestPreferences(ctx, code, "", []byte(guestThai))
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.SubmitGuestPreferences(ctx, code, "guest-1", []byte(`[1,2]`))
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.SubmitGuestPreferences(ctx, code, "guest-1", []byte(`{"context_preferences":{"group_size":"four"}}`))
	assertCode(t, err, pkgerrors.CodeValidation)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "guest-1", details["record_id"])
	assert.Equal(t, "context_preferences.group_size", details["field"])

	big := make([]byte, 5000)
	_, err = h.svc.SubmitGuestPreferences(ctx, code, "guest-1", big)
	assertCode(t, err, pkgerrors.CodePayloadSize)

	_, err = h.svc.SubmitGuestPreferences(ctx, "NOPE99", "guest-1", []byte(guestThai))
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestSubmitGuestPreferencesPermissiveReportsIssues(t *testing.T) {
	h := newHarness(t, "permissive")
	code := h.party(t)

	dto, err := h.svc.SubmitGuestPreferences(context.Background(), code, "guest-1",
		[]byte(`{"context_preferences":{"group_size":"four"},"cuisine_type_preferences":{"desired":["Thai"]}}`))
	require.NoError(t, err)
	require.Len(t, dto.Issues, 1)
	assert.Equal(t, "context_preferences.group_size", dto.Issues[0].Field)
}

func TestSubmitGuestPreferencesRejectedAfterResults(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	require.NoError(t, h.store.UpdatePartyStatus(context.Background(), code, enums.PartyStatusResultsReady, time.Now()))

	_, err := h.svc.SubmitGuestPreferences(context.Background(), code, "guest-1", []byte(guestThai))
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAggregatePartyWithoutGuests(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)

	_, err := h.svc.AggregateParty(context.Background(), code, nil)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	_, err = h.svc.AggregateParty(context.Background(), "NOPE99", nil)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestAggregatePartyCompleteDocument(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()
	_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestThai))
	require.NoError(t, err)
	_, err = h.svc.SubmitGuestPreferences(ctx, code, "g2", []byte(guestSushi))
	require.NoError(t, err)

	combined, err := h.svc.AggregateParty(ctx, code, nil)
	require.NoError(t, err)

	assert.Equal(t, preferences.StatusComplete, combined.Status)
	assert.True(t, combined.ProcessingFlags.ReadyForSearch)
	assert.Equal(t, 2, combined.ProcessingFlags.GuestCount)
	assert.Equal(t, 1, combined.ProcessingFlags.IterationCount)
	assert.False(t, combined.ProcessingFlags.HostInputIntegrated)
	require.NotNil(t, combined.ProcessingFlags.ClarificationQuestion)
	assert.Equal(t, "ready?", *combined.ProcessingFlags.ClarificationQuestion)

	// primary text without coordinates is geocoded
	assert.Equal(t, []string{"Mission, SF"}, h.geocoder.queries)
	assert.True(t, combined.Preferences.Location.Coordinates.Complete())

	party, _ := h.store.GetParty(ctx, code)
	assert.Equal(t, enums.PartyStatusPreferencesAggregated, party.Status)
	assert.Contains(t, h.cache.docs, code)
	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, pubsub.EventPreferencesAggregated, h.publisher.events[0].eventType)

	stored := h.store.combined[code]
	assert.Equal(t, 1, stored.IterationCount)
	assert.Equal(t, string(preferences.StatusComplete), stored.Status)
}

func TestAggregatePartyIncrementsIteration(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()
	_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestSushi))
	require.NoError(t, err)

	first, err := h.svc.AggregateParty(ctx, code, nil)
	require.NoError(t, err)
	second, err := h.svc.AggregateParty(ctx, code, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, first.ProcessingFlags.IterationCount)
	assert.Equal(t, 2, second.ProcessingFlags.IterationCount)
	assert.Equal(t, preferences.StatusIncomplete, second.Status)
	assert.Equal(t, []string{preferences.FieldPrimaryLocation, preferences.FieldTime}, second.ProcessingFlags.MissingCriticalFields)
	assert.Equal(t, second.ProcessingFlags.MissingCriticalFields, h.clarifier.missing)
}

func TestAggregatePartyPreviousReadFailureStartsOver(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()
	_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestSushi))
	require.NoError(t, err)
	h.store.latestCombErr = errors.New("timeout")

	combined, err := h.svc.AggregateParty(ctx, code, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, combined.ProcessingFlags.IterationCount)
}

func TestAggregatePartyWithHost(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()
	_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestSushi))
	require.NoError(t, err)

	host := []byte(`{"preferences":{"location_preferences":{"text_input_primary":"Oakland",
		"coordinates_primary":{"latitude":37.8,"longitude":-122.27}},
		"context_preferences":{"date_time":{"time_preference":"20:00"}}}}`)
	combined, err := h.svc.AggregateParty(ctx, code, host)
	require.NoError(t, err)

	assert.True(t, combined.ProcessingFlags.HostInputIntegrated)
	assert.Equal(t, preferences.StatusComplete, combined.Status)
	require.NotNil(t, combined.Preferences.Location.PrimaryText)
	assert.Equal(t, "Oakland", *combined.Preferences.Location.PrimaryText)
	assert.Empty(t, h.geocoder.queries)
	assert.Contains(t, combined.LastUserUtterance, "host input")
}

func TestAggregatePartyInvalidHostContinues(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()
	_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestSushi))
	require.NoError(t, err)

	combined, err := h.svc.AggregateParty(ctx, code, []byte(`"not an object"`))
	require.NoError(t, err)
	assert.False(t, combined.ProcessingFlags.HostInputIntegrated)
	require.NotNil(t, combined.ProcessingFlags.ErrorMessage)
	assert.Contains(t, *combined.ProcessingFlags.ErrorMessage, "host preferences invalid")
}

func TestAggregatePartyPolicies(t *testing.T) {
	bad := GuestSubmission{GuestID: "bad", Preferences: []byte(`{"context_preferences":"oops"}`), Status: enums.GuestStatusSubmitted}

	t.Run("strict aborts", func(t *testing.T) {
		h := newHarness(t, "strict")
		code := h.party(t)
		ctx := context.Background()
		_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestSushi))
		require.NoError(t, err)
		bad.PartyCode = code
		bad.UploadedAt = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		require.NoError(t, h.store.UpsertGuest(ctx, bad))

		_, err = h.svc.AggregateParty(ctx, code, nil)
		assertCode(t, err, pkgerrors.CodeValidation)
		assert.Empty(t, h.store.combined)
	})

	t.Run("permissive skips", func(t *testing.T) {
		h := newHarness(t, "permissive")
		code := h.party(t)
		ctx := context.Background()
		_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestSushi))
		require.NoError(t, err)
		bad.PartyCode = code
		bad.Preferences = []byte(`[]`)
		bad.UploadedAt = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		require.NoError(t, h.store.UpsertGuest(ctx, bad))

		combined, err := h.svc.AggregateParty(ctx, code, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, combined.ProcessingFlags.GuestCount)
	})

	t.Run("permissive with only malformed records", func(t *testing.T) {
		h := newHarness(t, "permissive")
		code := h.party(t)
		ctx := context.Background()
		bad.PartyCode = code
		bad.Preferences = []byte(`[]`)
		bad.UploadedAt = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		require.NoError(t, h.store.UpsertGuest(ctx, bad))

		_, err := h.svc.AggregateParty(ctx, code, nil)
		assertCode(t, err, pkgerrors.CodeStateConflict)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, "every submitted guest record was malformed", typed.Message())
		assert.Equal(t, map[string]any{"skipped_records": 1}, typed.Details())
	})
}

func TestAggregatePartySideEffectFailuresAreNonFatal(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()
	_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestThai))
	require.NoError(t, err)
	h.publisher.err = errors.New("pubsub down")
	h.geocoder.err = errors.New("maps down")

	combined, err := h.svc.AggregateParty(ctx, code, nil)
	require.NoError(t, err)
	assert.False(t, combined.Preferences.Location.Coordinates.Complete())
}

func TestAggregatePartyStoreFailure(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()
	_, err := h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestThai))
	require.NoError(t, err)
	h.store.saveCombinedErr = errors.New("disk full")

	_, err = h.svc.AggregateParty(ctx, code, nil)
	assertCode(t, err, pkgerrors.CodeDependency)
	assert.Empty(t, h.publisher.events)
}

func TestLatestPreferences(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()

	_, err := h.svc.LatestPreferences(ctx, code)
	assertCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.SubmitGuestPreferences(ctx, code, "g1", []byte(guestThai))
	require.NoError(t, err)
	_, err = h.svc.AggregateParty(ctx, code, nil)
	require.NoError(t, err)

	fromCache, err := h.svc.LatestPreferences(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 1, fromCache.ProcessingFlags.GuestCount)

	delete(h.cache.docs, code)
	fromStore, err := h.svc.LatestPreferences(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, fromCache.Status, fromStore.Status)
	assert.Contains(t, h.cache.docs, code, "store hit repopulates the cache")

	h.cache.getErr = errors.New("redis down")
	_, err = h.svc.LatestPreferences(ctx, code)
	assert.NoError(t, err)
}

func TestSaveAndLatestResults(t *testing.T) {
	h := newHarness(t, "strict")
	code := h.party(t)
	ctx := context.Background()

	_, err := h.svc.LatestResults(ctx, code)
	assertCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.SaveResults(ctx, code, []byte(`{"restaurants":[]}`))
	assertCode(t, err, pkgerrors.CodeValidation)

	saved, err := h.svc.SaveResults(ctx, code, []byte(`{"final_results":{"restaurants":[]}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, saved.TotalRecommendations)
	assert.Equal(t, "Unknown", saved.ConfidenceLevel)
	assert.Nil(t, saved.FinalResults)

	saved, err = h.svc.SaveResults(ctx, code, []byte(`{"final_results":{"summary":{"total_recommendations":7,"confidence_level":"High"}}}`))
	require.NoError(t, err)
	assert.Equal(t, 7, saved.TotalRecommendations)
	assert.Equal(t, "High", saved.ConfidenceLevel)

	latest, err := h.svc.LatestResults(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, latest.ID)
	assert.JSONEq(t, `{"summary":{"total_recommendations":7,"confidence_level":"High"}}`, string(latest.FinalResults))

	party, _ := h.store.GetParty(ctx, code)
	assert.Equal(t, enums.PartyStatusResultsReady, party.Status)
	require.Len(t, h.publisher.events, 2)
	assert.Equal(t, pubsub.EventResultsReady, h.publisher.events[1].eventType)
}
