package parties

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/forkcast-backend/pkg/enums"
	"github.com/angelmondragon/forkcast-backend/pkg/migrate"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, migrate.RunEmbedded(context.Background(), sqlDB, "sqlite3", "up"))
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewRepository(conn)
}

func seedParty(t *testing.T, repo *Repository, code string) Party {
	t.Helper()
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	party := Party{Code: code, HostName: "Ana", Status: enums.PartyStatusCreated, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateParty(context.Background(), party))
	return party
}

func TestRepositoryCreateAndGetParty(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedParty(t, repo, "ABC234")

	got, err := repo.GetParty(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.HostName)
	assert.Equal(t, enums.PartyStatusCreated, got.Status)

	err = repo.CreateParty(ctx, Party{Code: "ABC234", HostName: "Ben", Status: enums.PartyStatusCreated})
	assert.ErrorIs(t, err, ErrPartyExists)

	_, err = repo.GetParty(ctx, "NOPE99")
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestRepositoryUpdatePartyStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedParty(t, repo, "STAT22")

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdatePartyStatus(ctx, "STAT22", enums.PartyStatusPreferencesAggregated, at))

	got, err := repo.GetParty(ctx, "STAT22")
	require.NoError(t, err)
	assert.Equal(t, enums.PartyStatusPreferencesAggregated, got.Status)

	err = repo.UpdatePartyStatus(ctx, "MISSING", enums.PartyStatusResultsReady, at)
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestRepositoryGuestsUpsertAndOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedParty(t, repo, "GUEST2")

	base := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertGuest(ctx, GuestSubmission{
		PartyCode: "GUEST2", GuestID: "zoe", Preferences: []byte(`{"a":1}`),
		Status: enums.GuestStatusSubmitted, UploadedAt: base,
	}))
	require.NoError(t, repo.UpsertGuest(ctx, GuestSubmission{
		PartyCode: "GUEST2", GuestID: "amy", Preferences: []byte(`{"b":2}`),
		Status: enums.GuestStatusSubmitted, UploadedAt: base.Add(time.Minute),
	}))
	// resubmission replaces the document in place
	require.NoError(t, repo.UpsertGuest(ctx, GuestSubmission{
		PartyCode: "GUEST2", GuestID: "zoe", Preferences: []byte(`{"a":3}`),
		Status: enums.GuestStatusSubmitted, UploadedAt: base.Add(2 * time.Minute),
	}))

	guests, err := repo.ListGuests(ctx, "GUEST2")
	require.NoError(t, err)
	require.Len(t, guests, 2)
	assert.Equal(t, "amy", guests[0].GuestID)
	assert.Equal(t, "zoe", guests[1].GuestID)
	assert.JSONEq(t, `{"a":3}`, string(guests[1].Preferences))

	_, err = repo.ListGuests(ctx, "NOPE99")
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestRepositoryListGuestsEmptyParty(t *testing.T) {
	repo := newTestRepository(t)
	seedParty(t, repo, "EMPTY2")

	guests, err := repo.ListGuests(context.Background(), "EMPTY2")
	require.NoError(t, err)
	assert.Empty(t, guests)
}

func TestRepositoryCombinedOverwrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedParty(t, repo, "COMB22")

	_, err := repo.LatestCombined(ctx, "COMB22")
	assert.ErrorIs(t, err, ErrNoCombined)

	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveCombined(ctx, CombinedRecord{
		PartyCode: "COMB22", Document: []byte(`{"v":1}`), Status: "PREFERENCES_AGGREGATED",
		IterationCount: 1, GuestCount: 2, UpdatedAt: at,
	}))
	require.NoError(t, repo.SaveCombined(ctx, CombinedRecord{
		PartyCode: "COMB22", Document: []byte(`{"v":2}`), Status: "PREFERENCES_COMPLETE",
		IterationCount: 2, GuestCount: 3, HostInputIntegrated: true, UpdatedAt: at.Add(time.Hour),
	}))

	got, err := repo.LatestCombined(ctx, "COMB22")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Document))
	assert.Equal(t, 2, got.IterationCount)
	assert.Equal(t, 3, got.GuestCount)
	assert.True(t, got.HostInputIntegrated)
}

func TestRepositoryLatestResults(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedParty(t, repo, "RSLT22")

	_, err := repo.LatestResults(ctx, "RSLT22")
	assert.ErrorIs(t, err, ErrNoResults)

	at := time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveResults(ctx, ResultsRecord{
		ID: "r1", PartyCode: "RSLT22", Document: []byte(`{"n":1}`),
		TotalRecommendations: 3, ConfidenceLevel: "Low", CreatedAt: at,
	}))
	require.NoError(t, repo.SaveResults(ctx, ResultsRecord{
		ID: "r2", PartyCode: "RSLT22", Document: []byte(`{"n":2}`),
		TotalRecommendations: 5, ConfidenceLevel: "High", CreatedAt: at.Add(time.Minute),
	}))

	got, err := repo.LatestResults(ctx, "RSLT22")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ID)
	assert.Equal(t, 5, got.TotalRecommendations)
	assert.Equal(t, "High", got.ConfidenceLevel)

	err = repo.SaveResults(ctx, ResultsRecord{ID: "r3", PartyCode: "NOPE99", Document: []byte(`{}`), CreatedAt: at})
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestRepositoryPing(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
