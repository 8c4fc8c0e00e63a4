package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/forkcast-backend/internal/parties"
	"github.com/angelmondragon/forkcast-backend/internal/preferences"
	"github.com/angelmondragon/forkcast-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/forkcast-backend/pkg/errors"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
)

type stubPartyService struct {
	createInput parties.CreatePartyInput
	guestRaw    []byte
	hostRaw     []byte
	aggregated  bool
	resultsRaw  []byte
	err         error
}

func (s *stubPartyService) CreateParty(_ context.Context, in parties.CreatePartyInput) (*parties.PartyDTO, error) {
	s.createInput = in
	if s.err != nil {
		return nil, s.err
	}
	return &parties.PartyDTO{Code: "AB12CD", HostName: in.HostName, Status: enums.PartyStatusCreated}, nil
}

func (s *stubPartyService) GetParty(_ context.Context, code string) (*parties.PartyDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &parties.PartyDTO{Code: code, Status: enums.PartyStatusCreated}, nil
}

func (s *stubPartyService) SubmitGuestPreferences(_ context.Context, code, guestID string, raw []byte) (*parties.GuestSubmissionDTO, error) {
	s.guestRaw = raw
	if s.err != nil {
		return nil, s.err
	}
	return &parties.GuestSubmissionDTO{PartyCode: code, GuestID: guestID, Status: enums.GuestStatusSubmitted}, nil
}

func (s *stubPartyService) AggregateParty(_ context.Context, _ string, hostRaw []byte) (*preferences.CombinedPreferences, error) {
	s.aggregated = true
	s.hostRaw = hostRaw
	if s.err != nil {
		return nil, s.err
	}
	return &preferences.CombinedPreferences{Status: preferences.StatusComplete}, nil
}

func (s *stubPartyService) LatestPreferences(_ context.Context, _ string) (*preferences.CombinedPreferences, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &preferences.CombinedPreferences{Status: preferences.StatusIncomplete}, nil
}

func (s *stubPartyService) SaveResults(_ context.Context, code string, raw []byte) (*parties.ResultsDTO, error) {
	s.resultsRaw = raw
	if s.err != nil {
		return nil, s.err
	}
	return &parties.ResultsDTO{ID: "r1", PartyCode: code, Status: enums.ResultsStatusCompleted}, nil
}

func (s *stubPartyService) LatestResults(_ context.Context, code string) (*parties.ResultsDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &parties.ResultsDTO{ID: "r1", PartyCode: code}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func partyRequest(method, target string, body io.Reader, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestPartyCreate(t *testing.T) {
	logg := testLogger()

	t.Run("created", func(t *testing.T) {
		svc := &stubPartyService{}
		rec := httptest.NewRecorder()
		PartyCreate(svc, logg).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/parties", strings.NewReader(`{"host_name":" Ana "}`)))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Ana", svc.createInput.HostName)
		var body struct {
			Data parties.PartyDTO `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "AB12CD", body.Data.Code)
	})

	t.Run("missing host", func(t *testing.T) {
		rec := httptest.NewRecorder()
		PartyCreate(&stubPartyService{}, logg).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/parties", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("nil service", func(t *testing.T) {
		rec := httptest.NewRecorder()
		PartyCreate(nil, logg).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/parties", strings.NewReader(`{"host_name":"Ana"}`)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestPartyGetInvalidCode(t *testing.T) {
	rec := httptest.NewRecorder()
	req := partyRequest(http.MethodGet, "/api/v1/parties/x", nil, map[string]string{"partyCode": "x"})
	PartyGet(&stubPartyService{}, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPartyGetNotFound(t *testing.T) {
	svc := &stubPartyService{err: pkgerrors.New(pkgerrors.CodeNotFound, "party not found")}
	rec := httptest.NewRecorder()
	req := partyRequest(http.MethodGet, "/api/v1/parties/AB12CD", nil, map[string]string{"partyCode": "AB12CD"})
	PartyGet(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotFound), errorCode(t, rec))
}

func TestPartySubmitGuest(t *testing.T) {
	params := map[string]string{"partyCode": "ab12cd", "guestId": "guest-1"}

	t.Run("stores raw document", func(t *testing.T) {
		svc := &stubPartyService{}
		rec := httptest.NewRecorder()
		body := `{"cuisine_type_preferences":{"desired":["Thai"]}}`
		PartySubmitGuest(svc, 1024, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPut, "/", strings.NewReader(body), params))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, body, string(svc.guestRaw))
	})

	t.Run("not an object", func(t *testing.T) {
		svc := &stubPartyService{}
		rec := httptest.NewRecorder()
		PartySubmitGuest(svc, 1024, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPut, "/", strings.NewReader(`["Thai"]`), params))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, svc.guestRaw)
	})

	t.Run("too large", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := `{"notes":"` + strings.Repeat("x", 64) + `"}`
		PartySubmitGuest(&stubPartyService{}, 32, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPut, "/", strings.NewReader(body), params))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("party closed", func(t *testing.T) {
		svc := &stubPartyService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "party no longer accepts guest preferences")}
		rec := httptest.NewRecorder()
		PartySubmitGuest(svc, 1024, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPut, "/", strings.NewReader(`{}`), params))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPartyAggregate(t *testing.T) {
	params := map[string]string{"partyCode": "AB12CD"}

	t.Run("empty body", func(t *testing.T) {
		svc := &stubPartyService{}
		rec := httptest.NewRecorder()
		PartyAggregate(svc, 1024, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPost, "/", nil, params))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, svc.aggregated)
		assert.Nil(t, svc.hostRaw)
	})

	t.Run("null host", func(t *testing.T) {
		svc := &stubPartyService{}
		rec := httptest.NewRecorder()
		PartyAggregate(svc, 1024, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPost, "/", strings.NewReader(`{"host_preferences":null}`), params))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, svc.hostRaw)
	})

	t.Run("host document", func(t *testing.T) {
		svc := &stubPartyService{}
		rec := httptest.NewRecorder()
		body := `{"host_preferences":{"preferences":{"context_preferences":{"group_size":2}}}}`
		PartyAggregate(svc, 1024, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPost, "/", strings.NewReader(body), params))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"preferences":{"context_preferences":{"group_size":2}}}`, string(svc.hostRaw))

		var resp struct {
			Data preferences.CombinedPreferences `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, preferences.StatusComplete, resp.Data.Status)
	})

	t.Run("no guests", func(t *testing.T) {
		svc := &stubPartyService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "no guest preferences submitted yet")}
		rec := httptest.NewRecorder()
		PartyAggregate(svc, 1024, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPost, "/", nil, params))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, rec))
	})
}

func TestPartyPreferencesAndResults(t *testing.T) {
	params := map[string]string{"partyCode": "AB12CD"}
	svc := &stubPartyService{}

	rec := httptest.NewRecorder()
	PartyPreferences(svc, testLogger()).ServeHTTP(rec, partyRequest(http.MethodGet, "/", nil, params))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	PartySaveResults(svc, 1024, testLogger()).ServeHTTP(rec, partyRequest(http.MethodPost, "/", strings.NewReader(`{"final_results":{}}`), params))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"final_results":{}}`, string(svc.resultsRaw))

	rec = httptest.NewRecorder()
	PartyResults(svc, testLogger()).ServeHTTP(rec, partyRequest(http.MethodGet, "/", nil, params))
	assert.Equal(t, http.StatusOK, rec.Code)
}
