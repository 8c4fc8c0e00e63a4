package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/forkcast-backend/api/responses"
	"github.com/angelmondragon/forkcast-backend/api/validators"
	"github.com/angelmondragon/forkcast-backend/internal/parties"
	pkgerrors "github.com/angelmondragon/forkcast-backend/pkg/errors"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
)

type createPartyRequest struct {
	HostName string `json:"host_name" validate:"required,min=1,max=120"`
}

type aggregateRequest struct {
	HostPreferences json.RawMessage `json:"host_preferences"`
}

func partyServiceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "party service unavailable"))
}

// PartyCreate opens a new party and returns its shareable code.
func PartyCreate(svc parties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			partyServiceUnavailable(w, r, logg)
			return
		}

		var payload createPartyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		party, err := svc.CreateParty(r.Context(), parties.CreatePartyInput{
			HostName: validators.SanitizeString(payload.HostName, 120),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteCreated(w, party)
	}
}

func PartyGet(svc parties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			partyServiceUnavailable(w, r, logg)
			return
		}

		code, err := validators.PartyCodeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		party, err := svc.GetParty(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, party)
	}
}

// PartySubmitGuest stores (or replaces) one guest's preference document. The body is
// either the bare preference object or a query-details document wrapping it.
func PartySubmitGuest(svc parties.Service, maxDocBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			partyServiceUnavailable(w, r, logg)
			return
		}

		code, err := validators.PartyCodeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		guestID, err := validators.GuestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw, err := validators.ReadJSONObject(r, maxDocBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		sub, err := svc.SubmitGuestPreferences(ctx, code, guestID, raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, sub)
	}
}

// PartyAggregate combines every guest submission, plus the optional host document,
// into the party's combined preferences.
func PartyAggregate(svc parties.Service, maxDocBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			partyServiceUnavailable(w, r, logg)
			return
		}

		code, err := validators.PartyCodeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw, err := validators.ReadOptionalJSONObject(r, maxDocBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload aggregateRequest
		if raw != nil {
			if err := json.Unmarshal(raw, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
				return
			}
		}

		var host []byte
		if trimmed := bytes.TrimSpace(payload.HostPreferences); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			host = trimmed
		}

		ctx := r.Context()
		combined, err := svc.AggregateParty(ctx, code, host)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, combined)
	}
}

// PartyPreferences returns the latest combined preferences of a party.
func PartyPreferences(svc parties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			partyServiceUnavailable(w, r, logg)
			return
		}

		code, err := validators.PartyCodeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		combined, err := svc.LatestPreferences(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, combined)
	}
}

// PartySaveResults stores the final restaurant results for a party.
func PartySaveResults(svc parties.Service, maxDocBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			partyServiceUnavailable(w, r, logg)
			return
		}

		code, err := validators.PartyCodeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw, err := validators.ReadJSONObject(r, maxDocBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		saved, err := svc.SaveResults(ctx, code, raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteCreated(w, saved)
	}
}

func PartyResults(svc parties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			partyServiceUnavailable(w, r, logg)
			return
		}

		code, err := validators.PartyCodeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.LatestResults(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, results)
	}
}
