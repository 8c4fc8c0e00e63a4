package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/forkcast-backend/api/responses"
	"github.com/angelmondragon/forkcast-backend/api/validators"
	"github.com/angelmondragon/forkcast-backend/internal/location"
	pkgerrors "github.com/angelmondragon/forkcast-backend/pkg/errors"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
)

type resolveLocationPayload struct {
	PlaceID string `json:"place_id" validate:"required,max=512"`
}

// LocationSuggest returns place autocomplete suggestions for the location picker.
func LocationSuggest(svc location.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "location service unavailable"))
			return
		}

		country, err := validators.QueryRegionCode(r, "country")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		language, err := validators.QueryLanguageCode(r, "language")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		req := location.SuggestRequest{
			Query:    validators.SanitizeString(r.URL.Query().Get("query"), 200),
			Country:  country,
			Language: language,
		}

		resp, err := svc.Suggest(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"suggestions": resp})
	}
}

// LocationResolve turns a place id from LocationSuggest into coordinates.
func LocationResolve(svc location.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "location service unavailable"))
			return
		}

		var payload resolveLocationPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		loc, err := svc.Resolve(ctx, location.ResolveRequest{PlaceID: strings.TrimSpace(payload.PlaceID)})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, loc)
	}
}
