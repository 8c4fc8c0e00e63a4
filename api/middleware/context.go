package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/forkcast-backend/api/responses"
	"github.com/angelmondragon/forkcast-backend/api/validators"
	"github.com/angelmondragon/forkcast-backend/pkg/logger"
)

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxPartyCode contextKey = "party_code"
)

// RequestIDFromContext returns the request id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

// PartyCodeFromContext returns the normalized party code captured by PartyScope.
func PartyCodeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxPartyCode).(string); ok {
		return v
	}
	return ""
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// WithPartyCode stores an already normalized party code on ctx.
func WithPartyCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, ctxPartyCode, code)
}

// PartyScope validates the {partyCode} route parameter once for every nested route and
// tags the context and log fields with it. A malformed code ends the request with 400.
func PartyScope(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code, err := validators.PartyCodeParam(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithPartyCode(r.Context(), code)
			if logg != nil {
				ctx = logg.WithPartyCode(ctx, code)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
