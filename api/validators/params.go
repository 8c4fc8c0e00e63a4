package validators

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/forkcast-backend/pkg/errors"
)

var (
	partyCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{4,32}$`)
	guestIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_.@:-]{1,128}$`)
)

// PartyCodeParam reads and normalizes the {partyCode} path parameter.
func PartyCodeParam(r *http.Request) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "partyCode")))
	if !partyCodePattern.MatchString(code) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid party code").WithDetails(map[string]any{"field": "partyCode"})
	}
	return code, nil
}

// GuestIDParam reads the {guestId} path parameter.
func GuestIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "guestId"))
	if !guestIDPattern.MatchString(id) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid guest id").WithDetails(map[string]any{"field": "guestId"})
	}
	return id, nil
}
