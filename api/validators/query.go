package validators

import (
	"net/http"
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/forkcast-backend/pkg/errors"
)

var (
	regionCodeRe   = regexp.MustCompile(`^[a-z]{2}$`)
	languageCodeRe = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})*$`)
)

// QueryRegionCode reads an optional two-letter region code such as "us". Empty is allowed.
func QueryRegionCode(r *http.Request, key string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" || regionCodeRe.MatchString(raw) {
		return raw, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a two-letter region code").
		WithDetails(map[string]any{"field": key})
}

// QueryLanguageCode reads an optional language tag such as "en" or "pt-br". Empty is allowed.
func QueryLanguageCode(r *http.Request, key string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" || languageCodeRe.MatchString(raw) {
		return raw, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a language tag").
		WithDetails(map[string]any{"field": key})
}
