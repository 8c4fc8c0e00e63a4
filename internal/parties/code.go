package parties

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{4,32}$`)

// NewCode returns a six character party code drawn from random UUID bytes.
// The alphabet leaves out 0, O, 1 and I.
func NewCode() string {
	id := uuid.New()
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[int(id[i])%len(codeAlphabet)])
	}
	return b.String()
}

// NormalizeCode upper-cases and trims a user supplied code. It reports false when
// the result is not a valid party code.
func NormalizeCode(code string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	return c, codePattern.MatchString(c)
}
