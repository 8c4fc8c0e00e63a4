package parties

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCodeUsesUnambiguousAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := NewCode()
		assert.Len(t, code, codeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q in %s", r, code)
		}
		_, ok := NormalizeCode(code)
		assert.True(t, ok)
	}
}

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: " abc234 ", want: "ABC234", ok: true},
		{in: "team_party-1", want: "TEAM_PARTY-1", ok: true},
		{in: "abc", want: "ABC", ok: false},
		{in: "ab/cd", want: "AB/CD", ok: false},
		{in: "", want: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := NormalizeCode(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}
