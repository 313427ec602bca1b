package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasswordStrong(t *testing.T) {
	cases := []struct {
		pw string
		ok bool
	}{
		{"ABcdefg1", true},
		{"XYlongerPassword9", true},
		{"short1A", false},    // under 8 chars
		{"abcdefgh1", false},  // no capitals
		{"Abcdefgh1", false},  // one capital only
		{"ABcdefghi", false},  // no digit
		{"", false},
	}

	for _, c := range cases {
		assert.Equal(t, c.ok, passwordStrong(c.pw), "password %q", c.pw)
	}
}
