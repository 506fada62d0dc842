package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizePurge(t *testing.T) {
	cases := []struct {
		name     string
		adminKey string
		supplied string
		want     bool
	}{
		{"correct key", "trustno1", "trustno1", true},
		{"wrong key", "trustno1", "letmein", false},
		{"empty supplied", "trustno1", "", false},
		{"case sensitive", "trustno1", "TRUSTNO1", false},
		{"unset admin key disables purge", "", "", false},
		{"unset admin key rejects any key", "", "trustno1", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAuthority(tc.adminKey)
			assert.Equal(t, tc.want, a.AuthorizePurge(tc.supplied))
		})
	}
}

func TestAuthorizePurge_NoLockout(t *testing.T) {
	a := NewAuthority("trustno1")

	// Repeated failures never lock out a subsequent correct attempt.
	for i := 0; i < 100; i++ {
		assert.False(t, a.AuthorizePurge("wrong"))
	}
	assert.True(t, a.AuthorizePurge("trustno1"))
}
