package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_DisplayName(t *testing.T) {
	u := &User{ID: "u1", Email: "listener@example.com"}
	assert.Equal(t, "listener@example.com", u.DisplayName())

	u.FullName = "Test Listener"
	assert.Equal(t, "Test Listener", u.DisplayName())
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{name: "no expiry", expiresAt: time.Time{}, expected: false},
		{name: "future", expiresAt: now.Add(time.Hour), expected: false},
		{name: "exactly now", expiresAt: now, expected: true},
		{name: "past", expiresAt: now.Add(-time.Second), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{AccessToken: "token", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, s.Expired(now))
		})
	}
}
