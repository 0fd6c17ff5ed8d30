package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/models"
)

func TestTokenCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache(2, time.Hour)

	cache.Add("a", &models.Session{Registration: "001.0001.000", ExpiresAt: now.Add(time.Minute)})

	session, ok := cache.Get("a", now)
	require.True(t, ok)
	require.Equal(t, "001.0001.000", session.Registration)

	// returned sessions are copies
	session.Registration = "changed"
	session, ok = cache.Get("a", now)
	require.True(t, ok)
	require.Equal(t, "001.0001.000", session.Registration)

	_, ok = cache.Get("missing", now)
	require.False(t, ok)

	_, ok = cache.Get("a", now.Add(time.Minute))
	require.False(t, ok)
	require.Equal(t, 0, cache.Len())
}

func TestTokenCache_bounded(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache(2, time.Hour)

	for _, token := range []string{"a", "b", "c"} {
		cache.Add(token, &models.Session{Registration: token, ExpiresAt: now.Add(time.Hour)})
	}

	require.Equal(t, 2, cache.Len())
	_, ok := cache.Get("a", now)
	require.False(t, ok)
}
