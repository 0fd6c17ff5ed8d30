package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/telemetry"
)

const (
	DefaultTokenCacheSize = 1024
	DefaultTokenCacheTTL  = 30 * time.Minute
)

// TokenCache remembers decoded tokens so repeat requests skip signature checks.
// An entry is never served once the token itself has expired.
type TokenCache struct {
	lru *expirable.LRU[string, *models.Session]
}

// NewTokenCache creates a cache holding up to size entries for at most ttl.
func NewTokenCache(size int, ttl time.Duration) *TokenCache {
	return &TokenCache{
		lru: expirable.NewLRU[string, *models.Session](size, nil, ttl),
	}
}

// Get returns the cached session for token if it is still valid at now.
func (c *TokenCache) Get(token string, now time.Time) (*models.Session, bool) {
	ctx := context.Background()
	m := telemetry.GetMetrics()

	session, ok := c.lru.Get(token)
	if !ok {
		m.TokenCacheMisses.Add(ctx, 1)
		return nil, false
	}

	if session.IsExpired(now) {
		c.lru.Remove(token)
		m.TokenCacheMisses.Add(ctx, 1)
		return nil, false
	}

	m.TokenCacheHits.Add(ctx, 1)
	copied := *session
	return &copied, true
}

// Add stores a validated session.
func (c *TokenCache) Add(token string, session *models.Session) {
	copied := *session
	c.lru.Add(token, &copied)
}

// Len returns the number of cached entries.
func (c *TokenCache) Len() int {
	return c.lru.Len()
}
