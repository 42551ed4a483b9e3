// Package oauth caches short-lived bearer tokens for carrier APIs.
package oauth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SafetyMargin is subtracted from the provider-declared token lifetime so a
// token is never used within a minute of its expiry.
const SafetyMargin = 60 * time.Second

// FetchFunc performs the network call to the provider's token endpoint and
// returns the token with its declared time-to-live.
type FetchFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenCache caches one bearer token per backend. All callers of the same
// backend share one instance; the mutex guarantees at most one refresh in
// flight, with concurrent callers blocking until it completes.
type TokenCache struct {
	fetch FetchFunc
	now   func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenCache(fetch FetchFunc) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

// Get returns the cached token when it is still valid, otherwise fetches a
// new one. A fetch failure propagates: without a token no status check is
// possible.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	token, ttl, err := c.fetch(ctx)
	if err != nil {
		return "", errors.Wrap(err, "fetch token")
	}

	ttl -= SafetyMargin
	if ttl < 0 {
		ttl = 0
	}

	c.token = token
	c.expiry = c.now().Add(ttl)
	return token, nil
}
