package oauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_ReturnsCachedWithinTTL(t *testing.T) {
	fetches := 0
	c := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		fetches++
		return "tok-1", 10 * time.Minute, nil
	})

	tok, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)

	tok, err = c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)
	require.Equal(t, 1, fetches)
}

func TestTokenCache_RefreshesAfterExpiry(t *testing.T) {
	fetches := 0
	c := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		fetches++
		if fetches == 1 {
			return "tok-1", 10 * time.Minute, nil
		}
		return "tok-2", 10 * time.Minute, nil
	})

	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	// Within the TTL minus the safety margin the same token comes back.
	now = now.Add(8 * time.Minute)
	tok, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)
	require.Equal(t, 1, fetches)

	// Past expiry exactly one new fetch happens.
	now = now.Add(2 * time.Minute)
	tok, err = c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-2", tok)
	require.Equal(t, 2, fetches)
}

func TestTokenCache_SafetyMargin(t *testing.T) {
	fetches := 0
	c := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		fetches++
		return "tok", 90 * time.Second, nil
	})

	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	// 90s TTL minus the 60s margin leaves 30s of usable lifetime.
	now = now.Add(31 * time.Second)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, fetches)
}

func TestTokenCache_FetchErrorPropagates(t *testing.T) {
	c := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		return "", 0, errors.New("token endpoint down")
	})

	_, err := c.Get(context.Background())
	require.Error(t, err)
}

func TestTokenCache_SingleRefreshUnderConcurrency(t *testing.T) {
	var mu sync.Mutex
	fetches := 0
	c := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		mu.Lock()
		fetches++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return "tok", 10 * time.Minute, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.Get(context.Background())
			require.NoError(t, err)
			require.Equal(t, "tok", tok)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, fetches)
}
