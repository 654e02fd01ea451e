package idp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProfileCache is the slice of the redis command surface the cache uses.
// *redis.Client satisfies it.
type ProfileCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedProfileFetcher wraps a profile fetcher with a short-lived redis
// cache keyed by a digest of the access token. Userinfo calls dominate IdP
// traffic under load; caching them keeps verification latency flat without
// extending token lifetime, since entries expire on their own and a new
// token never hits an old entry. Failures are never cached, and any cache
// error falls through to the delegate.
type CachedProfileFetcher struct {
	delegate profileFetcher
	cache    ProfileCache
	ttl      time.Duration
	logger   *slog.Logger
}

type profileFetcher interface {
	FetchUserProfile(ctx context.Context, accessToken string) (*UserProfile, error)
}

func NewCachedProfileFetcher(delegate profileFetcher, cache ProfileCache, ttl time.Duration, logger *slog.Logger) *CachedProfileFetcher {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProfileFetcher{delegate: delegate, cache: cache, ttl: ttl, logger: logger}
}

// cacheKey digests the token so the raw credential never reaches redis.
func cacheKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return "idp:profile:" + hex.EncodeToString(sum[:])
}

func (c *CachedProfileFetcher) FetchUserProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	key := cacheKey(accessToken)

	raw, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		var profile UserProfile
		if jsonErr := json.Unmarshal([]byte(raw), &profile); jsonErr == nil {
			return &profile, nil
		}
		// Corrupt entry; fall through and overwrite it.
	case err != redis.Nil:
		c.logger.WarnContext(ctx, "profile cache read failed", "error", err)
	}

	profile, err := c.delegate.FetchUserProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(profile); jsonErr == nil {
		if setErr := c.cache.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "profile cache write failed", "error", setErr)
		}
	}
	return profile, nil
}
