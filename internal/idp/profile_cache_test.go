package idp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "flock/pkg/domain-errors"
)

type fakeCache struct {
	entries map[string]string
	getErr  error
	setErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	val, ok := f.entries[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.sets++
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.entries[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

type countingFetcher struct {
	calls   int
	profile *UserProfile
	err     error
}

func (c *countingFetcher) FetchUserProfile(_ context.Context, _ string) (*UserProfile, error) {
	c.calls++
	return c.profile, c.err
}

func testProfile() *UserProfile {
	email := "ada@example.com"
	verified := true
	return &UserProfile{Subject: "auth0|u1", Email: &email, EmailVerified: &verified}
}

func TestCachedFetcherMissThenHit(t *testing.T) {
	cache := newFakeCache()
	delegate := &countingFetcher{profile: testProfile()}
	fetcher := NewCachedProfileFetcher(delegate, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	first, err := fetcher.FetchUserProfile(context.Background(), "token-a")
	require.NoError(t, err)
	assert.Equal(t, "auth0|u1", first.Subject)
	assert.Equal(t, 1, delegate.calls)

	second, err := fetcher.FetchUserProfile(context.Background(), "token-a")
	require.NoError(t, err)
	assert.Equal(t, "auth0|u1", second.Subject)
	require.NotNil(t, second.Email)
	assert.Equal(t, "ada@example.com", *second.Email)
	assert.Equal(t, 1, delegate.calls, "second call should be served from cache")
}

func TestCachedFetcherDifferentTokensMissSeparately(t *testing.T) {
	cache := newFakeCache()
	delegate := &countingFetcher{profile: testProfile()}
	fetcher := NewCachedProfileFetcher(delegate, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := fetcher.FetchUserProfile(context.Background(), "token-a")
	require.NoError(t, err)
	_, err = fetcher.FetchUserProfile(context.Background(), "token-b")
	require.NoError(t, err)
	assert.Equal(t, 2, delegate.calls)
}

func TestCachedFetcherReadErrorFallsThrough(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	delegate := &countingFetcher{profile: testProfile()}
	fetcher := NewCachedProfileFetcher(delegate, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	profile, err := fetcher.FetchUserProfile(context.Background(), "token-a")
	require.NoError(t, err)
	assert.Equal(t, "auth0|u1", profile.Subject)
	assert.Equal(t, 1, delegate.calls)
}

func TestCachedFetcherDoesNotCacheFailures(t *testing.T) {
	cache := newFakeCache()
	delegate := &countingFetcher{err: dErrors.New(dErrors.CodeRemote, "userinfo unavailable")}
	fetcher := NewCachedProfileFetcher(delegate, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := fetcher.FetchUserProfile(context.Background(), "token-a")
	require.Error(t, err)
	assert.Zero(t, cache.sets)

	_, err = fetcher.FetchUserProfile(context.Background(), "token-a")
	require.Error(t, err)
	assert.Equal(t, 2, delegate.calls)
}

func TestCachedFetcherOverwritesCorruptEntry(t *testing.T) {
	cache := newFakeCache()
	cache.entries[cacheKey("token-a")] = "{not json"
	delegate := &countingFetcher{profile: testProfile()}
	fetcher := NewCachedProfileFetcher(delegate, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	profile, err := fetcher.FetchUserProfile(context.Background(), "token-a")
	require.NoError(t, err)
	assert.Equal(t, "auth0|u1", profile.Subject)
	assert.Equal(t, 1, delegate.calls)
	assert.Equal(t, 1, cache.sets)
}
