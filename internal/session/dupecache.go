package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"spotify-dupe-finder/internal/dupes"
)

const (
	userPrefix     = "user:"
	fieldDupeSongs = "duplicate_songs"
)

// DupeCache stores computed duplicate-song results per Spotify user. It is
// keyed by the Spotify user id rather than the session, so a result
// survives session expiry and rotation for the same account.
type DupeCache struct {
	rdb *redis.Client
}

// NewDupeCache creates a Redis-backed duplicate-result cache.
func NewDupeCache(rdb *redis.Client) *DupeCache {
	return &DupeCache{rdb: rdb}
}

// Put serializes the result and stores it under the user's key,
// overwriting any previous result.
func (c *DupeCache) Put(ctx context.Context, spotifyID string, result dupes.SongMap) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding duplicate result: %w", err)
	}
	if err := c.rdb.HSet(ctx, userPrefix+spotifyID, fieldDupeSongs, data).Err(); err != nil {
		return fmt.Errorf("writing duplicate result: %w", err)
	}
	return nil
}

// Get returns the cached result for a user, or nil when none is cached.
func (c *DupeCache) Get(ctx context.Context, spotifyID string) (dupes.SongMap, error) {
	data, err := c.rdb.HGet(ctx, userPrefix+spotifyID, fieldDupeSongs).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading duplicate result: %w", err)
	}

	var result dupes.SongMap
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("decoding duplicate result: %w", err)
	}
	return result, nil
}

// Has reports whether a result is cached for the user.
func (c *DupeCache) Has(ctx context.Context, spotifyID string) (bool, error) {
	ok, err := c.rdb.HExists(ctx, userPrefix+spotifyID, fieldDupeSongs).Result()
	if err != nil {
		return false, fmt.Errorf("checking duplicate result: %w", err)
	}
	return ok, nil
}
