package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	// Cache key prefixes
	CacheKeyAllDevices      = "sns:devices:all"
	CacheKeyDivisionDevices = "sns:divisions:devices:"

	// Cache TTLs
	CacheTTLDevices = 2 * time.Minute
)

// ErrCacheDisabled is returned when no Redis client is configured.
var ErrCacheDisabled = errors.New("cache disabled")

// CacheGet retrieves a value from Redis cache and unmarshals it into dest
func CacheGet(key string, dest interface{}) error {
	if Redis == nil {
		return ErrCacheDisabled
	}
	ctx := context.Background()
	data, err := Redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// CacheSet stores a value in Redis cache with TTL
func CacheSet(key string, value interface{}, ttl time.Duration) error {
	if Redis == nil {
		return nil
	}
	ctx := context.Background()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return Redis.Set(ctx, key, data, ttl).Err()
}

// CacheDelete removes a key from Redis cache
func CacheDelete(keys ...string) error {
	if Redis == nil || len(keys) == 0 {
		return nil
	}
	ctx := context.Background()
	return Redis.Del(ctx, keys...).Err()
}

// CacheDeletePattern deletes all keys matching a pattern (use with caution)
func CacheDeletePattern(pattern string) error {
	if Redis == nil {
		return nil
	}
	ctx := context.Background()
	iter := Redis.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return Redis.Del(ctx, keys...).Err()
	}
	return nil
}

// InvalidateDeviceCache clears all device-directory caches. Called after any
// device or division membership write.
func InvalidateDeviceCache() {
	CacheDelete(CacheKeyAllDevices)
	CacheDeletePattern(CacheKeyDivisionDevices + "*")
}
