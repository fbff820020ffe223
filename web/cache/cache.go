// Package cache holds the Redis-backed shared state of the panel: cached admin
// statistics, rate limit counters and the optional session store.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/viewer360/viewer360/logger"

	"github.com/goccy/go-json"
)

const (
	TTLAdminStats = 30 * time.Second
)

const (
	KeyAdminStats      = "admin:stats"
	KeyRateLimitPrefix = "ratelimit:"
)

var ErrMiss = errors.New("cache miss")

// GetJSON loads key and unmarshals it into dest. ErrMiss is returned when the
// key is absent.
func GetJSON(key string, dest any) error {
	val, err := Get(key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			misses.Inc()
		}
		return err
	}
	hits.Inc()
	if val == "" {
		return fmt.Errorf("empty value for key: %s", key)
	}
	return json.Unmarshal([]byte(val), dest)
}

func SetJSON(key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return Set(key, string(data), expiration)
}

// GetOrSet fills dest from the cache, or from fn on a miss. Without Redis fn is
// always called.
func GetOrSet[T any](key string, dest *T, expiration time.Duration, fn func() (T, error)) error {
	if client != nil {
		err := GetJSON(key, dest)
		if err == nil {
			logger.Debugf("Cache hit for key: %s", key)
			return nil
		}
		if !errors.Is(err, ErrMiss) {
			logger.Warningf("cache read %s failed: %v", key, err)
		}
	}

	value, err := fn()
	if err != nil {
		return err
	}
	*dest = value

	if client != nil {
		if err := SetJSON(key, value, expiration); err != nil {
			logger.Warningf("Failed to set cache for key %s: %v", key, err)
		}
	}
	return nil
}

// InvalidateAdminStats drops the cached statistics after content changes.
func InvalidateAdminStats() {
	if client == nil {
		return
	}
	if err := Delete(KeyAdminStats); err != nil {
		logger.Debug("invalidate admin stats:", err)
	}
}
