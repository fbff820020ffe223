package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viewer360/viewer360/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
)

var (
	client     *redis.Client
	miniRedis  *miniredis.Miniredis
	ctx        = context.Background()
	isEmbedded = atomic.NewBool(true)

	hits   = atomic.NewInt64(0)
	misses = atomic.NewInt64(0)
)

var errNotInitialized = errors.New("redis client not initialized")

// InitRedis connects to redisAddr, or starts an embedded server when it is empty.
func InitRedis(redisAddr string) error {
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start embedded Redis: %w", err)
		}
		miniRedis = mr
		client = redis.NewClient(&redis.Options{
			Addr: mr.Addr(),
		})
		isEmbedded.Store(true)
		logger.Info("Embedded Redis started on", mr.Addr())
		return nil
	}

	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		opts = &redis.Options{Addr: redisAddr}
	}
	c := redis.NewClient(opts)
	if _, err := c.Ping(ctx).Result(); err != nil {
		c.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", redisAddr, err)
	}
	client = c
	isEmbedded.Store(false)
	logger.Info("Connected to external Redis at", opts.Addr)
	return nil
}

func GetClient() *redis.Client {
	return client
}

func IsEmbedded() bool {
	return isEmbedded.Load()
}

// HitRatio reports cache hits and misses of GetJSON since start.
func HitRatio() (int64, int64) {
	return hits.Load(), misses.Load()
}

// Close closes the client and stops the embedded server if running.
func Close() error {
	var err error
	if client != nil {
		err = client.Close()
		client = nil
	}
	if miniRedis != nil {
		miniRedis.Close()
		miniRedis = nil
	}
	return err
}

func Set(key string, value any, expiration time.Duration) error {
	if client == nil {
		return errNotInitialized
	}
	return client.Set(ctx, key, value, expiration).Err()
}

// Get returns ErrMiss for absent keys.
func Get(key string) (string, error) {
	if client == nil {
		return "", errNotInitialized
	}
	result, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return result, err
}

func Delete(key string) error {
	if client == nil {
		return errNotInitialized
	}
	return client.Del(ctx, key).Err()
}

// Incr bumps a counter, setting its expiry when it is created.
func Incr(key string, window time.Duration) (int64, error) {
	if client == nil {
		return 0, errNotInitialized
	}
	pipe := client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
