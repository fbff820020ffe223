package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/web/cache"
	"github.com/viewer360/viewer360/web/entity"
	"github.com/viewer360/viewer360/web/locale"

	"github.com/gin-gonic/gin"
)

type RateLimitConfig struct {
	RequestsPerMinute int
	KeyFunc           func(c *gin.Context) string
	SkipPaths         []string
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
		SkipPaths: []string{"/uploads/", "/favicon.ico"},
	}
}

func (config RateLimitConfig) shouldSkip(path string) bool {
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// RateLimitMiddleware counts requests per client and path in fixed one-minute
// windows kept in Redis. Without Redis, or with a zero limit, it lets every
// request through.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.RequestsPerMinute <= 0 || cache.GetClient() == nil || config.shouldSkip(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := config.KeyFunc(c)
		rateLimitKey := cache.KeyRateLimitPrefix + key + ":" + c.FullPath()

		count, err := cache.Incr(rateLimitKey, time.Minute)
		if err != nil {
			logger.Warning("Rate limit increment failed:", err)
			c.Next()
			return
		}

		remaining := config.RequestsPerMinute - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > config.RequestsPerMinute {
			logger.Warningf("Rate limit exceeded for %s on %s (count: %d)", key, c.Request.URL.Path, count)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, entity.Msg{
				Msg: locale.I18n(c, "tooManyRequests"),
			})
			return
		}
		c.Next()
	}
}
