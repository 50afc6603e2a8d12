package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RateLimit ограничивает частоту запросов на пользователя через
// redis INCR+EXPIRE. Счетчик и TTL идут одним pipeline.
func RateLimit(redisClient *redis.Client, log *zap.Logger, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		panic("redis client is required for rate limiting")
	}

	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()
		if userID, ok := c.Get(UserIDKey); ok {
			key = "ratelimit:" + userID.(uuid.UUID).String()
		}

		pipe := redisClient.Pipeline()
		incr := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, window)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			// Redis лег — пропускаем, лимитер не должен ронять запросы
			log.Error("rate limit pipeline failed", zap.Error(err))
			c.Next()
			return
		}

		if incr.Val() > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
