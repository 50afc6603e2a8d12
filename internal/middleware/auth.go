package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/thereayou/watchparty/pkg/auth"
)

const UserIDKey = "userID"

// AuthMiddleware проверяет JWT токен
func AuthMiddleware(jwtManager *auth.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			c.Abort()
			return
		}
		authorize(c, jwtManager, redisClient, token)
	}
}

// WSAuthMiddleware — auth для WebSocket: токен приходит query-параметром,
// браузерный WebSocket API не умеет ставить заголовки.
func WSAuthMiddleware(jwtManager *auth.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
					token = parts[1]
				}
			}
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}
		authorize(c, jwtManager, redisClient, token)
	}
}

func authorize(c *gin.Context, jwtManager *auth.JWTManager, redisClient *redis.Client, token string) {
	// Проверяем черный список
	exists, err := redisClient.Exists(c.Request.Context(), "blacklist:"+token).Result()
	if err != nil || exists > 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is blacklisted"})
		c.Abort()
		return
	}

	claims, err := jwtManager.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		c.Abort()
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		c.Abort()
		return
	}

	c.Set(UserIDKey, userID)
	c.Next()
}
