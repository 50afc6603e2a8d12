package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/watchparty/internal/handlers"
	"github.com/thereayou/watchparty/internal/middleware"
	"github.com/thereayou/watchparty/pkg/auth"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	User    *handlers.UserHandler
	Room    *handlers.RoomHandler
	Message *handlers.HTTPMessageHandler
	WS      *handlers.WebSocketHandler
}

func APIEndpoints(r *gin.Engine, h *Handlers, jwtMgr *auth.JWTManager, rdb *redis.Client, log *zap.Logger) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	authMW := middleware.AuthMiddleware(jwtMgr, rdb)
	wsAuthMW := middleware.WSAuthMiddleware(jwtMgr, rdb)
	chatLimit := middleware.RateLimit(rdb, log, 30, time.Minute)

	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", authMW, h.Auth.Logout)
	}

	// API endpoints
	api := r.Group("/api/v1", authMW)
	{
		api.GET("/users/me", h.User.GetMe)
		api.PATCH("/users/me", h.User.UpdateMe)
		api.GET("/users/:id", h.User.GetUser)

		api.POST("/rooms", h.Room.CreateRoom)
		api.GET("/rooms", h.Room.GetMyRooms)
		api.POST("/rooms/batch-join", h.Room.BatchJoin)
		api.GET("/rooms/:id", h.Room.GetRoom)
		api.POST("/rooms/:id/join", h.Room.JoinRoom)
		api.POST("/rooms/:id/leave", h.Room.LeaveRoom)
		api.GET("/rooms/:id/members", h.Room.GetRoomMembers)

		api.GET("/rooms/:id/messages", h.Message.GetRoomMessages)
		api.POST("/rooms/:id/messages", chatLimit, h.Message.SendMessage)
		api.PATCH("/messages/:id", h.Message.UpdateMessage)
		api.DELETE("/messages/:id", h.Message.DeleteMessage)
	}

	// Realtime-канал: соединение живет в рамках одной комнаты,
	// room id приходит в join-room
	r.GET("/ws", wsAuthMW, h.WS.HandleWebSocket)
}
