package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/handlers"
	"github.com/thereayou/watchparty/internal/services"
	ws "github.com/thereayou/watchparty/internal/websocket"
	"github.com/thereayou/watchparty/pkg/auth"
	"go.uber.org/zap"
)

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *ws.Hub
	Log        *zap.Logger
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			// .env не обязателен, переменные могут прийти из окружения
		}
	}

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		log.Fatal("postgres connect failed", zap.Error(err))
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connect failed", zap.Error(err))
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	hub := ws.NewHub(log)

	membership := services.NewMembershipService(dbConn, log)
	chat := services.NewChatService(dbConn, log)

	syncH := handlers.NewSyncHandler(dbConn, chat, hub, log)

	deps := &Handlers{
		Auth:    handlers.NewAuthHandler(dbConn, jwtMgr, rdb),
		User:    handlers.NewUserHandler(dbConn),
		Room:    handlers.NewRoomHandler(dbConn, membership, hub, log),
		Message: handlers.NewHTTPMessageHandler(dbConn, chat, hub),
		WS:      handlers.NewWebSocketHandler(hub, dbConn, syncH, log),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	APIEndpoints(router, deps, jwtMgr, rdb, log)

	return &Server{
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Hub:        hub,
		Log:        log,
	}
}

func (s *Server) Run() {
	go s.Hub.Run()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.Router,
	}

	go func() {
		s.Log.Info("server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Log.Fatal("server run error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.Log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.Log.Error("http shutdown error", zap.Error(err))
	}

	s.Hub.Shutdown()
	s.Redis.Close()
	s.Log.Sync()
}
