package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/middleware"
	ws "github.com/thereayou/watchparty/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler апгрейдит HTTP-соединение и запускает пампы клиента
type WebSocketHandler struct {
	hub         *ws.Hub
	db          *database.Database
	syncHandler *SyncHandler
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, db *database.Database, syncHandler *SyncHandler, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		db:          db,
		syncHandler: syncHandler,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Проверить origin в prod
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.db.GetUser(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, ws.UserInfo{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
	}, h.log)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.syncHandler)
}
