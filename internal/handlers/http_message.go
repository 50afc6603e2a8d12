package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/handlers/dto"
	"github.com/thereayou/watchparty/internal/middleware"
	"github.com/thereayou/watchparty/internal/models"
	"github.com/thereayou/watchparty/internal/services"
	ws "github.com/thereayou/watchparty/internal/websocket"
)

type HTTPMessageHandler struct {
	db   *database.Database
	chat *services.ChatService
	hub  *ws.Hub
}

func NewHTTPMessageHandler(db *database.Database, chat *services.ChatService, hub *ws.Hub) *HTTPMessageHandler {
	return &HTTPMessageHandler{db: db, chat: chat, hub: hub}
}

// GetRoomMessages — история чата с курсорной пагинацией, новые первыми.
// Кривые limit/cursor отклоняются сразу, частичных запросов нет.
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	isMember, err := h.db.IsRoomMember(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	limit := services.DefaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > services.MaxPageLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 100"})
			return
		}
	}

	var cursor *uuid.UUID
	if raw := c.Query("cursor"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		cursor = &id
	}

	page, err := h.chat.GetRoomMessages(c.Request.Context(), roomID, limit, cursor)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCursor) || errors.Is(err, services.ErrInvalidLimit) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	resp := dto.ChatPageResponse{
		Messages: make([]dto.MessageResponse, len(page.Messages)),
		HasMore:  page.HasMore,
		Cursor:   page.NextCursor,
	}
	for i := range page.Messages {
		resp.Messages[i] = formatMessageResponse(&page.Messages[i])
	}

	c.JSON(http.StatusOK, resp)
}

// SendMessage сохраняет сообщение и рассылает его подключенным к комнате.
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	isMember, err := h.db.IsRoomMember(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgType := models.MessageTypeText
	if req.Type != "" {
		msgType = req.Type
	}

	message := &models.ChatMessage{
		RoomID:    roomID,
		UserID:    userID,
		Content:   req.Content,
		Type:      msgType,
		ParentID:  req.ParentID,
		CreatedAt: time.Now(),
	}

	if err := h.chat.SaveMessage(c.Request.Context(), message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	if user, err := h.db.GetUser(c.Request.Context(), userID); err == nil {
		h.hub.BroadcastToRoom(roomID, ws.TypeChatMessage, ws.ChatMessagePayload{
			RoomID: roomID,
			User: ws.UserInfo{
				ID:        user.ID,
				Username:  user.Username,
				AvatarURL: user.AvatarURL,
			},
			Text: message.Content,
			Time: message.CreatedAt,
		})
	}

	c.JSON(http.StatusCreated, formatMessageResponse(message))
}

// UpdateMessage — мягкое редактирование, только автором.
func (h *HTTPMessageHandler) UpdateMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req dto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.chat.EditMessage(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, services.ErrNotMessageAuthor):
			c.JSON(http.StatusForbidden, gin.H{"error": "you can only edit your own messages"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update message"})
		}
		return
	}

	c.JSON(http.StatusOK, formatMessageResponse(message))
}

// DeleteMessage — мягкое удаление, только автором.
func (h *HTTPMessageHandler) DeleteMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.chat.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, services.ErrNotMessageAuthor):
			c.JSON(http.StatusForbidden, gin.H{"error": "you can only delete your own messages"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

func formatMessageResponse(msg *models.ChatMessage) dto.MessageResponse {
	resp := dto.MessageResponse{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Type:      msg.Type,
		ParentID:  msg.ParentID,
		IsEdited:  msg.IsEdited,
		EditedAt:  msg.EditedAt,
		IsDeleted: msg.IsDeleted,
		Reactions: msg.Reactions,
		CreatedAt: msg.CreatedAt,
	}

	// Контент удаленного сообщения наружу не отдаем
	if !msg.IsDeleted {
		resp.Content = msg.Content
	}

	if msg.User.ID != uuid.Nil {
		resp.User = &dto.UserInfo{
			ID:        msg.User.ID,
			Username:  msg.User.Username,
			AvatarURL: msg.User.AvatarURL,
		}
	}

	return resp
}
