package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/handlers/dto"
	"github.com/thereayou/watchparty/internal/middleware"
	"github.com/thereayou/watchparty/internal/models"
	"github.com/thereayou/watchparty/internal/services"
	ws "github.com/thereayou/watchparty/internal/websocket"
	"go.uber.org/zap"
)

type RoomHandler struct {
	db         *database.Database
	membership *services.MembershipService
	hub        *ws.Hub
	log        *zap.Logger
}

func NewRoomHandler(db *database.Database, membership *services.MembershipService, hub *ws.Hub, log *zap.Logger) *RoomHandler {
	return &RoomHandler{db: db, membership: membership, hub: hub, log: log}
}

// CreateRoom создает комнату; создатель становится владельцем и первым
// участником (host).
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxCapacity := req.MaxCapacity
	if maxCapacity == 0 {
		maxCapacity = 10
	}

	room := &models.Room{
		Name:           req.Name,
		OwnerID:        userID,
		IsPrivate:      req.IsPrivate,
		MaxCapacity:    maxCapacity,
		CurrentMediaID: req.CurrentMediaID,
		IsActive:       true,
	}

	if err := h.db.CreateRoom(c.Request.Context(), room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	result, err := h.membership.Join(c.Request.Context(), services.JoinInput{
		RoomID:          room.ID,
		UserID:          userID,
		PlanMaxCapacity: h.planCapacity(c, userID),
	})
	if err != nil || result.Status != services.JoinStatusJoined {
		h.log.Error("owner join after room create failed",
			zap.String("room_id", room.ID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add owner to room"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"room":   formatRoomResponse(room),
		"member": formatMemberResponse(result.Member),
	})
}

// JoinRoom — транзакционный join с проверкой вместимости.
// Исходы различимы для UI: room full и invalid link — разные ошибки.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	result, err := h.membership.Join(c.Request.Context(), services.JoinInput{
		RoomID:          roomID,
		UserID:          userID,
		PlanMaxCapacity: h.planCapacity(c, userID),
	})
	if err != nil {
		// Повторы исчерпаны — для пользователя это неотличимо от
		// проигранной гонки за последнее место
		h.log.Warn("join failed after retries",
			zap.String("room_id", roomID.String()), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "room is full"})
		return
	}

	switch result.Status {
	case services.JoinStatusJoined:
		c.JSON(http.StatusOK, dto.JoinResponse{
			Status: result.Status.String(),
			Member: formatMemberResponse(result.Member),
		})
	case services.JoinStatusAlreadyMember:
		c.JSON(http.StatusOK, dto.JoinResponse{
			Status: result.Status.String(),
			Member: formatMemberResponse(result.Member),
		})
	case services.JoinStatusRoomFull:
		c.JSON(http.StatusConflict, gin.H{"error": "room is full"})
	case services.JoinStatusRoomNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	}
}

// LeaveRoom идемпотентен: повторный выход — тоже успех.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := h.membership.Leave(c.Request.Context(), roomID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

// BatchJoin — частичный успех: каждый вход обрабатывается независимой
// транзакцией, общего отката нет.
func (h *RoomHandler) BatchJoin(c *gin.Context) {
	var req dto.BatchJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inputs := make([]services.JoinInput, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		inputs = append(inputs, services.JoinInput{
			RoomID:          in.RoomID,
			UserID:          in.UserID,
			PlanMaxCapacity: h.planCapacityFor(c, in.UserID),
		})
	}

	result := h.membership.BatchJoin(c.Request.Context(), inputs)

	resp := dto.BatchJoinResponse{
		Successful: make([]dto.BatchJoinItemResponse, 0, len(result.Successful)),
		Failed:     make([]dto.BatchJoinItemResponse, 0, len(result.Failed)),
	}
	for _, item := range result.Successful {
		resp.Successful = append(resp.Successful, dto.BatchJoinItemResponse{
			Input:  dto.BatchJoinInput{RoomID: item.Input.RoomID, UserID: item.Input.UserID},
			Status: item.Result.Status.String(),
			Member: formatMemberResponse(item.Result.Member),
		})
	}
	for _, item := range result.Failed {
		out := dto.BatchJoinItemResponse{
			Input: dto.BatchJoinInput{RoomID: item.Input.RoomID, UserID: item.Input.UserID},
		}
		if item.Err != nil {
			out.Error = "join failed"
		} else {
			out.Status = item.Result.Status.String()
		}
		resp.Failed = append(resp.Failed, out)
	}

	c.JSON(http.StatusOK, resp)
}

// GetRoom возвращает комнату с участниками и присутствием из хаба.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	room, err := h.db.GetRoomWithMembers(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if room.IsPrivate && !memberOf(room, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	response := formatRoomResponse(room)
	response["online_users"] = h.hub.RoomUsers(roomID)
	if snap, ok := h.hub.Playback(roomID); ok {
		response["playback"] = gin.H{
			"media_id":      snap.MediaID,
			"current_time":  snap.CurrentTime,
			"is_playing":    snap.IsPlaying,
			"playback_rate": snap.PlaybackRate,
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetMyRooms — комнаты текущего пользователя.
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	rooms, err := h.db.GetUserRooms(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rooms"})
		return
	}

	response := make([]gin.H, len(rooms))
	for i := range rooms {
		item := formatRoomResponse(&rooms[i])
		item["online_count"] = len(h.hub.RoomUsers(rooms[i].ID))
		response[i] = item
	}

	c.JSON(http.StatusOK, gin.H{"rooms": response})
}

// GetRoomMembers — список участников с отметкой присутствия.
func (h *RoomHandler) GetRoomMembers(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	room, err := h.db.GetRoomWithMembers(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if !memberOf(room, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return
	}

	online := make(map[uuid.UUID]bool)
	for _, u := range h.hub.RoomUsers(roomID) {
		online[u.ID] = true
	}

	members := make([]gin.H, len(room.Members))
	for i, member := range room.Members {
		members[i] = gin.H{
			"id":           member.UserID,
			"username":     member.User.Username,
			"avatar_url":   member.User.AvatarURL,
			"is_host":      member.IsHost,
			"joined_at":    member.JoinedAt,
			"last_seen_at": member.LastSeenAt,
			"is_online":    online[member.UserID],
		}
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// planCapacity — потолок вместимости из тарифа текущего пользователя.
// Лимит приходит из внешнего биллинг-контекста (поле plan на пользователе),
// сервис членства получает его аргументом.
func (h *RoomHandler) planCapacity(c *gin.Context, userID uuid.UUID) int {
	return h.planCapacityFor(c, userID)
}

func (h *RoomHandler) planCapacityFor(c *gin.Context, userID uuid.UUID) int {
	user, err := h.db.GetUser(c.Request.Context(), userID)
	if err != nil {
		return models.PlanMaxCapacity(models.PlanFree)
	}
	return models.PlanMaxCapacity(user.Plan)
}

func memberOf(room *models.Room, userID uuid.UUID) bool {
	for _, member := range room.Members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}

func formatRoomResponse(room *models.Room) gin.H {
	return gin.H{
		"id":               room.ID,
		"name":             room.Name,
		"owner_id":         room.OwnerID,
		"is_private":       room.IsPrivate,
		"max_capacity":     room.MaxCapacity,
		"current_media_id": room.CurrentMediaID,
		"is_active":        room.IsActive,
		"created_at":       room.CreatedAt,
	}
}

func formatMemberResponse(member *models.RoomMember) *dto.MemberResponse {
	if member == nil {
		return nil
	}
	return &dto.MemberResponse{
		ID:         member.ID,
		RoomID:     member.RoomID,
		UserID:     member.UserID,
		IsHost:     member.IsHost,
		JoinedAt:   member.JoinedAt,
		LastSeenAt: member.LastSeenAt,
	}
}
