package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/models"
	"github.com/thereayou/watchparty/internal/services"
	ws "github.com/thereayou/watchparty/internal/websocket"
	"go.uber.org/zap"
)

var errNotRoomMember = errors.New("not a member of this room")

// SyncHandler обрабатывает декодированные сообщения realtime-канала:
// привязку к комнате, апдейты плеера и ретрансляцию чата.
type SyncHandler struct {
	db   *database.Database
	chat *services.ChatService
	hub  *ws.Hub
	log  *zap.Logger
}

func NewSyncHandler(db *database.Database, chat *services.ChatService, hub *ws.Hub, log *zap.Logger) *SyncHandler {
	return &SyncHandler{db: db, chat: chat, hub: hub, log: log}
}

func (h *SyncHandler) HandleMessage(client *ws.Client, msg ws.Inbound) error {
	switch m := msg.(type) {
	case ws.JoinRoomPayload:
		return h.handleJoinRoom(client, m)
	case ws.PlaybackUpdatePayload:
		return h.handlePlaybackUpdate(client, m)
	case ws.ChatMessagePayload:
		return h.handleChatMessage(client, m)
	default:
		return ws.ErrUnknownMessageType
	}
}

// handleJoinRoom регистрирует соединение в комнате. Членство проверяется
// по durable-хранилищу: реестр хаба — кэш, решения о допуске он не
// принимает. Если кэш плеера пуст (первый join после рестарта), он
// восстанавливается из чекпоинта до регистрации, чтобы новичок получил
// playback-state сразу.
func (h *SyncHandler) handleJoinRoom(client *ws.Client, m ws.JoinRoomPayload) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	isMember, err := h.db.IsRoomMember(ctx, m.RoomID, client.UserID)
	if err != nil {
		return err
	}
	if !isMember {
		return errNotRoomMember
	}

	if _, ok := h.hub.Playback(m.RoomID); !ok {
		if state, err := h.db.GetPlaybackState(ctx, m.RoomID); err == nil {
			h.hub.SeedPlayback(m.RoomID, ws.PlaybackSnapshot{
				MediaID:      state.MediaID,
				CurrentTime:  state.CurrentTime,
				IsPlaying:    state.IsPlaying,
				PlaybackRate: state.PlaybackRate,
				Version:      state.Version,
				UpdatedBy:    state.LastUpdatedBy,
				UpdatedAt:    state.UpdatedAt,
			})
		} else if !errors.Is(err, database.ErrNotFound) {
			h.log.Warn("failed to load playback checkpoint",
				zap.String("room_id", m.RoomID.String()), zap.Error(err))
		}
	}

	h.hub.JoinRoom(client, m.RoomID, client.User)

	go h.touchPresence(m.RoomID, client.UserID)
	return nil
}

// handlePlaybackUpdate применяет апдейт к кэшу хаба (рассылку остальным
// делает хаб) и асинхронно пишет чекпоинт. Канал — источник правды о
// "сейчас", чекпоинт best-effort и защищен версией от устаревших записей.
func (h *SyncHandler) handlePlaybackUpdate(client *ws.Client, m ws.PlaybackUpdatePayload) error {
	snap, err := h.hub.ApplyPlaybackUpdate(client, m)
	if err != nil {
		return err
	}

	go h.persistCheckpoint(m.RoomID, snap)
	return nil
}

// handleChatMessage ретранслирует сообщение соседям по комнате и
// асинхронно сохраняет его. Доставка важнее durability-порядка:
// ретрансляция не ждет записи.
func (h *SyncHandler) handleChatMessage(client *ws.Client, m ws.ChatMessagePayload) error {
	// Идентичность и время берем серверные, payload клиента им не верит
	m.User = client.User
	m.Time = time.Now()

	if err := h.hub.RelayChat(client, m); err != nil {
		return err
	}

	message := &models.ChatMessage{
		RoomID:    m.RoomID,
		UserID:    client.UserID,
		Content:   m.Text,
		Type:      models.MessageTypeText,
		CreatedAt: m.Time,
	}
	go h.chat.PersistRelayed(message)

	return nil
}

func (h *SyncHandler) persistCheckpoint(roomID uuid.UUID, snap ws.PlaybackSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state := &models.PlaybackState{
		RoomID:        roomID,
		MediaID:       snap.MediaID,
		CurrentTime:   snap.CurrentTime,
		IsPlaying:     snap.IsPlaying,
		PlaybackRate:  snap.PlaybackRate,
		LastUpdatedBy: snap.UpdatedBy,
		Version:       snap.Version,
		UpdatedAt:     snap.UpdatedAt,
	}
	if err := h.db.SavePlaybackCheckpoint(ctx, state); err != nil {
		h.log.Warn("failed to persist playback checkpoint",
			zap.String("room_id", roomID.String()),
			zap.Int64("version", snap.Version),
			zap.Error(err))
	}
}

func (h *SyncHandler) touchPresence(roomID, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.db.TouchMemberLastSeen(ctx, roomID, userID); err != nil {
		h.log.Debug("failed to touch member last seen", zap.Error(err))
	}
}
