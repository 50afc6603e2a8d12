package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaybackSnapshot — кэш состояния плеера комнаты. Version строго растет
// с каждым принятым апдейтом и продолжает счет durable-чекпоинта после
// рестарта.
type PlaybackSnapshot struct {
	MediaID      *uuid.UUID
	CurrentTime  float64
	IsPlaying    bool
	PlaybackRate float64
	Version      int64
	UpdatedBy    uuid.UUID
	UpdatedAt    time.Time
}

func (s PlaybackSnapshot) payload() PlaybackStatePayload {
	return PlaybackStatePayload{
		MediaID:      s.MediaID,
		CurrentTime:  s.CurrentTime,
		IsPlaying:    s.IsPlaying,
		PlaybackRate: s.PlaybackRate,
	}
}

// presenceEntry считает соединения пользователя в комнате: user-joined
// уходит на первом соединении, user-left — когда закрылось последнее.
type presenceEntry struct {
	user  UserInfo
	conns int
}

type roomState struct {
	clients  map[uuid.UUID]*Client
	presence map[uuid.UUID]*presenceEntry
	playback *PlaybackSnapshot
}

// Hub — реестр сессий процесса: какие соединения в какой комнате,
// кэш плеера и присутствие. Это кэш, а не источник правды о членстве:
// вместимость и членство решает транзакционный слой (MembershipService).
// Явно конструируется и останавливается, глобального состояния нет —
// в одном тесте может жить несколько изолированных хабов.
type Hub struct {
	clients map[uuid.UUID]*Client
	rooms   map[uuid.UUID]*roomState

	register   chan *Client
	unregister chan *Client

	mu  sync.RWMutex
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		rooms:      make(map[uuid.UUID]*roomState),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run обслуживает регистрацию и снятие клиентов до Shutdown.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Shutdown останавливает цикл и закрывает все соединения.
func (h *Hub) Shutdown() {
	h.cancel()
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.rooms = make(map[uuid.UUID]*roomState)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.log.Debug("client registered",
		zap.String("client_id", client.ID.String()),
		zap.String("user_id", client.UserID.String()))
}

// unregisterClient — детерминированная уборка при любом разрыве:
// клиент снимается со всех комнат, оставшиеся получают user-left.
// Явного "leave" от клиента не требуется.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for roomID := range client.Rooms {
		h.removeFromRoomLocked(client, roomID)
	}

	delete(h.clients, client.ID)
	close(client.Send)

	h.log.Debug("client unregistered",
		zap.String("client_id", client.ID.String()),
		zap.String("user_id", client.UserID.String()))
}

// JoinRoom привязывает соединение к комнате: новому клиенту уходит
// текущий playback-state (если кэширован) и user-list, остальным —
// user-joined. Порядок: сперва реплей состояния новичку, затем анонс.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID, user UserInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = &roomState{
			clients:  make(map[uuid.UUID]*Client),
			presence: make(map[uuid.UUID]*presenceEntry),
		}
		h.rooms[roomID] = room
	}

	room.clients[client.ID] = client
	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()

	if room.playback != nil {
		if data, err := EncodeEnvelope(TypePlaybackState, room.playback.payload()); err == nil {
			client.enqueue(data)
		}
	}

	users := make([]UserInfo, 0, len(room.presence))
	for _, entry := range room.presence {
		users = append(users, entry.user)
	}
	if data, err := EncodeEnvelope(TypeUserList, UserListPayload{Users: users}); err == nil {
		client.enqueue(data)
	}

	entry, seen := room.presence[user.ID]
	if seen {
		entry.conns++
		return
	}
	room.presence[user.ID] = &presenceEntry{user: user, conns: 1}

	if data, err := EncodeEnvelope(TypeUserJoined, UserJoinedPayload{User: user}); err == nil {
		h.broadcastToRoomLocked(room, data, client.ID)
	}
}

func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoomLocked(client, roomID)
}

func (h *Hub) removeFromRoomLocked(client *Client, roomID uuid.UUID) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room.clients[client.ID]; !ok {
		return
	}

	delete(room.clients, client.ID)
	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()

	if entry, ok := room.presence[client.UserID]; ok {
		entry.conns--
		if entry.conns <= 0 {
			delete(room.presence, client.UserID)
			if data, err := EncodeEnvelope(TypeUserLeft, UserLeftPayload{ID: client.UserID}); err == nil {
				h.broadcastToRoomLocked(room, data, client.ID)
			}
		}
	}

	if len(room.clients) == 0 {
		// Кэш плеера умирает вместе с комнатой; при следующем join
		// его восстановят из durable-чекпоинта.
		delete(h.rooms, roomID)
	}
}

// ApplyPlaybackUpdate принимает апдейт плеера: поднимает версию кэша и
// рассылает playback-state всем в комнате, кроме отправителя — эхо
// обратно отправителю дает джиттер на его собственном плеере.
// Мьютекс хаба сериализует конкурентные апдейты: рассылка идет в порядке
// приема, версии не перемешиваются.
func (h *Hub) ApplyPlaybackUpdate(client *Client, upd PlaybackUpdatePayload) (PlaybackSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[upd.RoomID]
	if !ok {
		return PlaybackSnapshot{}, ErrUserNotInRoom
	}
	if _, ok := room.clients[client.ID]; !ok {
		return PlaybackSnapshot{}, ErrUserNotInRoom
	}

	rate := upd.PlaybackRate
	if rate <= 0 {
		rate = 1.0
	}

	var version int64
	mediaID := upd.MediaID
	if room.playback != nil {
		version = room.playback.Version
		if mediaID == nil {
			mediaID = room.playback.MediaID
		}
	}

	snap := PlaybackSnapshot{
		MediaID:      mediaID,
		CurrentTime:  upd.CurrentTime,
		IsPlaying:    upd.IsPlaying,
		PlaybackRate: rate,
		Version:      version + 1,
		UpdatedBy:    client.UserID,
		UpdatedAt:    time.Now(),
	}
	room.playback = &snap

	if data, err := EncodeEnvelope(TypePlaybackState, snap.payload()); err == nil {
		h.broadcastToRoomLocked(room, data, client.ID)
	}
	return snap, nil
}

// SeedPlayback загружает кэш плеера из durable-чекпоинта. Кэш не
// перетирается: если комната уже живет in-memory состоянием, оно новее.
func (h *Hub) SeedPlayback(roomID uuid.UUID, snap PlaybackSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = &roomState{
			clients:  make(map[uuid.UUID]*Client),
			presence: make(map[uuid.UUID]*presenceEntry),
		}
		h.rooms[roomID] = room
	}
	if room.playback == nil {
		room.playback = &snap
	}
}

// Playback возвращает копию кэша плеера комнаты.
func (h *Hub) Playback(roomID uuid.UUID) (PlaybackSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomID]
	if !ok || room.playback == nil {
		return PlaybackSnapshot{}, false
	}
	return *room.playback, true
}

// RelayChat ретранслирует сообщение чата всем в комнате, кроме
// отправителя. Персистентность — отдельная асинхронная забота
// (ChatService), ретрансляция на нее не ждет.
func (h *Hub) RelayChat(client *Client, msg ChatMessagePayload) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[msg.RoomID]
	if !ok {
		return ErrUserNotInRoom
	}
	if _, ok := room.clients[client.ID]; !ok {
		return ErrUserNotInRoom
	}

	data, err := EncodeEnvelope(TypeChatMessage, msg)
	if err != nil {
		return err
	}
	h.broadcastToRoomLocked(room, data, client.ID)
	return nil
}

// BroadcastToRoom шлет сообщение всем соединениям комнаты без исключений.
// Используется HTTP-слоем, когда отправитель не держит WebSocket.
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, t MessageType, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if data, err := EncodeEnvelope(t, payload); err == nil {
		h.broadcastToRoomLocked(room, data, uuid.Nil)
	}
}

// RoomUsers — присутствующие в комнате пользователи (для HTTP-слоя).
func (h *Hub) RoomUsers(roomID uuid.UUID) []UserInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]UserInfo, 0)
	if room, ok := h.rooms[roomID]; ok {
		for _, entry := range room.presence {
			users = append(users, entry.user)
		}
	}
	return users
}

// broadcastToRoomLocked шлет data всем клиентам комнаты, кроме excludeID.
// Отправка неблокирующая: забитая очередь медленного клиента не должна
// задерживать доставку остальным, его сообщение молча теряется, а
// соединение добьет write pump.
func (h *Hub) broadcastToRoomLocked(room *roomState, data []byte, excludeID uuid.UUID) {
	for _, client := range room.clients {
		if client.ID == excludeID {
			continue
		}
		if !client.enqueue(data) {
			h.log.Warn("client send queue full, dropping message",
				zap.String("client_id", client.ID.String()))
		}
	}
}
