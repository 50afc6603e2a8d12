package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 64 * 1024 // 64KB

	sendQueueSize = 256
)

// ClientMessageHandler получает уже декодированные входящие сообщения.
type ClientMessageHandler interface {
	HandleMessage(client *Client, msg Inbound) error
}

// Client — одно WebSocket-соединение. Соединение живет в рамках одной
// комнаты; смена комнаты — новое соединение.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	User   UserInfo
	Conn   *websocket.Conn
	Send   chan []byte
	Rooms  map[uuid.UUID]bool
	Hub    *Hub

	log *zap.Logger
	mu  sync.RWMutex
}

func NewClient(hub *Hub, conn *websocket.Conn, user UserInfo, log *zap.Logger) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: user.ID,
		User:   user,
		Conn:   conn,
		Send:   make(chan []byte, sendQueueSize),
		Rooms:  make(map[uuid.UUID]bool),
		Hub:    hub,
		log:    log,
	}
}

// ReadPump читает и декодирует сообщения клиента. Выход из цикла по
// любой причине — в том числе обрыв сети без единого сообщения —
// гарантированно снимает клиента с учета в хабе.
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Битый конверт отбрасываем, соединение живет дальше
			c.log.Debug("malformed envelope dropped", zap.Error(err))
			c.SendError("malformed message envelope")
			continue
		}

		msg, err := DecodeInbound(env)
		if err != nil {
			c.log.Debug("inbound message rejected",
				zap.String("type", string(env.Type)), zap.Error(err))
			c.SendError(err.Error())
			continue
		}

		if handler != nil {
			if err := handler.HandleMessage(c, msg); err != nil {
				c.log.Debug("message handling failed",
					zap.String("type", string(env.Type)), zap.Error(err))
				c.SendError(err.Error())
			}
		}
	}
}

// WritePump отправляет сообщения из очереди и пингует клиента.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Сливаем накопившуюся очередь, не теряя порядок
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue кладет сообщение в очередь клиента не блокируясь.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) SendEnvelope(t MessageType, payload interface{}) error {
	data, err := EncodeEnvelope(t, payload)
	if err != nil {
		return err
	}
	if !c.enqueue(data) {
		return ErrClientQueueFull
	}
	return nil
}

func (c *Client) SendError(msg string) {
	c.SendEnvelope(TypeError, ErrorPayload{Error: msg})
}

func (c *Client) IsInRoom(roomID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Rooms[roomID]
}
