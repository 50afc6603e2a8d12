package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType определяет типы сообщений протокола
type MessageType string

const (
	// Входящие
	TypeJoinRoom       MessageType = "join-room"
	TypePlaybackUpdate MessageType = "playback-update"
	TypeChatMessage    MessageType = "chat-message"

	// Исходящие
	TypePlaybackState MessageType = "playback-state"
	TypeUserJoined    MessageType = "user-joined"
	TypeUserLeft      MessageType = "user-left"
	TypeUserList      MessageType = "user-list"
	TypeError         MessageType = "error"
)

// Envelope — конверт протокола: {type, payload}.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type UserInfo struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// Inbound — закрытое множество входящих сообщений. Конверт декодируется
// один раз на границе (DecodeInbound), дальше обработчики делают
// исчерпывающий switch по вариантам, а не сравнивают строки.
type Inbound interface {
	inbound()
}

type JoinRoomPayload struct {
	RoomID uuid.UUID `json:"room_id"`
	User   UserInfo  `json:"user"`
}

type PlaybackUpdatePayload struct {
	RoomID       uuid.UUID  `json:"room_id"`
	MediaID      *uuid.UUID `json:"media_id,omitempty"`
	CurrentTime  float64    `json:"current_time"`
	IsPlaying    bool       `json:"is_playing"`
	PlaybackRate float64    `json:"playback_rate,omitempty"`
}

type ChatMessagePayload struct {
	RoomID uuid.UUID `json:"room_id"`
	User   UserInfo  `json:"user"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

func (JoinRoomPayload) inbound()       {}
func (PlaybackUpdatePayload) inbound() {}
func (ChatMessagePayload) inbound()    {}

// DecodeInbound разбирает конверт в типизированный вариант.
// Неизвестный тип или кривой payload — ошибка, сообщение отбрасывается.
func DecodeInbound(env Envelope) (Inbound, error) {
	switch env.Type {
	case TypeJoinRoom:
		var p JoinRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, ErrInvalidMessage
		}
		if p.RoomID == uuid.Nil {
			return nil, ErrInvalidMessage
		}
		return p, nil

	case TypePlaybackUpdate:
		var p PlaybackUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, ErrInvalidMessage
		}
		if p.RoomID == uuid.Nil || p.CurrentTime < 0 {
			return nil, ErrInvalidMessage
		}
		return p, nil

	case TypeChatMessage:
		var p ChatMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, ErrInvalidMessage
		}
		if p.RoomID == uuid.Nil || p.Text == "" {
			return nil, ErrInvalidMessage
		}
		return p, nil

	default:
		return nil, ErrUnknownMessageType
	}
}

// Исходящие payload

type PlaybackStatePayload struct {
	MediaID      *uuid.UUID `json:"media_id,omitempty"`
	CurrentTime  float64    `json:"current_time"`
	IsPlaying    bool       `json:"is_playing"`
	PlaybackRate float64    `json:"playback_rate"`
}

type UserJoinedPayload struct {
	User UserInfo `json:"user"`
}

type UserLeftPayload struct {
	ID uuid.UUID `json:"id"`
}

type UserListPayload struct {
	Users []UserInfo `json:"users"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// EncodeEnvelope собирает конверт с сериализованным payload.
func EncodeEnvelope(t MessageType, payload interface{}) ([]byte, error) {
	env := Envelope{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = data
	}
	return json.Marshal(env)
}
