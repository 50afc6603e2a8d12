package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Типы сообщений чата
const (
	MessageTypeText     = "TEXT"
	MessageTypeEmoji    = "EMOJI"
	MessageTypeSystem   = "SYSTEM"
	MessageTypeReaction = "REACTION"
)

// ReactionCounts — emoji -> количество реакций.
type ReactionCounts map[string]int

// ChatMessage неизменяемо после создания, кроме полей edit/delete.
// Удаление мягкое: строка остается, контент скрывает слой выдачи.
type ChatMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID    uuid.UUID `gorm:"not null;index:idx_room_created"`
	UserID    uuid.UUID `gorm:"not null"`
	ProfileID *uuid.UUID
	Content   string `gorm:"not null"`
	Type      string `gorm:"default:'TEXT'"`
	ParentID  *uuid.UUID
	IsEdited  bool `gorm:"default:false"`
	EditedAt  *time.Time
	IsDeleted bool `gorm:"default:false"`
	DeletedAt *time.Time
	Reactions ReactionCounts `gorm:"serializer:json"`
	CreatedAt time.Time      `gorm:"index:idx_room_created"`

	User User `gorm:"foreignKey:UserID"`
	Room Room `gorm:"foreignKey:RoomID"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
