package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Room struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string    `gorm:"not null"`
	OwnerID        uuid.UUID `gorm:"not null"`
	IsPrivate      bool      `gorm:"default:false"`
	MaxCapacity    int       `gorm:"not null;default:10"`
	CurrentMediaID *uuid.UUID
	IsActive       bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Связи
	Members  []RoomMember  `gorm:"foreignKey:RoomID"`
	Messages []ChatMessage `gorm:"foreignKey:RoomID"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RoomMember — присутствие пользователя в комнате.
// Уникальный индекс (room_id, user_id) гарантирует идемпотентность join:
// на пару комната+пользователь существует не больше одной строки.
type RoomMember struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID     uuid.UUID `gorm:"not null;uniqueIndex:idx_room_user"`
	UserID     uuid.UUID `gorm:"not null;uniqueIndex:idx_room_user"`
	IsHost     bool      `gorm:"default:false"`
	JoinedAt   time.Time
	LastSeenAt *time.Time
	IsActive   bool `gorm:"default:true"`

	User User `gorm:"foreignKey:UserID"`
}

func (m *RoomMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
