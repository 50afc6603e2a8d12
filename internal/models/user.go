package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Тарифные планы. Лимит плана ограничивает вместимость комнат,
// к которым пользователь может присоединиться.
const (
	PlanFree     = "free"
	PlanStandard = "standard"
	PlanPremium  = "premium"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	AvatarURL    string
	Plan         string `gorm:"default:'free'"`
	LastSeenAt   time.Time
	CreatedAt    time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// PlanMaxCapacity возвращает потолок вместимости комнаты для тарифа.
// Эффективная вместимость = min(room.MaxCapacity, PlanMaxCapacity).
func PlanMaxCapacity(plan string) int {
	switch plan {
	case PlanPremium:
		return 50
	case PlanStandard:
		return 10
	default:
		return 4
	}
}
