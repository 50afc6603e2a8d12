package models

import (
	"time"

	"github.com/google/uuid"
)

// PlaybackState — durable-чекпоинт плеера комнаты, одна строка на комнату.
// Version строго растет с каждым принятым апдейтом; запись с меньшей
// версией никогда не перезаписывает более новую (см. SavePlaybackCheckpoint).
// Источником правды "что происходит сейчас" остается in-memory кэш хаба,
// чекпоинт нужен поздно пришедшим и при рестарте процесса.
type PlaybackState struct {
	RoomID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MediaID       *uuid.UUID
	CurrentTime   float64   `gorm:"not null;default:0"`
	IsPlaying     bool      `gorm:"default:false"`
	PlaybackRate  float64   `gorm:"not null;default:1"`
	LastUpdatedBy uuid.UUID
	Version       int64 `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
