package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/watchparty/internal/models"
	"gorm.io/gorm"
)

func (d *Database) SaveMessage(ctx context.Context, message *models.ChatMessage) error {
	return d.db.WithContext(ctx).Create(message).Error
}

func (d *Database) GetMessage(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	var message models.ChatMessage
	if err := d.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (d *Database) UpdateMessage(ctx context.Context, message *models.ChatMessage) error {
	return d.db.WithContext(ctx).Save(message).Error
}

// SoftDeleteMessage помечает сообщение удаленным, строка остается.
func (d *Database) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return d.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now}).Error
}

// GetRoomMessagesPage возвращает до limit+1 сообщений комнаты, новые первыми.
// Курсор — id сообщения; страница начинается с самой строки курсора
// (вызывающий получает ее первой, лишнюю limit+1-ю строку он снимает сам
// и делает следующим курсором). Порядок — (created_at DESC, id DESC),
// seek по составному ключу не теряет и не дублирует строки даже при
// одинаковых created_at.
func (d *Database) GetRoomMessagesPage(ctx context.Context, roomID uuid.UUID, limit int, cursor *uuid.UUID) ([]models.ChatMessage, error) {
	query := d.db.WithContext(ctx).Where("room_id = ?", roomID)

	if cursor != nil {
		var at models.ChatMessage
		if err := d.db.WithContext(ctx).First(&at, "id = ?", *cursor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id <= ?)",
			at.CreatedAt, at.CreatedAt, at.ID,
		)
	}

	var messages []models.ChatMessage
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Preload("User").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
