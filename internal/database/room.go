package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/watchparty/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateRoom(ctx context.Context, room *models.Room) error {
	return d.db.WithContext(ctx).Create(room).Error
}

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// GetRoomWithMembers загружает комнату вместе с участниками и их профилями.
func (d *Database) GetRoomWithMembers(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Preload("Members", "is_active = ?", true).
		Preload("Members.User").
		First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (d *Database) GetUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ? AND room_members.is_active = ?", userID, true).
		Find(&rooms).Error
	return rooms, err
}

func (d *Database) UpdateRoom(ctx context.Context, room *models.Room) error {
	return d.db.WithContext(ctx).Save(room).Error
}

// JoinRoomTx выполняет попытку join одной транзакцией: чтение комнаты,
// проверка существующего членства, подсчет участников против эффективной
// вместимости, вставка строки членства, touch updated_at комнаты.
// Ошибки: ErrRoomNotFound, ErrAlreadyMember (member при этом возвращается),
// ErrRoomFull; конфликты сериализации уходят наверх как есть — retry
// делает вызывающий (MembershipService).
func (d *Database) JoinRoomTx(ctx context.Context, roomID, userID uuid.UUID, planMaxCapacity int) (*models.RoomMember, error) {
	var member *models.RoomMember

	fc := func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		var existing models.RoomMember
		err := tx.Where("room_id = ? AND user_id = ?", roomID, userID).First(&existing).Error
		if err == nil {
			member = &existing
			return ErrAlreadyMember
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var count int64
		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND is_active = ?", roomID, true).
			Count(&count).Error; err != nil {
			return err
		}

		capacity := room.MaxCapacity
		if planMaxCapacity < capacity {
			capacity = planMaxCapacity
		}
		if count >= int64(capacity) {
			return ErrRoomFull
		}

		m := models.RoomMember{
			RoomID:   roomID,
			UserID:   userID,
			IsHost:   room.OwnerID == userID,
			JoinedAt: time.Now(),
			IsActive: true,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		member = &m
		return nil
	}

	var err error
	if d.joinTxOpts != nil {
		err = d.db.WithContext(ctx).Transaction(fc, d.joinTxOpts)
	} else {
		err = d.db.WithContext(ctx).Transaction(fc)
	}
	if err != nil {
		// ErrAlreadyMember несет существующее членство
		if errors.Is(err, ErrAlreadyMember) {
			return member, err
		}
		return nil, err
	}
	return member, nil
}

// LeaveRoom удаляет членство. Выход из комнаты, где тебя нет, — no-op.
func (d *Database) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	return d.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomMember{}).Error
}

func (d *Database) IsRoomMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
		Count(&count).Error
	return count > 0, err
}

func (d *Database) CountRoomMembers(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Count(&count).Error
	return count, err
}

// TouchMemberLastSeen обновляет отметку присутствия участника.
func (d *Database) TouchMemberLastSeen(ctx context.Context, roomID, userID uuid.UUID) error {
	return d.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_seen_at", time.Now()).Error
}
