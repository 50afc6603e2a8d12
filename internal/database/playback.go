package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/thereayou/watchparty/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) GetPlaybackState(ctx context.Context, roomID uuid.UUID) (*models.PlaybackState, error) {
	var state models.PlaybackState
	if err := d.db.WithContext(ctx).First(&state, "room_id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// SavePlaybackCheckpoint — upsert чекпоинта, защищенный версией:
// запись применяется только если ее version больше сохраненной.
// Чекпоинты пишутся асинхронно, без защиты устаревшая запись могла бы
// затереть более новую.
func (d *Database) SavePlaybackCheckpoint(ctx context.Context, state *models.PlaybackState) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"media_id", "current_time", "is_playing", "playback_rate",
			"last_updated_by", "version", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{
				Column: clause.Column{Table: "playback_states", Name: "version"},
				Value:  state.Version,
			},
		}},
	}).Create(state).Error
}
