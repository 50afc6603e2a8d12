package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/models"
)

func TestPlaybackCheckpointVersionGuard(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, d, "owner")
	room := createTestRoom(t, d, owner.ID, 5)

	require.NoError(t, d.SavePlaybackCheckpoint(ctx, &models.PlaybackState{
		RoomID:        room.ID,
		CurrentTime:   10,
		IsPlaying:     true,
		PlaybackRate:  1,
		LastUpdatedBy: owner.ID,
		Version:       2,
	}))

	// Устаревшая версия не перезаписывает чекпоинт
	require.NoError(t, d.SavePlaybackCheckpoint(ctx, &models.PlaybackState{
		RoomID:        room.ID,
		CurrentTime:   5,
		IsPlaying:     false,
		PlaybackRate:  1,
		LastUpdatedBy: owner.ID,
		Version:       1,
	}))

	state, err := d.GetPlaybackState(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.Version)
	assert.Equal(t, 10.0, state.CurrentTime)
	assert.True(t, state.IsPlaying)

	// Более новая версия применяется
	require.NoError(t, d.SavePlaybackCheckpoint(ctx, &models.PlaybackState{
		RoomID:        room.ID,
		CurrentTime:   42.5,
		IsPlaying:     true,
		PlaybackRate:  1.5,
		LastUpdatedBy: owner.ID,
		Version:       3,
	}))

	state, err = d.GetPlaybackState(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.Version)
	assert.Equal(t, 42.5, state.CurrentTime)
	assert.Equal(t, 1.5, state.PlaybackRate)
}

func TestPlaybackStateNotFound(t *testing.T) {
	d := setupTestDB(t)

	owner := createTestUser(t, d, "owner")
	room := createTestRoom(t, d, owner.ID, 5)

	_, err := d.GetPlaybackState(context.Background(), room.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
