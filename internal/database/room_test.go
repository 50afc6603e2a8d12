package database_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/watchparty/internal/database"
)

func TestJoinRoomCapacity(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, d, "owner")
	u1 := createTestUser(t, d, "u1")
	u2 := createTestUser(t, d, "u2")
	u3 := createTestUser(t, d, "u3")
	room := createTestRoom(t, d, owner.ID, 2)

	m1, err := d.JoinRoomTx(ctx, room.ID, u1.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, m1)

	m2, err := d.JoinRoomTx(ctx, room.ID, u2.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, m2)

	_, err = d.JoinRoomTx(ctx, room.ID, u3.ID, 2)
	assert.ErrorIs(t, err, database.ErrRoomFull)

	count, err := d.CountRoomMembers(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestJoinRoomEffectiveCapacityFromPlan(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, d, "owner")
	u1 := createTestUser(t, d, "u1")
	u2 := createTestUser(t, d, "u2")
	// Комната просторная, но тариф пускает только одного
	room := createTestRoom(t, d, owner.ID, 20)

	_, err := d.JoinRoomTx(ctx, room.ID, u1.ID, 1)
	require.NoError(t, err)

	_, err = d.JoinRoomTx(ctx, room.ID, u2.ID, 1)
	assert.ErrorIs(t, err, database.ErrRoomFull)
}

func TestJoinRoomIdempotent(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, d, "owner")
	u1 := createTestUser(t, d, "u1")
	room := createTestRoom(t, d, owner.ID, 5)

	first, err := d.JoinRoomTx(ctx, room.ID, u1.ID, 5)
	require.NoError(t, err)

	second, err := d.JoinRoomTx(ctx, room.ID, u1.ID, 5)
	assert.ErrorIs(t, err, database.ErrAlreadyMember)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	count, err := d.CountRoomMembers(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestJoinRoomNotFound(t *testing.T) {
	d := setupTestDB(t)

	u1 := createTestUser(t, d, "u1")

	_, err := d.JoinRoomTx(context.Background(), uuid.New(), u1.ID, 5)
	assert.ErrorIs(t, err, database.ErrRoomNotFound)
}

func TestJoinRoomHostFlag(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, d, "owner")
	guest := createTestUser(t, d, "guest")
	room := createTestRoom(t, d, owner.ID, 5)

	hostMember, err := d.JoinRoomTx(ctx, room.ID, owner.ID, 5)
	require.NoError(t, err)
	assert.True(t, hostMember.IsHost)

	guestMember, err := d.JoinRoomTx(ctx, room.ID, guest.ID, 5)
	require.NoError(t, err)
	assert.False(t, guestMember.IsHost)
}

func TestLeaveRoomIdempotent(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, d, "owner")
	u1 := createTestUser(t, d, "u1")
	room := createTestRoom(t, d, owner.ID, 5)

	// Выход без членства — no-op
	require.NoError(t, d.LeaveRoom(ctx, room.ID, u1.ID))

	_, err := d.JoinRoomTx(ctx, room.ID, u1.ID, 5)
	require.NoError(t, err)

	require.NoError(t, d.LeaveRoom(ctx, room.ID, u1.ID))
	require.NoError(t, d.LeaveRoom(ctx, room.ID, u1.ID))

	// Слот освободился, rejoin создает новое членство
	member, err := d.JoinRoomTx(ctx, room.ID, u1.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, member)

	isMember, err := d.IsRoomMember(ctx, room.ID, u1.ID)
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestJoinFreesSlotAfterLeave(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	owner := createTestUser(t, d, "owner")
	u1 := createTestUser(t, d, "u1")
	u2 := createTestUser(t, d, "u2")
	room := createTestRoom(t, d, owner.ID, 1)

	_, err := d.JoinRoomTx(ctx, room.ID, u1.ID, 10)
	require.NoError(t, err)

	_, err = d.JoinRoomTx(ctx, room.ID, u2.ID, 10)
	assert.ErrorIs(t, err, database.ErrRoomFull)

	require.NoError(t, d.LeaveRoom(ctx, room.ID, u1.ID))

	_, err = d.JoinRoomTx(ctx, room.ID, u2.ID, 10)
	require.NoError(t, err)
}
