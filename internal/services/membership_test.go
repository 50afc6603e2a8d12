package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/models"
	"github.com/thereayou/watchparty/internal/services"
	"go.uber.org/zap"
)

// fakeMembershipRepo повторяет контракт JoinRoomTx в памяти: проверка
// вместимости и вставка атомарны под мьютексом, как у serializable
// транзакции. failures позволяет подсунуть ошибки первых попыток.
type fakeMembershipRepo struct {
	mu       sync.Mutex
	capacity map[uuid.UUID]int
	members  map[uuid.UUID]map[uuid.UUID]*models.RoomMember
	failures []error
	calls    int
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{
		capacity: make(map[uuid.UUID]int),
		members:  make(map[uuid.UUID]map[uuid.UUID]*models.RoomMember),
	}
}

func (f *fakeMembershipRepo) addRoom(roomID uuid.UUID, capacity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capacity[roomID] = capacity
	f.members[roomID] = make(map[uuid.UUID]*models.RoomMember)
}

func (f *fakeMembershipRepo) JoinRoomTx(ctx context.Context, roomID, userID uuid.UUID, planMaxCapacity int) (*models.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return nil, err
		}
	}

	capacity, ok := f.capacity[roomID]
	if !ok {
		return nil, database.ErrRoomNotFound
	}
	if existing, ok := f.members[roomID][userID]; ok {
		return existing, database.ErrAlreadyMember
	}

	if planMaxCapacity < capacity {
		capacity = planMaxCapacity
	}
	if len(f.members[roomID]) >= capacity {
		return nil, database.ErrRoomFull
	}

	member := &models.RoomMember{
		ID:       uuid.New(),
		RoomID:   roomID,
		UserID:   userID,
		JoinedAt: time.Now(),
		IsActive: true,
	}
	f.members[roomID][userID] = member
	return member, nil
}

func (f *fakeMembershipRepo) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.members[roomID]; ok {
		delete(room, userID)
	}
	return nil
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func TestJoinOutcomes(t *testing.T) {
	repo := newFakeMembershipRepo()
	svc := services.NewMembershipService(repo, zap.NewNop())
	ctx := context.Background()

	roomID := uuid.New()
	repo.addRoom(roomID, 2)

	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	result, err := svc.Join(ctx, services.JoinInput{RoomID: roomID, UserID: u1, PlanMaxCapacity: 10})
	require.NoError(t, err)
	assert.Equal(t, services.JoinStatusJoined, result.Status)
	require.NotNil(t, result.Member)

	result, err = svc.Join(ctx, services.JoinInput{RoomID: roomID, UserID: u2, PlanMaxCapacity: 10})
	require.NoError(t, err)
	assert.Equal(t, services.JoinStatusJoined, result.Status)

	result, err = svc.Join(ctx, services.JoinInput{RoomID: roomID, UserID: u3, PlanMaxCapacity: 10})
	require.NoError(t, err)
	assert.Equal(t, services.JoinStatusRoomFull, result.Status)
	assert.Nil(t, result.Member)

	result, err = svc.Join(ctx, services.JoinInput{RoomID: uuid.New(), UserID: u1, PlanMaxCapacity: 10})
	require.NoError(t, err)
	assert.Equal(t, services.JoinStatusRoomNotFound, result.Status)
}

func TestJoinIdempotentReturnsExistingMember(t *testing.T) {
	repo := newFakeMembershipRepo()
	svc := services.NewMembershipService(repo, zap.NewNop())
	ctx := context.Background()

	roomID, userID := uuid.New(), uuid.New()
	repo.addRoom(roomID, 5)

	first, err := svc.Join(ctx, services.JoinInput{RoomID: roomID, UserID: userID, PlanMaxCapacity: 5})
	require.NoError(t, err)

	second, err := svc.Join(ctx, services.JoinInput{RoomID: roomID, UserID: userID, PlanMaxCapacity: 5})
	require.NoError(t, err)
	assert.Equal(t, services.JoinStatusAlreadyMember, second.Status)
	require.NotNil(t, second.Member)
	assert.Equal(t, first.Member.ID, second.Member.ID)
}

func TestJoinRetriesSerializationConflict(t *testing.T) {
	repo := newFakeMembershipRepo()
	repo.failures = []error{serializationFailure(), serializationFailure()}
	svc := services.NewMembershipService(repo, zap.NewNop())

	roomID, userID := uuid.New(), uuid.New()
	repo.addRoom(roomID, 5)

	result, err := svc.Join(context.Background(), services.JoinInput{RoomID: roomID, UserID: userID, PlanMaxCapacity: 5})
	require.NoError(t, err)
	assert.Equal(t, services.JoinStatusJoined, result.Status)
	// Две неудачных попытки плюс успешная
	assert.Equal(t, 3, repo.calls)
}

func TestJoinRetriesExhausted(t *testing.T) {
	repo := newFakeMembershipRepo()
	repo.failures = []error{serializationFailure(), serializationFailure(), serializationFailure()}
	svc := services.NewMembershipService(repo, zap.NewNop())

	roomID := uuid.New()
	repo.addRoom(roomID, 5)

	_, err := svc.Join(context.Background(), services.JoinInput{RoomID: roomID, UserID: uuid.New(), PlanMaxCapacity: 5})
	require.Error(t, err)
	assert.Equal(t, 3, repo.calls)
}

func TestJoinDoesNotRetryInfrastructureErrors(t *testing.T) {
	repo := newFakeMembershipRepo()
	repo.failures = []error{context.DeadlineExceeded}
	svc := services.NewMembershipService(repo, zap.NewNop())

	roomID := uuid.New()
	repo.addRoom(roomID, 5)

	_, err := svc.Join(context.Background(), services.JoinInput{RoomID: roomID, UserID: uuid.New(), PlanMaxCapacity: 5})
	require.Error(t, err)
	assert.Equal(t, 1, repo.calls)
}

// Гонка за последний слот: из двух конкурентных join ровно один Joined,
// второй RoomFull — оба успеха невозможны ни при каком чередовании.
func TestConcurrentJoinsSingleSlot(t *testing.T) {
	repo := newFakeMembershipRepo()
	svc := services.NewMembershipService(repo, zap.NewNop())

	roomID := uuid.New()
	repo.addRoom(roomID, 1)

	results := make(chan services.JoinResult, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Join(context.Background(), services.JoinInput{
				RoomID: roomID, UserID: uuid.New(), PlanMaxCapacity: 1,
			})
			require.NoError(t, err)
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	var joined, full int
	for result := range results {
		switch result.Status {
		case services.JoinStatusJoined:
			joined++
		case services.JoinStatusRoomFull:
			full++
		}
	}
	assert.Equal(t, 1, joined)
	assert.Equal(t, 1, full)
}

func TestBatchJoinPartialSuccess(t *testing.T) {
	repo := newFakeMembershipRepo()
	svc := services.NewMembershipService(repo, zap.NewNop())

	roomID := uuid.New()
	repo.addRoom(roomID, 2)

	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	inputs := []services.JoinInput{
		{RoomID: roomID, UserID: u1, PlanMaxCapacity: 10},
		{RoomID: roomID, UserID: u1, PlanMaxCapacity: 10}, // повторно — idempotent success
		{RoomID: roomID, UserID: u2, PlanMaxCapacity: 10},
		{RoomID: roomID, UserID: u3, PlanMaxCapacity: 10}, // мест уже нет
		{RoomID: uuid.New(), UserID: u3, PlanMaxCapacity: 10},
	}

	result := svc.BatchJoin(context.Background(), inputs)

	require.Len(t, result.Successful, 3)
	require.Len(t, result.Failed, 2)

	assert.Equal(t, services.JoinStatusJoined, result.Successful[0].Result.Status)
	assert.Equal(t, services.JoinStatusAlreadyMember, result.Successful[1].Result.Status)
	assert.Equal(t, services.JoinStatusJoined, result.Successful[2].Result.Status)
	assert.Equal(t, services.JoinStatusRoomFull, result.Failed[0].Result.Status)
	assert.Equal(t, services.JoinStatusRoomNotFound, result.Failed[1].Result.Status)

	// Каждый результат несет породивший его вход
	assert.Equal(t, u1, result.Successful[0].Input.UserID)
	assert.Equal(t, u3, result.Failed[0].Input.UserID)
}

func TestLeaveIsIdempotent(t *testing.T) {
	repo := newFakeMembershipRepo()
	svc := services.NewMembershipService(repo, zap.NewNop())
	ctx := context.Background()

	roomID, userID := uuid.New(), uuid.New()
	repo.addRoom(roomID, 5)

	require.NoError(t, svc.Leave(ctx, roomID, userID))

	_, err := svc.Join(ctx, services.JoinInput{RoomID: roomID, UserID: userID, PlanMaxCapacity: 5})
	require.NoError(t, err)
	require.NoError(t, svc.Leave(ctx, roomID, userID))
	require.NoError(t, svc.Leave(ctx, roomID, userID))
}
