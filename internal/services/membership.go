package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/models"
	"go.uber.org/zap"
)

// JoinStatus — исходы попытки join. Ожидаемые исходы возвращаются
// статусом, а не ошибкой: ошибка остается для инфраструктурных сбоев.
type JoinStatus int

const (
	JoinStatusJoined JoinStatus = iota
	// JoinStatusAlreadyMember — повторный join того же пользователя;
	// на границе API это успех, существующее членство возвращается как есть.
	JoinStatusAlreadyMember
	JoinStatusRoomFull
	JoinStatusRoomNotFound
)

func (s JoinStatus) String() string {
	switch s {
	case JoinStatusJoined:
		return "joined"
	case JoinStatusAlreadyMember:
		return "already_member"
	case JoinStatusRoomFull:
		return "room_full"
	case JoinStatusRoomNotFound:
		return "room_not_found"
	default:
		return "unknown"
	}
}

type JoinResult struct {
	Status JoinStatus
	Member *models.RoomMember
}

type JoinInput struct {
	RoomID          uuid.UUID
	UserID          uuid.UUID
	PlanMaxCapacity int
}

type BatchJoinItem struct {
	Input  JoinInput
	Result JoinResult
	Err    error
}

// BatchJoinResult — протокол частичного успеха: каждый вход проходит
// собственной транзакцией и попадает либо в Successful, либо в Failed.
type BatchJoinResult struct {
	Successful []BatchJoinItem
	Failed     []BatchJoinItem
}

type MembershipRepository interface {
	JoinRoomTx(ctx context.Context, roomID, userID uuid.UUID, planMaxCapacity int) (*models.RoomMember, error)
	LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error
}

type MembershipService struct {
	repo MembershipRepository
	log  *zap.Logger

	maxAttempts int
	retryBase   time.Duration
}

func NewMembershipService(repo MembershipRepository, log *zap.Logger) *MembershipService {
	return &MembershipService{
		repo:        repo,
		log:         log,
		maxAttempts: 3,
		retryBase:   20 * time.Millisecond,
	}
}

// Join выполняет транзакционный join с ограниченным числом повторов.
// Повторяются только конфликты сериализации и нарушение уникальности
// (конкурентный join того же пользователя): на повторе либо проигравшая
// транзакция видит актуальный счетчик участников, либо находит уже
// вставленное членство.
func (s *MembershipService) Join(ctx context.Context, in JoinInput) (JoinResult, error) {
	for attempt := 0; ; attempt++ {
		member, err := s.repo.JoinRoomTx(ctx, in.RoomID, in.UserID, in.PlanMaxCapacity)

		switch {
		case err == nil:
			return JoinResult{Status: JoinStatusJoined, Member: member}, nil
		case errors.Is(err, database.ErrAlreadyMember):
			return JoinResult{Status: JoinStatusAlreadyMember, Member: member}, nil
		case errors.Is(err, database.ErrRoomFull):
			return JoinResult{Status: JoinStatusRoomFull}, nil
		case errors.Is(err, database.ErrRoomNotFound):
			return JoinResult{Status: JoinStatusRoomNotFound}, nil
		}

		if !database.IsSerializationFailure(err) && !database.IsUniqueViolation(err) {
			return JoinResult{}, err
		}
		if attempt+1 >= s.maxAttempts {
			s.log.Warn("join retries exhausted",
				zap.String("room_id", in.RoomID.String()),
				zap.String("user_id", in.UserID.String()),
				zap.Int("attempts", s.maxAttempts),
				zap.Error(err))
			return JoinResult{}, err
		}

		s.log.Debug("join transaction conflict, retrying",
			zap.String("room_id", in.RoomID.String()),
			zap.Int("attempt", attempt+1))

		select {
		case <-ctx.Done():
			return JoinResult{}, ctx.Err()
		case <-time.After(s.retryBase << attempt):
		}
	}
}

// Leave идемпотентен: выход из комнаты, в которой пользователя нет, — no-op.
func (s *MembershipService) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	return s.repo.LeaveRoom(ctx, roomID, userID)
}

// BatchJoin выполняет каждый join независимой транзакцией; общего отката
// нет намеренно — вызывающие полагаются на частичный успех.
func (s *MembershipService) BatchJoin(ctx context.Context, inputs []JoinInput) BatchJoinResult {
	var out BatchJoinResult
	for _, in := range inputs {
		result, err := s.Join(ctx, in)
		item := BatchJoinItem{Input: in, Result: result, Err: err}
		if err == nil && (result.Status == JoinStatusJoined || result.Status == JoinStatusAlreadyMember) {
			out.Successful = append(out.Successful, item)
		} else {
			out.Failed = append(out.Failed, item)
		}
	}
	return out
}
