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

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

var (
	// ErrInvalidLimit — limit вне [1, MaxPageLimit]
	ErrInvalidLimit = errors.New("services: limit must be between 1 and 100")
	// ErrInvalidCursor — курсор не указывает на существующее сообщение
	ErrInvalidCursor = errors.New("services: cursor does not resolve to a message")
	// ErrNotMessageAuthor — редактировать/удалять сообщение может только автор
	ErrNotMessageAuthor = errors.New("services: only the author can modify a message")
)

type ChatRepository interface {
	SaveMessage(ctx context.Context, message *models.ChatMessage) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error)
	UpdateMessage(ctx context.Context, message *models.ChatMessage) error
	SoftDeleteMessage(ctx context.Context, id uuid.UUID) error
	GetRoomMessagesPage(ctx context.Context, roomID uuid.UUID, limit int, cursor *uuid.UUID) ([]models.ChatMessage, error)
}

// ChatPage — одна страница истории, новые сообщения первыми.
type ChatPage struct {
	Messages   []models.ChatMessage
	HasMore    bool
	NextCursor *uuid.UUID
}

type ChatService struct {
	repo ChatRepository
	log  *zap.Logger
}

func NewChatService(repo ChatRepository, log *zap.Logger) *ChatService {
	return &ChatService{repo: repo, log: log}
}

// GetRoomMessages — курсорная пагинация "запросить limit+1, снять лишнюю".
// Репозиторий отдает до limit+1 строк начиная со строки курсора; если
// пришло больше limit, лишняя строка снимается и ее id становится
// следующим курсором. Отдельный count-запрос не нужен.
func (s *ChatService) GetRoomMessages(ctx context.Context, roomID uuid.UUID, limit int, cursor *uuid.UUID) (*ChatPage, error) {
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit < 1 || limit > MaxPageLimit {
		return nil, ErrInvalidLimit
	}

	rows, err := s.repo.GetRoomMessagesPage(ctx, roomID, limit, cursor)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCursor
		}
		return nil, err
	}

	page := &ChatPage{}
	if len(rows) > limit {
		next := rows[limit].ID
		rows = rows[:limit]
		page.NextCursor = &next
		page.HasMore = true
	}
	page.Messages = rows
	return page, nil
}

func (s *ChatService) SaveMessage(ctx context.Context, message *models.ChatMessage) error {
	return s.repo.SaveMessage(ctx, message)
}

// PersistRelayed сохраняет ретранслированное по WebSocket сообщение.
// Ретрансляция не ждет записи; сбой здесь только логируется — клиенты
// могли увидеть сообщение, которого не окажется в истории.
func (s *ChatService) PersistRelayed(message *models.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.SaveMessage(ctx, message); err != nil {
		s.log.Error("failed to persist relayed chat message",
			zap.String("room_id", message.RoomID.String()),
			zap.Error(err))
	}
}

func (s *ChatService) GetMessage(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	return s.repo.GetMessage(ctx, id)
}

// EditMessage — мягкое редактирование, доступно только автору.
func (s *ChatService) EditMessage(ctx context.Context, id, userID uuid.UUID, content string) (*models.ChatMessage, error) {
	message, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if message.UserID != userID {
		return nil, ErrNotMessageAuthor
	}

	now := time.Now()
	message.Content = content
	message.IsEdited = true
	message.EditedAt = &now

	if err := s.repo.UpdateMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// DeleteMessage — мягкое удаление, доступно только автору.
func (s *ChatService) DeleteMessage(ctx context.Context, id, userID uuid.UUID) error {
	message, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if message.UserID != userID {
		return ErrNotMessageAuthor
	}
	return s.repo.SoftDeleteMessage(ctx, id)
}
