package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound — запрошенная запись не найдена
	ErrNotFound = errors.New("database: record not found")
	// ErrRoomNotFound — комната по id не существует
	ErrRoomNotFound = errors.New("database: room not found")
	// ErrRoomFull — эффективная вместимость комнаты исчерпана
	ErrRoomFull = errors.New("database: room is full")
	// ErrAlreadyMember — у пользователя уже есть членство в комнате
	ErrAlreadyMember = errors.New("database: already a room member")
)

// Коды ошибок postgres, после которых транзакцию join имеет смысл повторить.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// IsSerializationFailure распознает конфликт сериализации/deadlock —
// транзакция проиграла гонку и должна быть повторена с нуля.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// IsUniqueViolation — нарушение уникального индекса. Для join на
// (room_id, user_id) это значит, что конкурентная транзакция того же
// пользователя успела вставить членство первой.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
