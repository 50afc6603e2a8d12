package database

import (
	"database/sql"
	"errors"
	"os"

	"github.com/thereayou/watchparty/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func (d *Database) Connect() error {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.PlaybackState{},
		&models.ChatMessage{},
	); err != nil {
		return err
	}

	d.db = db
	// Проверка вместимости корректна под конкурентными join только
	// на serializable: из двух транзакций, прошедших проверку, одна
	// обязана откатиться (см. IsSerializationFailure).
	d.joinTxOpts = &sql.TxOptions{Isolation: sql.LevelSerializable}

	return nil
}
