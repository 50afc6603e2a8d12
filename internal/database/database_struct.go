package database

import (
	"database/sql"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB

	// Опции транзакции для JoinRoomTx. В проде — serializable,
	// тесты на sqlite оставляют уровень по умолчанию.
	joinTxOpts *sql.TxOptions
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// NewDatabaseWithTxOptions создает Database с явными опциями транзакции join.
func NewDatabaseWithTxOptions(db *gorm.DB, opts *sql.TxOptions) *Database {
	return &Database{db: db, joinTxOpts: opts}
}
