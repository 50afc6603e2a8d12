package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/thereayou/watchparty/internal/database"
	"github.com/thereayou/watchparty/internal/models"
	"gorm.io/gorm"
)

// setupTestDB поднимает изолированную in-memory sqlite базу.
// Опции транзакции join остаются дефолтными: sqlite и так serializable.
func setupTestDB(t *testing.T) *database.Database {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.PlaybackState{},
		&models.ChatMessage{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	return database.NewDatabase(db)
}

func createTestUser(t *testing.T, d *database.Database, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Plan:         models.PlanStandard,
		CreatedAt:    time.Now(),
	}
	if err := d.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func createTestRoom(t *testing.T, d *database.Database, owner uuid.UUID, maxCapacity int) *models.Room {
	t.Helper()

	room := &models.Room{
		Name:        "test room",
		OwnerID:     owner,
		MaxCapacity: maxCapacity,
		IsActive:    true,
	}
	if err := d.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	return room
}
