package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeBus captures publishes so tests can assert on commit-gated fan-out
// without a live gateway.
type fakeBus struct {
	mu     sync.Mutex
	topics []string
	frames []any
}

func (f *fakeBus) Publish(topic string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.frames = append(f.frames, payload)
}

func (f *fakeBus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topics)
}

func (f *fakeBus) last() (string, any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.topics) == 0 {
		return "", nil
	}
	return f.topics[len(f.topics)-1], f.frames[len(f.frames)-1]
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Event{},
		&models.EventAttendee{},
		&models.Post{},
		&models.Comment{},
		&models.Report{},
		&models.Block{},
		&models.RefreshToken{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:          uuid.New(),
		Email:       models.NormalizeEmail(email),
		Password:    "hashed",
		DisplayName: email,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}
