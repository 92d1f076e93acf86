package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the account directory record. The realtime core only reads it;
// mutation is limited to the profile updater's allow-listed fields.
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password    string         `gorm:"not null" json:"-"`
	DisplayName string         `gorm:"size:100" json:"display_name"`
	AvatarURL   string         `gorm:"size:500" json:"avatar_url,omitempty"`
	PushToken   string         `gorm:"size:500" json:"-"`
	Role        string         `gorm:"size:20;default:'user'" json:"role"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// NormalizeEmail trims and lower-cases an email so it can serve as the
// canonical lookup key for invitations and membership targeting.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
