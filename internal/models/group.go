package models

import (
	"time"

	"github.com/google/uuid"
)

// Group categories cover both activity crews and household groups.
var GroupCategories = []string{
	"sports", "running", "cycling", "climbing", "fitness",
	"household", "emergency", "social", "other",
}

type Group struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null;size:100" json:"name"`
	Category    string    `gorm:"size:50;index" json:"category"`
	Description string    `gorm:"type:text" json:"description"`
	// OwnerID is set at creation and never reassigned; ownership transfer
	// is not modeled.
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	IsPrivate bool      `gorm:"default:false" json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Owner     User      `gorm:"foreignKey:OwnerID" json:"-"`
}
