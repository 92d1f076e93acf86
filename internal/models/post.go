package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Post struct {
	ID       uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID  uuid.UUID                   `gorm:"type:uuid;not null;index" json:"group_id"`
	AuthorID uuid.UUID                   `gorm:"type:uuid;not null;index" json:"author_id"`
	Content  string                      `gorm:"type:text;not null" json:"content"`
	ImageURL string                      `gorm:"size:500" json:"image_url,omitempty"`
	Tags     datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Mentions datatypes.JSONSlice[string] `json:"mentions,omitempty"`
	// Reactions maps a reaction label to a monotonic counter.
	Reactions    datatypes.JSONType[map[string]int] `json:"reactions"`
	CommentCount int                                `gorm:"default:0" json:"comment_count"`
	CreatedAt    time.Time                          `json:"created_at"`
	EditedAt     *time.Time                         `json:"edited_at,omitempty"`
	DeletedAt    gorm.DeletedAt                     `gorm:"index" json:"-"`
}

type Comment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"post_id"`
	AuthorID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	EditedAt  *time.Time     `json:"edited_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
