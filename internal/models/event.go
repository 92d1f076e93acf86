package models

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"group_id"`
	Title    string     `gorm:"not null;size:200" json:"title"`
	Category string     `gorm:"size:50" json:"category"`
	StartAt  time.Time  `gorm:"not null;index" json:"start_at"`
	EndAt    *time.Time `json:"end_at,omitempty"`
	Location string     `gorm:"size:255" json:"location"`
	Address  string     `gorm:"size:255" json:"address"`
	// Recurrence is an opaque rule string; the backend stores and echoes it.
	Recurrence string `gorm:"size:255" json:"recurrence,omitempty"`
	// IsPrivate hides the event from non-members even in public groups.
	// Defaults to false exactly once, at creation.
	IsPrivate bool            `gorm:"default:false" json:"is_private"`
	IsPublic  bool            `gorm:"default:false" json:"is_public"`
	Notes     string          `gorm:"type:text" json:"notes"`
	CreatorID uuid.UUID       `gorm:"type:uuid;not null;index" json:"creator_id"`
	Cancelled bool            `gorm:"default:false" json:"cancelled"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Group     Group           `gorm:"foreignKey:GroupID" json:"-"`
	Attendees []EventAttendee `gorm:"foreignKey:EventID" json:"attendees,omitempty"`
}

// EventAttendee is one row per (event, account) in the attendee set.
type EventAttendee struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_attendees_event_user" json:"event_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_attendees_event_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
