package dto

import "time"

type CreateEventRequest struct {
	Title      string     `json:"title"`
	Category   string     `json:"category"`
	StartAt    time.Time  `json:"start_at"`
	EndAt      *time.Time `json:"end_at"`
	Location   string     `json:"location"`
	Address    string     `json:"address"`
	Recurrence string     `json:"recurrence"`
	// IsPrivate is tri-state on the wire: omitted defaults to false at
	// creation, never again.
	IsPrivate *bool  `json:"is_private"`
	IsPublic  bool   `json:"is_public"`
	Notes     string `json:"notes"`
}

// UpdateEventRequest is the allow-listed event patch. A nil field means
// "leave the stored value alone"; in particular an omitted is_private must
// never silently reset the stored flag.
type UpdateEventRequest struct {
	Title      *string    `json:"title"`
	Category   *string    `json:"category"`
	StartAt    *time.Time `json:"start_at"`
	EndAt      *time.Time `json:"end_at"`
	Location   *string    `json:"location"`
	Address    *string    `json:"address"`
	Recurrence *string    `json:"recurrence"`
	IsPrivate  *bool      `json:"is_private"`
	IsPublic   *bool      `json:"is_public"`
	Notes      *string    `json:"notes"`
	Cancelled  *bool      `json:"cancelled"`
}

type ToggleAttendanceRequest struct {
	// Email optionally names the attendee to toggle. Empty means the acting
	// account toggles itself (proxy check-in uses another member's email).
	Email string `json:"email"`
}
