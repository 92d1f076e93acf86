package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

// UpdateGroupRequest is the allow-listed group patch. Nil fields are left
// untouched; visibility only changes when is_private is explicitly sent.
type UpdateGroupRequest struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	IsPrivate   *bool   `json:"is_private"`
}

type InviteRequest struct {
	Email string `json:"email"`
}

type ApproveRequest struct {
	Email string `json:"email"`
}

type RemoveMemberRequest struct {
	Email string `json:"email"`
}

type SetRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type MemberResponse struct {
	UserID      uuid.UUID  `json:"user_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`
}
