package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership roles. OWNER belongs to exactly one row per group: the row of
// the account in Group.OwnerID. Role changes never touch that row.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Membership statuses. Rows are never hard-deleted except when the whole
// group is deleted; removal and leaving set StatusRemoved.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusRemoved = "removed"
)

// GroupMembership is the per-(group, account) record of role and approval
// status. At most one row exists per pair.
type GroupMembership struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_group_user" json:"group_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_group_user" json:"user_id"`
	Role      string     `gorm:"size:20;not null;default:'member'" json:"role"`
	Status    string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	InviterID *uuid.UUID `gorm:"type:uuid" json:"inviter_id,omitempty"`
	JoinedAt  *time.Time `json:"joined_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Group     Group      `gorm:"foreignKey:GroupID" json:"-"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

// IsActiveStaff reports whether the row grants owner/admin powers.
func (m *GroupMembership) IsActiveStaff() bool {
	return m.Status == StatusActive && (m.Role == RoleOwner || m.Role == RoleAdmin)
}
