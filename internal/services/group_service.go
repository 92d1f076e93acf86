package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/apperr"
	"github.com/huddleapp/huddle-backend/internal/database"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/models"
	"github.com/huddleapp/huddle-backend/internal/realtime"
	"gorm.io/gorm"
)

// MembershipEvent is the canonical payload broadcast on a group's
// membership topic after a membership mutation commits.
type MembershipEvent struct {
	Action     string                  `json:"action"`
	GroupID    uuid.UUID               `json:"group_id"`
	Email      string                  `json:"email,omitempty"`
	Membership *models.GroupMembership `json:"membership,omitempty"`
}

// GroupService owns the group/membership lifecycle: who belongs, with what
// role and approval status. Every mutation authorizes against the current
// persisted membership state (read, decide, write; last write wins) and
// broadcasts only after the storage commit.
type GroupService struct {
	db  *gorm.DB
	bus Publisher
}

func NewGroupService(db *gorm.DB, bus Publisher) *GroupService {
	return &GroupService{db: db, bus: bus}
}

// CreateGroup creates the group and, in the same transaction, the owner's
// membership row (role owner, status active). A group always has exactly
// one owner and that owner is always an active member.
func (s *GroupService) CreateGroup(actor uuid.UUID, req *dto.CreateGroupRequest) (*models.Group, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Invalid("Group name is required.")
	}

	now := time.Now()
	group := &models.Group{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Category:    req.Category,
		Description: req.Description,
		OwnerID:     actor,
		IsPrivate:   req.IsPrivate,
	}

	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		if err := uow.DB().Create(group).Error; err != nil {
			return err
		}
		membership := &models.GroupMembership{
			ID:       uuid.New(),
			GroupID:  group.ID,
			UserID:   actor,
			Role:     models.RoleOwner,
			Status:   models.StatusActive,
			JoinedAt: &now,
		}
		if err := uow.DB().Create(membership).Error; err != nil {
			return err
		}
		s.publishMembership(uow, "group-created", group.ID, "", membership)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateGroup patches the allow-listed group fields. Owner/admin only.
func (s *GroupService) UpdateGroup(actor, groupID uuid.UUID, req *dto.UpdateGroupRequest) (*models.Group, error) {
	var group *models.Group
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		var err error
		group, err = findGroup(uow.DB(), groupID)
		if err != nil {
			return err
		}
		if err := requireStaff(uow.DB(), groupID, actor); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperr.Invalid("Group name cannot be blank.")
			}
			updates["name"] = name
		}
		if req.Category != nil {
			updates["category"] = *req.Category
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.IsPrivate != nil {
			updates["is_private"] = *req.IsPrivate
		}
		if len(updates) == 0 {
			return nil
		}
		return uow.DB().Model(group).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Invite upserts the target's membership to pending. Re-inviting resets
// status to pending regardless of prior status, including removed; that is
// deliberate re-invitation semantics.
func (s *GroupService) Invite(actor, groupID uuid.UUID, email string) (*models.GroupMembership, error) {
	var membership *models.GroupMembership
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		if _, err := findGroup(uow.DB(), groupID); err != nil {
			return err
		}
		if err := requireStaff(uow.DB(), groupID, actor); err != nil {
			return err
		}
		target, err := findUserByEmail(uow.DB(), email)
		if err != nil {
			return err
		}

		existing, err := findMembership(uow.DB(), groupID, target.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Status = models.StatusPending
			existing.InviterID = &actor
			if err := uow.DB().Model(existing).Updates(map[string]interface{}{
				"status":     models.StatusPending,
				"inviter_id": actor,
			}).Error; err != nil {
				return err
			}
			membership = existing
		} else {
			membership = &models.GroupMembership{
				ID:        uuid.New(),
				GroupID:   groupID,
				UserID:    target.ID,
				Role:      models.RoleMember,
				Status:    models.StatusPending,
				InviterID: &actor,
			}
			if err := uow.DB().Create(membership).Error; err != nil {
				return err
			}
		}
		s.publishMembership(uow, "invited", groupID, target.Email, membership)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// Approve activates an existing pending membership. It cannot create a
// membership from nothing.
func (s *GroupService) Approve(actor, groupID uuid.UUID, email string) (*models.GroupMembership, error) {
	var membership *models.GroupMembership
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		if _, err := findGroup(uow.DB(), groupID); err != nil {
			return err
		}
		if err := requireStaff(uow.DB(), groupID, actor); err != nil {
			return err
		}
		target, err := findUserByEmail(uow.DB(), email)
		if err != nil {
			return err
		}

		existing, err := findMembership(uow.DB(), groupID, target.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("No invitation or membership exists for that email.")
		}

		updates := map[string]interface{}{"status": models.StatusActive}
		now := time.Now()
		if existing.JoinedAt == nil {
			updates["joined_at"] = now
			existing.JoinedAt = &now
		}
		if err := uow.DB().Model(existing).Updates(updates).Error; err != nil {
			return err
		}
		existing.Status = models.StatusActive
		membership = existing
		s.publishMembership(uow, "approved", groupID, target.Email, membership)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// JoinPublic lets an account join a public group directly, without any
// owner/admin involvement. Private groups always reject this path.
func (s *GroupService) JoinPublic(actor uuid.UUID, groupID uuid.UUID) (*models.GroupMembership, error) {
	var membership *models.GroupMembership
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		group, err := findGroup(uow.DB(), groupID)
		if err != nil {
			return err
		}
		if group.IsPrivate {
			return apperr.Forbidden("This group is private. Ask an admin for an invitation.")
		}

		var actorEmail string
		var user models.User
		if err := uow.DB().First(&user, "id = ?", actor).Error; err == nil {
			actorEmail = user.Email
		}

		existing, err := findMembership(uow.DB(), groupID, actor)
		if err != nil {
			return err
		}
		now := time.Now()
		if existing != nil {
			updates := map[string]interface{}{"status": models.StatusActive}
			if existing.JoinedAt == nil {
				updates["joined_at"] = now
				existing.JoinedAt = &now
			}
			if err := uow.DB().Model(existing).Updates(updates).Error; err != nil {
				return err
			}
			existing.Status = models.StatusActive
			membership = existing
		} else {
			membership = &models.GroupMembership{
				ID:       uuid.New(),
				GroupID:  groupID,
				UserID:   actor,
				Role:     models.RoleMember,
				Status:   models.StatusActive,
				JoinedAt: &now,
			}
			if err := uow.DB().Create(membership).Error; err != nil {
				return err
			}
		}
		s.publishMembership(uow, "joined", groupID, actorEmail, membership)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// Leave removes the actor's own membership. The group owner cannot leave;
// the owner's only exit is deleting the group (transfer is not modeled).
func (s *GroupService) Leave(actor uuid.UUID, groupID uuid.UUID) error {
	return database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		group, err := findGroup(uow.DB(), groupID)
		if err != nil {
			return err
		}
		if group.OwnerID == actor {
			return apperr.Forbidden("The group owner cannot leave. Delete the group instead.")
		}

		existing, err := findMembership(uow.DB(), groupID, actor)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("You are not a member of this group.")
		}
		if err := uow.DB().Model(existing).Update("status", models.StatusRemoved).Error; err != nil {
			return err
		}
		existing.Status = models.StatusRemoved
		s.publishMembership(uow, "left", groupID, "", existing)
		return nil
	})
}

// Remove sets the target's membership to removed. Owner/admin only; the
// group owner can never be the target.
func (s *GroupService) Remove(actor, groupID uuid.UUID, email string) error {
	return database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		group, err := findGroup(uow.DB(), groupID)
		if err != nil {
			return err
		}
		if err := requireStaff(uow.DB(), groupID, actor); err != nil {
			return err
		}
		target, err := findUserByEmail(uow.DB(), email)
		if err != nil {
			return err
		}
		if target.ID == group.OwnerID {
			return apperr.Forbidden("The group owner cannot be removed.")
		}

		existing, err := findMembership(uow.DB(), groupID, target.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("That account is not a member of this group.")
		}
		if err := uow.DB().Model(existing).Update("status", models.StatusRemoved).Error; err != nil {
			return err
		}
		existing.Status = models.StatusRemoved
		s.publishMembership(uow, "removed", groupID, target.Email, existing)
		return nil
	})
}

// SetRole reassigns a member's role. Only the group owner may call it, the
// role owner is never assignable, and the owner's own row is pinned to
// role owner no matter what is requested.
func (s *GroupService) SetRole(actor, groupID uuid.UUID, email, role string) (*models.GroupMembership, error) {
	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, apperr.Invalid("Role must be admin or member.")
	}

	var membership *models.GroupMembership
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		group, err := findGroup(uow.DB(), groupID)
		if err != nil {
			return err
		}
		if group.OwnerID != actor {
			return apperr.Forbidden("Only the group owner can change roles.")
		}
		target, err := findUserByEmail(uow.DB(), email)
		if err != nil {
			return err
		}

		existing, err := findMembership(uow.DB(), groupID, target.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("That account is not a member of this group.")
		}

		// The owner's row keeps role owner regardless of the request.
		if target.ID == group.OwnerID {
			membership = existing
			return nil
		}

		if err := uow.DB().Model(existing).Update("role", role).Error; err != nil {
			return err
		}
		existing.Role = role
		membership = existing
		s.publishMembership(uow, "role-changed", groupID, target.Email, membership)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// DeleteGroup cascades deletion of all membership rows, then the group.
// Events and posts keep their rows; they become unreachable because every
// read path joins through the group.
func (s *GroupService) DeleteGroup(actor uuid.UUID, groupID uuid.UUID) error {
	return database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		group, err := findGroup(uow.DB(), groupID)
		if err != nil {
			return err
		}
		if group.OwnerID != actor {
			return apperr.Forbidden("Only the group owner can delete the group.")
		}

		if err := uow.DB().Where("group_id = ?", groupID).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		if err := uow.DB().Delete(group).Error; err != nil {
			return err
		}
		s.publishMembership(uow, "group-deleted", groupID, "", nil)
		return nil
	})
}

// CanAccessGroup applies the member-or-public test for topic
// subscriptions: active members always pass, anyone passes for a public
// group. An anonymous viewer is uuid.Nil.
func (s *GroupService) CanAccessGroup(viewer uuid.UUID, groupID uuid.UUID) error {
	group, err := findGroup(s.db, groupID)
	if err != nil {
		return err
	}
	return memberOrPublic(s.db, group, viewer)
}

// GetGroup returns the group if the viewer may see it: public groups are
// visible to anyone, private groups only to accounts with a membership row.
func (s *GroupService) GetGroup(viewer uuid.UUID, groupID uuid.UUID) (*models.Group, error) {
	group, err := findGroup(s.db, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsPrivate {
		return group, nil
	}
	m, err := findMembership(s.db, groupID, viewer)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("Group not found.")
	}
	return group, nil
}

// ListGroupsForAccount returns the groups where the account's membership
// is active. Pending invitations do not appear here until approved.
func (s *GroupService) ListGroupsForAccount(userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.
		Joins("JOIN group_memberships ON group_memberships.group_id = groups.id").
		Where("group_memberships.user_id = ? AND group_memberships.status = ?", userID, models.StatusActive).
		Order("groups.created_at DESC").
		Find(&groups).Error
	return groups, err
}

// ListMembers returns pending and active members. Viewer must be an
// active member.
func (s *GroupService) ListMembers(viewer uuid.UUID, groupID uuid.UUID) ([]dto.MemberResponse, error) {
	if _, err := findGroup(s.db, groupID); err != nil {
		return nil, err
	}
	if !isActiveMember(s.db, groupID, viewer) {
		return nil, apperr.Forbidden("Group membership required.")
	}

	var rows []struct {
		models.GroupMembership
		Email       string
		DisplayName string
	}
	err := s.db.Model(&models.GroupMembership{}).
		Select("group_memberships.*, users.email, users.display_name").
		Joins("JOIN users ON users.id = group_memberships.user_id").
		Where("group_memberships.group_id = ? AND group_memberships.status <> ?", groupID, models.StatusRemoved).
		Order("group_memberships.created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	members := make([]dto.MemberResponse, len(rows))
	for i, r := range rows {
		members[i] = dto.MemberResponse{
			UserID:      r.UserID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
			Role:        r.Role,
			Status:      r.Status,
			JoinedAt:    r.JoinedAt,
		}
	}
	return members, nil
}

func (s *GroupService) publishMembership(uow *database.UnitOfWork, action string, groupID uuid.UUID, email string, m *models.GroupMembership) {
	var snapshot *models.GroupMembership
	if m != nil {
		copied := *m
		snapshot = &copied
	}
	uow.AfterCommit(func() {
		s.bus.Publish(realtime.GroupMembershipTopic(groupID), MembershipEvent{
			Action:     action,
			GroupID:    groupID,
			Email:      email,
			Membership: snapshot,
		})
	})
}

// --- shared lookup helpers (also used by event and post services) ---

func findGroup(db *gorm.DB, groupID uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := db.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Group not found.")
		}
		return nil, err
	}
	return &group, nil
}

func findUserByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("No account exists for that email.")
		}
		return nil, err
	}
	return &user, nil
}

// findMembership returns (nil, nil) when no row exists.
func findMembership(db *gorm.DB, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	var m models.GroupMembership
	err := db.Where("group_id = ? AND user_id = ?", groupID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func isActiveMember(db *gorm.DB, groupID, userID uuid.UUID) bool {
	m, err := findMembership(db, groupID, userID)
	return err == nil && m != nil && m.Status == models.StatusActive
}

func requireStaff(db *gorm.DB, groupID, actor uuid.UUID) error {
	m, err := findMembership(db, groupID, actor)
	if err != nil {
		return err
	}
	if m == nil || !m.IsActiveStaff() {
		return apperr.Forbidden("Owner/admin permission required.")
	}
	return nil
}

// memberOrPublic is the shared authorization test for group activity: the
// actor is an active member, or the group is public.
func memberOrPublic(db *gorm.DB, group *models.Group, actor uuid.UUID) error {
	if isActiveMember(db, group.ID, actor) {
		return nil
	}
	if !group.IsPrivate {
		return nil
	}
	return apperr.Forbidden("Group membership required.")
}
