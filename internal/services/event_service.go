package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/apperr"
	"github.com/huddleapp/huddle-backend/internal/database"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/models"
	"github.com/huddleapp/huddle-backend/internal/realtime"
	"gorm.io/gorm"
)

// EventBroadcast is the canonical payload broadcast on a group's events
// topic after an event mutation commits.
type EventBroadcast struct {
	Action string        `json:"action"`
	Event  *models.Event `json:"event,omitempty"`
	// EventID is set on deletes, where no full event body exists anymore.
	EventID uuid.UUID `json:"event_id,omitempty"`
	GroupID uuid.UUID `json:"group_id"`
}

// EventService owns the event lifecycle, feed visibility, and attendance
// toggling. Authorization derives from the membership state: creating an
// event and toggling attendance require the member-or-public test against
// the acting account; updating or deleting requires the creator or the
// group's owner/admin.
type EventService struct {
	db  *gorm.DB
	bus Publisher
}

func NewEventService(db *gorm.DB, bus Publisher) *EventService {
	return &EventService{db: db, bus: bus}
}

// CreateEvent persists a new event with the creator already in the
// attendee set. An omitted privacy flag defaults to false here, and only
// here; updates never re-default it.
func (s *EventService) CreateEvent(actor, groupID uuid.UUID, req *dto.CreateEventRequest) (*models.Event, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperr.Invalid("Event title is required.")
	}
	if req.StartAt.IsZero() {
		return nil, apperr.Invalid("Event start time is required.")
	}
	if req.EndAt != nil && req.EndAt.Before(req.StartAt) {
		return nil, apperr.Invalid("Event end time must not be before the start time.")
	}

	isPrivate := false
	if req.IsPrivate != nil {
		isPrivate = *req.IsPrivate
	}

	event := &models.Event{
		ID:         uuid.New(),
		GroupID:    groupID,
		Title:      strings.TrimSpace(req.Title),
		Category:   req.Category,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Location:   req.Location,
		Address:    req.Address,
		Recurrence: req.Recurrence,
		IsPrivate:  isPrivate,
		IsPublic:   req.IsPublic,
		Notes:      req.Notes,
		CreatorID:  actor,
	}

	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		group, err := findGroup(uow.DB(), groupID)
		if err != nil {
			return err
		}
		if err := memberOrPublic(uow.DB(), group, actor); err != nil {
			return err
		}
		if err := uow.DB().Create(event).Error; err != nil {
			return err
		}
		attendee := &models.EventAttendee{
			ID:      uuid.New(),
			EventID: event.ID,
			UserID:  actor,
		}
		if err := uow.DB().Create(attendee).Error; err != nil {
			return err
		}
		event.Attendees = []models.EventAttendee{*attendee}
		s.publishEvent(uow, "created", event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// UpdateEvent patches the allow-listed event fields. A nil field leaves
// the stored value alone; an omitted privacy flag never silently resets.
func (s *EventService) UpdateEvent(actor, eventID uuid.UUID, req *dto.UpdateEventRequest) (*models.Event, error) {
	var event *models.Event
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		var err error
		event, err = s.findEvent(uow.DB(), eventID)
		if err != nil {
			return err
		}
		if err := s.requireEventMutator(uow.DB(), event, actor); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return apperr.Invalid("Event title cannot be blank.")
			}
			updates["title"] = title
			event.Title = title
		}
		if req.Category != nil {
			updates["category"] = *req.Category
			event.Category = *req.Category
		}
		if req.StartAt != nil {
			updates["start_at"] = *req.StartAt
			event.StartAt = *req.StartAt
		}
		if req.EndAt != nil {
			updates["end_at"] = *req.EndAt
			event.EndAt = req.EndAt
		}
		if req.Location != nil {
			updates["location"] = *req.Location
			event.Location = *req.Location
		}
		if req.Address != nil {
			updates["address"] = *req.Address
			event.Address = *req.Address
		}
		if req.Recurrence != nil {
			updates["recurrence"] = *req.Recurrence
			event.Recurrence = *req.Recurrence
		}
		if req.IsPrivate != nil {
			updates["is_private"] = *req.IsPrivate
			event.IsPrivate = *req.IsPrivate
		}
		if req.IsPublic != nil {
			updates["is_public"] = *req.IsPublic
			event.IsPublic = *req.IsPublic
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
			event.Notes = *req.Notes
		}
		if req.Cancelled != nil {
			updates["cancelled"] = *req.Cancelled
			event.Cancelled = *req.Cancelled
		}

		if event.EndAt != nil && event.EndAt.Before(event.StartAt) {
			return apperr.Invalid("Event end time must not be before the start time.")
		}
		if len(updates) == 0 {
			return nil
		}
		// Updating through the loaded struct lets GORM write the new
		// updated_at back into it, so the broadcast snapshot matches the
		// stored row exactly.
		if err := uow.DB().Model(event).Updates(updates).Error; err != nil {
			return err
		}
		s.publishEvent(uow, "updated", event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) DeleteEvent(actor, eventID uuid.UUID) error {
	return database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		event, err := s.findEvent(uow.DB(), eventID)
		if err != nil {
			return err
		}
		if err := s.requireEventMutator(uow.DB(), event, actor); err != nil {
			return err
		}

		if err := uow.DB().Where("event_id = ?", eventID).Delete(&models.EventAttendee{}).Error; err != nil {
			return err
		}
		if err := uow.DB().Delete(event).Error; err != nil {
			return err
		}
		groupID := event.GroupID
		uow.AfterCommit(func() {
			s.bus.Publish(realtime.GroupEventsTopic(groupID), EventBroadcast{
				Action:  "deleted",
				EventID: eventID,
				GroupID: groupID,
			})
		})
		return nil
	})
}

// Feed returns the events visible to the viewer: events in groups where
// the viewer has an active membership, plus non-private events in public
// groups. An anonymous viewer (uuid.Nil) only sees the public part.
func (s *EventService) Feed(viewer uuid.UUID) ([]models.Event, error) {
	var events []models.Event
	err := s.db.Preload("Attendees").
		Joins("JOIN groups ON groups.id = events.group_id").
		Where(
			s.db.Where("groups.is_private = ? AND events.is_private = ?", false, false).
				Or("events.group_id IN (?)",
					s.db.Model(&models.GroupMembership{}).
						Select("group_id").
						Where("user_id = ? AND status = ?", viewer, models.StatusActive),
				),
		).
		Order("events.start_at ASC").
		Find(&events).Error
	return events, err
}

// ListGroupEvents returns a single group's events, applying the same
// visibility rule as Feed.
func (s *EventService) ListGroupEvents(viewer uuid.UUID, groupID uuid.UUID) ([]models.Event, error) {
	group, err := findGroup(s.db, groupID)
	if err != nil {
		return nil, err
	}

	query := s.db.Preload("Attendees").Where("group_id = ?", groupID)
	if !isActiveMember(s.db, groupID, viewer) {
		if group.IsPrivate {
			return nil, apperr.Forbidden("Group membership required.")
		}
		query = query.Where("is_private = ?", false)
	}

	var events []models.Event
	err = query.Order("start_at ASC").Find(&events).Error
	return events, err
}

// ToggleAttendance flips the target account's presence in the attendee
// set: in removes, out adds. Toggling twice restores the original set.
// The member-or-public test applies to the acting account even when it
// toggles someone else (proxy check-in).
func (s *EventService) ToggleAttendance(actor, eventID uuid.UUID, targetEmail string) (*models.Event, error) {
	var event *models.Event
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		var err error
		event, err = s.findEvent(uow.DB(), eventID)
		if err != nil {
			return err
		}
		group, err := findGroup(uow.DB(), event.GroupID)
		if err != nil {
			return err
		}
		if err := memberOrPublic(uow.DB(), group, actor); err != nil {
			return err
		}

		target := actor
		if strings.TrimSpace(targetEmail) != "" {
			user, err := findUserByEmail(uow.DB(), targetEmail)
			if err != nil {
				return err
			}
			target = user.ID
		}

		var existing models.EventAttendee
		err = uow.DB().Where("event_id = ? AND user_id = ?", eventID, target).First(&existing).Error
		switch {
		case err == nil:
			if err := uow.DB().Delete(&existing).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			attendee := &models.EventAttendee{
				ID:      uuid.New(),
				EventID: eventID,
				UserID:  target,
			}
			if err := uow.DB().Create(attendee).Error; err != nil {
				return err
			}
		default:
			return err
		}

		if err := uow.DB().Where("event_id = ?", eventID).Find(&event.Attendees).Error; err != nil {
			return err
		}
		s.publishEvent(uow, "attendance", event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) publishEvent(uow *database.UnitOfWork, action string, event *models.Event) {
	snapshot := *event
	uow.AfterCommit(func() {
		s.bus.Publish(realtime.GroupEventsTopic(snapshot.GroupID), EventBroadcast{
			Action:  action,
			Event:   &snapshot,
			GroupID: snapshot.GroupID,
		})
	})
}

func (s *EventService) findEvent(db *gorm.DB, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := db.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Event not found.")
		}
		return nil, err
	}
	return &event, nil
}

// requireEventMutator allows the event's creator or the group's
// owner/admin.
func (s *EventService) requireEventMutator(db *gorm.DB, event *models.Event, actor uuid.UUID) error {
	if event.CreatorID == actor {
		return nil
	}
	if err := requireStaff(db, event.GroupID, actor); err != nil {
		return apperr.Forbidden("Only the event creator or a group owner/admin can modify this event.")
	}
	return nil
}
