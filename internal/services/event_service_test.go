package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/apperr"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/models"
	"github.com/huddleapp/huddle-backend/internal/realtime"
	"gorm.io/gorm"
)

func newEventService(t *testing.T) (*EventService, *GroupService, *gorm.DB, *fakeBus) {
	t.Helper()
	db := newTestDB(t)
	bus := &fakeBus{}
	return NewEventService(db, bus), NewGroupService(db, bus), db, bus
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func baseEventRequest() *dto.CreateEventRequest {
	return &dto.CreateEventRequest{
		Title:   "Saturday Long Run",
		StartAt: time.Now().Add(48 * time.Hour),
	}
}

func TestCreateEventAddsCreatorAsAttendee(t *testing.T) {
	events, groups, db, bus := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	event, err := events.CreateEvent(owner.ID, group.ID, baseEventRequest())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	if len(event.Attendees) != 1 || event.Attendees[0].UserID != owner.ID {
		t.Errorf("attendees = %+v, want just the creator", event.Attendees)
	}
	if event.IsPrivate {
		t.Error("omitted privacy flag should default to false")
	}

	topic, _ := bus.last()
	if topic != realtime.GroupEventsTopic(group.ID) {
		t.Errorf("published on %q, want the group events topic", topic)
	}
}

func TestCreateEventValidation(t *testing.T) {
	events, groups, db, _ := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	start := time.Now().Add(24 * time.Hour)
	before := start.Add(-time.Hour)

	tests := []struct {
		name string
		req  *dto.CreateEventRequest
	}{
		{"blank title", &dto.CreateEventRequest{Title: "  ", StartAt: start}},
		{"zero start", &dto.CreateEventRequest{Title: "Run"}},
		{"end before start", &dto.CreateEventRequest{Title: "Run", StartAt: start, EndAt: &before}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := events.CreateEvent(owner.ID, group.ID, tt.req); !apperr.IsKind(err, apperr.KindInvalid) {
				t.Errorf("err = %v, want invalid", err)
			}
		})
	}
}

func TestCreateEventMemberOrPublic(t *testing.T) {
	events, groups, db, _ := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	private := mustCreateGroup(t, groups, owner.ID, true)
	public, err := groups.CreateGroup(owner.ID, &dto.CreateGroupRequest{Name: "Open Hikers"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if _, err := events.CreateEvent(bob.ID, private.ID, baseEventRequest()); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("non-member in private group err = %v, want forbidden", err)
	}
	// Public groups accept events from non-members.
	if _, err := events.CreateEvent(bob.ID, public.ID, baseEventRequest()); err != nil {
		t.Errorf("non-member in public group err = %v, want nil", err)
	}
}

func TestUpdateEventPreservesUntouchedPrivacy(t *testing.T) {
	events, groups, db, _ := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	req := baseEventRequest()
	req.IsPrivate = boolPtr(true)
	event, err := events.CreateEvent(owner.ID, group.ID, req)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	// A patch that does not mention privacy must not reset it.
	updated, err := events.UpdateEvent(owner.ID, event.ID, &dto.UpdateEventRequest{
		Title: strPtr("Renamed Run"),
	})
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if !updated.IsPrivate {
		t.Error("untouched privacy flag was reset by the patch")
	}

	var stored models.Event
	if err := db.First(&stored, "id = ?", event.ID).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if !stored.IsPrivate {
		t.Error("stored privacy flag was reset by the patch")
	}
	if stored.Title != "Renamed Run" {
		t.Errorf("stored title = %q, want Renamed Run", stored.Title)
	}

	// An explicit false does flip it.
	updated, err = events.UpdateEvent(owner.ID, event.ID, &dto.UpdateEventRequest{
		IsPrivate: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if updated.IsPrivate {
		t.Error("explicit false did not clear the privacy flag")
	}
}

func TestUpdateEventRequiresCreatorOrStaff(t *testing.T) {
	events, groups, db, _ := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	if _, err := groups.JoinPublic(bob.ID, group.ID); err != nil {
		t.Fatalf("JoinPublic: %v", err)
	}
	event, err := events.CreateEvent(owner.ID, group.ID, baseEventRequest())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	patch := &dto.UpdateEventRequest{Title: strPtr("Hijacked")}
	if _, err := events.UpdateEvent(bob.ID, event.ID, patch); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("plain member update err = %v, want forbidden", err)
	}

	if _, err := groups.SetRole(owner.ID, group.ID, bob.Email, models.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if _, err := events.UpdateEvent(bob.ID, event.ID, patch); err != nil {
		t.Errorf("admin update err = %v, want nil", err)
	}
}

func TestListGroupEventsVisibility(t *testing.T) {
	events, groups, db, _ := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	public := mustCreateGroup(t, groups, owner.ID, false)
	private := mustCreateGroup(t, groups, owner.ID, true)

	open := baseEventRequest()
	if _, err := events.CreateEvent(owner.ID, public.ID, open); err != nil {
		t.Fatalf("CreateEvent open: %v", err)
	}
	hidden := baseEventRequest()
	hidden.Title = "Members Only"
	hidden.IsPrivate = boolPtr(true)
	if _, err := events.CreateEvent(owner.ID, public.ID, hidden); err != nil {
		t.Fatalf("CreateEvent hidden: %v", err)
	}
	if _, err := events.CreateEvent(owner.ID, private.ID, baseEventRequest()); err != nil {
		t.Fatalf("CreateEvent private group: %v", err)
	}

	// Outsiders see only non-private events of public groups.
	visible, err := events.ListGroupEvents(bob.ID, public.ID)
	if err != nil {
		t.Fatalf("ListGroupEvents: %v", err)
	}
	if len(visible) != 1 || visible[0].Title != "Saturday Long Run" {
		t.Errorf("outsider sees %d events, want only the open one", len(visible))
	}

	// Private groups reject outsiders outright.
	if _, err := events.ListGroupEvents(bob.ID, private.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("private group list err = %v, want forbidden", err)
	}

	// Members see everything.
	all, err := events.ListGroupEvents(owner.ID, public.ID)
	if err != nil {
		t.Fatalf("ListGroupEvents member: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("member sees %d events, want 2", len(all))
	}
}

func TestFeedMergesMembershipAndPublic(t *testing.T) {
	events, groups, db, _ := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	public := mustCreateGroup(t, groups, owner.ID, false)
	private := mustCreateGroup(t, groups, owner.ID, true)

	if _, err := events.CreateEvent(owner.ID, public.ID, baseEventRequest()); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := events.CreateEvent(owner.ID, private.ID, baseEventRequest()); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	// Bob only sees the public event; the owner sees both.
	feed, err := events.Feed(bob.ID)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed) != 1 {
		t.Errorf("outsider feed has %d events, want 1", len(feed))
	}

	feed, err = events.Feed(owner.ID)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed) != 2 {
		t.Errorf("member feed has %d events, want 2", len(feed))
	}

	// Anonymous viewers get the public slice.
	feed, err = events.Feed(uuid.Nil)
	if err != nil {
		t.Fatalf("Feed anonymous: %v", err)
	}
	if len(feed) != 1 {
		t.Errorf("anonymous feed has %d events, want 1", len(feed))
	}
}

func TestToggleAttendanceIsAnInvolution(t *testing.T) {
	events, groups, db, bus := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)
	if _, err := groups.JoinPublic(bob.ID, group.ID); err != nil {
		t.Fatalf("JoinPublic: %v", err)
	}

	event, err := events.CreateEvent(owner.ID, group.ID, baseEventRequest())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	attendeeCount := func() int {
		var n int64
		db.Model(&models.EventAttendee{}).Where("event_id = ?", event.ID).Count(&n)
		return int(n)
	}

	// In: creator only. Toggle bob in, then out again.
	if _, err := events.ToggleAttendance(bob.ID, event.ID, ""); err != nil {
		t.Fatalf("toggle in: %v", err)
	}
	if got := attendeeCount(); got != 2 {
		t.Errorf("after toggle in: %d attendees, want 2", got)
	}
	if _, err := events.ToggleAttendance(bob.ID, event.ID, ""); err != nil {
		t.Fatalf("toggle out: %v", err)
	}
	if got := attendeeCount(); got != 1 {
		t.Errorf("after toggle out: %d attendees, want 1", got)
	}

	topic, frame := bus.last()
	if topic != realtime.GroupEventsTopic(group.ID) {
		t.Errorf("published on %q, want the group events topic", topic)
	}
	if ev, ok := frame.(EventBroadcast); !ok || ev.Action != "attendance" {
		t.Errorf("last frame = %+v, want attendance broadcast", frame)
	}
}

func TestToggleAttendanceProxy(t *testing.T) {
	events, groups, db, _ := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)
	if _, err := groups.JoinPublic(bob.ID, group.ID); err != nil {
		t.Fatalf("JoinPublic: %v", err)
	}

	event, err := events.CreateEvent(owner.ID, group.ID, baseEventRequest())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	// Owner checks bob in by email.
	if _, err := events.ToggleAttendance(owner.ID, event.ID, bob.Email); err != nil {
		t.Fatalf("proxy toggle: %v", err)
	}

	var row models.EventAttendee
	err = db.Where("event_id = ? AND user_id = ?", event.ID, bob.ID).First(&row).Error
	if err != nil {
		t.Errorf("proxy toggle did not add bob: %v", err)
	}
}

func TestUpdateEventBroadcastMatchesStoredRow(t *testing.T) {
	events, groups, db, bus := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	event, err := events.CreateEvent(owner.ID, group.ID, baseEventRequest())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	if _, err := events.UpdateEvent(owner.ID, event.ID, &dto.UpdateEventRequest{
		Title: strPtr("Renamed Run"),
	}); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}

	_, frame := bus.last()
	broadcast, ok := frame.(EventBroadcast)
	if !ok || broadcast.Action != "updated" {
		t.Fatalf("last frame = %+v, want updated broadcast", frame)
	}

	// The frame must be reconstructible from a durable read of the row,
	// including the write-back timestamp.
	var stored models.Event
	if err := db.First(&stored, "id = ?", event.ID).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if broadcast.Event.Title != stored.Title {
		t.Errorf("broadcast title = %q, stored %q", broadcast.Event.Title, stored.Title)
	}
	if !broadcast.Event.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Errorf("broadcast UpdatedAt %v != stored UpdatedAt %v",
			broadcast.Event.UpdatedAt, stored.UpdatedAt)
	}
}

func TestDeleteEventAnnouncesID(t *testing.T) {
	events, groups, db, bus := newEventService(t)
	owner := createUser(t, db, "owner@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	event, err := events.CreateEvent(owner.ID, group.ID, baseEventRequest())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := events.DeleteEvent(owner.ID, event.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}

	var attendees int64
	db.Model(&models.EventAttendee{}).Where("event_id = ?", event.ID).Count(&attendees)
	if attendees != 0 {
		t.Errorf("%d attendee rows survive event deletion", attendees)
	}

	_, frame := bus.last()
	ev, ok := frame.(EventBroadcast)
	if !ok || ev.Action != "deleted" || ev.EventID != event.ID {
		t.Errorf("last frame = %+v, want deleted broadcast with the event id", frame)
	}
}
