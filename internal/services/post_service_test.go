package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/apperr"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/models"
	"github.com/huddleapp/huddle-backend/internal/notify"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Send(n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newPostService(t *testing.T) (*PostService, *GroupService, *gorm.DB, *fakeBus, *fakeNotifier) {
	t.Helper()
	db := newTestDB(t)
	bus := &fakeBus{}
	notifier := &fakeNotifier{}
	posts := NewPostService(db, bus, NewModerationService(db), notifier)
	return posts, NewGroupService(db, bus), db, bus, notifier
}

func TestCreatePostRejectsForgedAuthor(t *testing.T) {
	posts, groups, db, bus, _ := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	mallory := createUser(t, db, "mallory@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)
	if _, err := groups.JoinPublic(mallory.ID, group.ID); err != nil {
		t.Fatalf("JoinPublic: %v", err)
	}

	before := bus.count()
	_, err := posts.CreatePost(mallory.ID, group.ID, &dto.CreatePostRequest{
		AuthorID: owner.ID.String(),
		Content:  "pretending to be the owner",
	})
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if bus.count() != before {
		t.Error("rejected post was broadcast")
	}

	var count int64
	db.Model(&models.Post{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected post was stored (%d rows)", count)
	}
}

func TestCreatePostEchoesClientToken(t *testing.T) {
	posts, groups, db, bus, _ := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	broadcast, err := posts.CreatePost(owner.ID, group.ID, &dto.CreatePostRequest{
		Content:     "first post",
		ClientToken: "tmp-123",
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if broadcast.ClientToken != "tmp-123" {
		t.Errorf("returned token = %q, want tmp-123", broadcast.ClientToken)
	}
	if broadcast.AuthorID != owner.ID {
		t.Errorf("author = %s, want the acting account", broadcast.AuthorID)
	}

	_, frame := bus.last()
	pb, ok := frame.(PostBroadcast)
	if !ok {
		t.Fatalf("last frame = %T, want PostBroadcast", frame)
	}
	if pb.ClientToken != "tmp-123" {
		t.Errorf("broadcast token = %q, want tmp-123", pb.ClientToken)
	}
	if pb.ID != broadcast.ID {
		t.Error("broadcast does not carry the canonical post")
	}
}

func TestCreatePostRequiresActiveMembership(t *testing.T) {
	posts, groups, db, _, _ := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	// Posting needs membership even in public groups.
	group := mustCreateGroup(t, groups, owner.ID, false)

	_, err := posts.CreatePost(bob.ID, group.ID, &dto.CreatePostRequest{Content: "hi"})
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
}

func TestCreatePostFiltersContent(t *testing.T) {
	posts, groups, db, _, _ := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	_, err := posts.CreatePost(owner.ID, group.ID, &dto.CreatePostRequest{
		Content: "this is fucking unacceptable",
	})
	if !apperr.IsKind(err, apperr.KindInvalid) {
		t.Errorf("err = %v, want invalid", err)
	}
}

func TestUpdateAndDeletePostAuthorOnly(t *testing.T) {
	posts, groups, db, bus, _ := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)
	if _, err := groups.JoinPublic(bob.ID, group.ID); err != nil {
		t.Fatalf("JoinPublic: %v", err)
	}

	created, err := posts.CreatePost(owner.ID, group.ID, &dto.CreatePostRequest{Content: "mine"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	patch := &dto.UpdatePostRequest{Content: strPtr("stolen")}
	if _, err := posts.UpdatePost(bob.ID, created.ID, patch); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("non-author update err = %v, want forbidden", err)
	}
	if err := posts.DeletePost(bob.ID, created.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("non-author delete err = %v, want forbidden", err)
	}

	updated, err := posts.UpdatePost(owner.ID, created.ID, &dto.UpdatePostRequest{Content: strPtr("edited")})
	if err != nil {
		t.Fatalf("author update: %v", err)
	}
	if updated.EditedAt == nil {
		t.Error("edit did not stamp edited_at")
	}

	if err := posts.DeletePost(owner.ID, created.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	_, frame := bus.last()
	del, ok := frame.(PostDeleteBroadcast)
	if !ok || del.PostID != created.ID {
		t.Errorf("last frame = %+v, want delete broadcast for the post", frame)
	}
}

func TestCreatePostInUnknownGroupIsNotFound(t *testing.T) {
	posts, _, db, bus, _ := newPostService(t)
	author := createUser(t, db, "owner@example.com")

	before := bus.count()
	_, err := posts.CreatePost(author.ID, uuid.New(), &dto.CreatePostRequest{Content: "hello"})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
	if bus.count() != before {
		t.Error("rejected post was broadcast")
	}
}

func TestReactCountsMonotonically(t *testing.T) {
	posts, groups, db, bus, _ := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)

	created, err := posts.CreatePost(owner.ID, group.ID, &dto.CreatePostRequest{Content: "react to me"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	if _, err := posts.React(owner.ID, created.ID, "thumbs_up"); err != nil {
		t.Fatalf("React: %v", err)
	}
	counters, err := posts.React(owner.ID, created.ID, "thumbs_up")
	if err != nil {
		t.Fatalf("React: %v", err)
	}
	if counters["thumbs_up"] != 2 {
		t.Errorf("thumbs_up = %d, want 2", counters["thumbs_up"])
	}

	// Reactions fan out on their own sub-topic, not the post topic.
	topic, frame := bus.last()
	want := "group." + group.ID.String() + ".posts." + created.ID.String() + ".reactions"
	if topic != want {
		t.Errorf("published on %q, want %q", topic, want)
	}
	rb, ok := frame.(ReactionBroadcast)
	if !ok || rb.Reactions["thumbs_up"] != 2 {
		t.Errorf("last frame = %+v, want reaction broadcast with count 2", frame)
	}

	if _, err := posts.React(owner.ID, created.ID, "  "); !apperr.IsKind(err, apperr.KindInvalid) {
		t.Errorf("blank label err = %v, want invalid", err)
	}
}

func TestReactLosesNoIncrements(t *testing.T) {
	posts, groups, db, _, _ := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)
	if _, err := groups.JoinPublic(bob.ID, group.ID); err != nil {
		t.Fatalf("JoinPublic: %v", err)
	}

	created, err := posts.CreatePost(owner.ID, group.ID, &dto.CreatePostRequest{Content: "react to me"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	// Interleaved reactors on the same label; the locked read-modify-write
	// must account for every one of them.
	for i := 0; i < 5; i++ {
		if _, err := posts.React(owner.ID, created.ID, "thumbs_up"); err != nil {
			t.Fatalf("React owner: %v", err)
		}
		if _, err := posts.React(bob.ID, created.ID, "thumbs_up"); err != nil {
			t.Fatalf("React bob: %v", err)
		}
	}

	var stored models.Post
	if err := db.First(&stored, "id = ?", created.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if got := stored.Reactions.Data()["thumbs_up"]; got != 10 {
		t.Errorf("stored thumbs_up = %d, want 10", got)
	}
}

func TestCommentLifecycle(t *testing.T) {
	posts, groups, db, bus, notifier := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	group := mustCreateGroup(t, groups, owner.ID, false)
	if _, err := groups.JoinPublic(bob.ID, group.ID); err != nil {
		t.Fatalf("JoinPublic: %v", err)
	}
	db.Model(&models.User{}).Where("id = ?", owner.ID).Update("push_token", "tok-1")

	created, err := posts.CreatePost(owner.ID, group.ID, &dto.CreatePostRequest{Content: "discuss"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	comment, err := posts.CreateComment(bob.ID, created.ID, "interesting")
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	var post models.Post
	if err := db.First(&post, "id = ?", created.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if post.CommentCount != 1 {
		t.Errorf("comment_count = %d, want 1", post.CommentCount)
	}

	// Commenting on someone else's post notifies the author.
	if notifier.count() != 1 {
		t.Errorf("sent %d notifications, want 1", notifier.count())
	}
	// Commenting on your own post does not.
	if _, err := posts.CreateComment(owner.ID, created.ID, "replying to myself"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if notifier.count() != 1 {
		t.Errorf("self-comment sent a notification")
	}

	if _, err := posts.UpdateComment(owner.ID, comment.ID, "hijack"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("non-author comment update err = %v, want forbidden", err)
	}
	if _, err := posts.UpdateComment(bob.ID, comment.ID, "still interesting"); err != nil {
		t.Fatalf("UpdateComment: %v", err)
	}

	if err := posts.DeleteComment(bob.ID, comment.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	db.First(&post, "id = ?", created.ID)
	if post.CommentCount != 1 {
		t.Errorf("comment_count after delete = %d, want 1", post.CommentCount)
	}

	_, frame := bus.last()
	del, ok := frame.(CommentDeleteBroadcast)
	if !ok || del.CommentID != comment.ID {
		t.Errorf("last frame = %+v, want comment delete broadcast", frame)
	}
}

func TestListGroupPostsVisibility(t *testing.T) {
	posts, groups, db, _, _ := newPostService(t)
	owner := createUser(t, db, "owner@example.com")
	bob := createUser(t, db, "bob@example.com")
	public := mustCreateGroup(t, groups, owner.ID, false)
	private := mustCreateGroup(t, groups, owner.ID, true)

	if _, err := posts.CreatePost(owner.ID, public.ID, &dto.CreatePostRequest{Content: "open"}); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if _, err := posts.CreatePost(owner.ID, private.ID, &dto.CreatePostRequest{Content: "closed"}); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	// Public group posts are readable by anyone.
	visible, total, err := posts.ListGroupPosts(bob.ID, public.ID, 1, 20)
	if err != nil {
		t.Fatalf("ListGroupPosts: %v", err)
	}
	if total != 1 || len(visible) != 1 {
		t.Errorf("outsider sees %d posts (total %d), want 1", len(visible), total)
	}

	// Private group posts are not.
	if _, _, err := posts.ListGroupPosts(bob.ID, private.ID, 1, 20); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("private list err = %v, want forbidden", err)
	}
}
