package services

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/apperr"
	"github.com/huddleapp/huddle-backend/internal/database"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/models"
	"github.com/huddleapp/huddle-backend/internal/notify"
	"github.com/huddleapp/huddle-backend/internal/realtime"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostBroadcast is the full canonical post as broadcast on the group's
// post topic. ClientToken echoes the sender's correlation token unchanged
// so the originating client can reconcile its optimistic placeholder.
type PostBroadcast struct {
	models.Post
	ClientToken string `json:"client_token,omitempty"`
}

// PostDeleteBroadcast goes out on the dedicated post-deletion topic.
type PostDeleteBroadcast struct {
	PostID  uuid.UUID `json:"post_id"`
	GroupID uuid.UUID `json:"group_id"`
}

// ReactionBroadcast goes out on the per-post reactions sub-topic so that
// reaction churn does not spam full-post subscribers.
type ReactionBroadcast struct {
	PostID    uuid.UUID      `json:"post_id"`
	GroupID   uuid.UUID      `json:"group_id"`
	Reactions map[string]int `json:"reactions"`
}

// CommentBroadcast is the full canonical comment on the per-post comments
// topic.
type CommentBroadcast struct {
	models.Comment
	GroupID uuid.UUID `json:"group_id"`
}

type CommentDeleteBroadcast struct {
	CommentID uuid.UUID `json:"comment_id"`
	PostID    uuid.UUID `json:"post_id"`
	GroupID   uuid.UUID `json:"group_id"`
}

// PostService owns post and comment mutations. Authorship is immutable:
// only the author edits or deletes their content. Every broadcast carries
// the persisted canonical representation and fires only after commit.
type PostService struct {
	db         *gorm.DB
	bus        Publisher
	moderation *ModerationService
	notifier   notify.Notifier
}

func NewPostService(db *gorm.DB, bus Publisher, moderation *ModerationService, notifier notify.Notifier) *PostService {
	return &PostService{db: db, bus: bus, moderation: moderation, notifier: notifier}
}

// CreatePost persists a post and fans out the canonical result. The
// author field, when supplied, must match the acting principal.
func (s *PostService) CreatePost(actor, groupID uuid.UUID, req *dto.CreatePostRequest) (*PostBroadcast, error) {
	if req.AuthorID != "" && req.AuthorID != actor.String() {
		return nil, apperr.Forbidden("You can only post as yourself.")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Invalid("Post content is required.")
	}
	if ok, reason := s.moderation.FilterContent(req.Content); !ok {
		return nil, apperr.Invalid(s.moderation.GetRejectionMessage(reason))
	}

	post := &models.Post{
		ID:        uuid.New(),
		GroupID:   groupID,
		AuthorID:  actor,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		Tags:      datatypes.NewJSONSlice(req.Tags),
		Mentions:  datatypes.NewJSONSlice(req.Mentions),
		Reactions: datatypes.NewJSONType(map[string]int{}),
	}

	var result *PostBroadcast
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		if _, err := findGroup(uow.DB(), groupID); err != nil {
			return err
		}
		if !isActiveMember(uow.DB(), groupID, actor) {
			return apperr.Forbidden("Group membership required.")
		}
		if err := uow.DB().Create(post).Error; err != nil {
			return err
		}
		result = &PostBroadcast{Post: *post, ClientToken: req.ClientToken}
		payload := *result
		uow.AfterCommit(func() {
			s.bus.Publish(realtime.GroupPostsTopic(groupID), payload)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePost patches the allow-listed post fields. Author only.
func (s *PostService) UpdatePost(actor, postID uuid.UUID, req *dto.UpdatePostRequest) (*models.Post, error) {
	var post *models.Post
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		var err error
		post, err = s.findPost(uow.DB(), postID)
		if err != nil {
			return err
		}
		if post.AuthorID != actor {
			return apperr.Forbidden("You can only edit your own posts.")
		}

		updates := map[string]interface{}{}
		if req.Content != nil {
			if strings.TrimSpace(*req.Content) == "" {
				return apperr.Invalid("Post content cannot be blank.")
			}
			if ok, reason := s.moderation.FilterContent(*req.Content); !ok {
				return apperr.Invalid(s.moderation.GetRejectionMessage(reason))
			}
			updates["content"] = *req.Content
			post.Content = *req.Content
		}
		if req.ImageURL != nil {
			updates["image_url"] = *req.ImageURL
			post.ImageURL = *req.ImageURL
		}
		if req.Tags != nil {
			post.Tags = datatypes.NewJSONSlice(*req.Tags)
			updates["tags"] = post.Tags
		}
		if req.Mentions != nil {
			post.Mentions = datatypes.NewJSONSlice(*req.Mentions)
			updates["mentions"] = post.Mentions
		}
		if len(updates) == 0 {
			return nil
		}

		now := time.Now()
		updates["edited_at"] = now
		post.EditedAt = &now
		if err := uow.DB().Model(&models.Post{}).Where("id = ?", postID).Updates(updates).Error; err != nil {
			return err
		}

		payload := PostBroadcast{Post: *post}
		uow.AfterCommit(func() {
			s.bus.Publish(realtime.GroupPostsTopic(payload.GroupID), payload)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post. Author only; the deletion is announced on the
// dedicated delete topic.
func (s *PostService) DeletePost(actor, postID uuid.UUID) error {
	return database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		post, err := s.findPost(uow.DB(), postID)
		if err != nil {
			return err
		}
		if post.AuthorID != actor {
			return apperr.Forbidden("You can only delete your own posts.")
		}
		if err := uow.DB().Delete(post).Error; err != nil {
			return err
		}
		groupID := post.GroupID
		uow.AfterCommit(func() {
			s.bus.Publish(realtime.GroupPostsDeleteTopic(groupID), PostDeleteBroadcast{
				PostID:  postID,
				GroupID: groupID,
			})
		})
		return nil
	})
}

// React increments the post's counter for one reaction label. Counters are
// monotonic; there is no un-react.
func (s *PostService) React(actor, postID uuid.UUID, label string) (map[string]int, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperr.Invalid("Reaction label is required.")
	}

	var counters map[string]int
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		// Row lock covers the read-modify-write of the counter map so
		// concurrent reactions do not lose increments.
		post, err := s.findPost(uow.DB().Clauses(clause.Locking{Strength: "UPDATE"}), postID)
		if err != nil {
			return err
		}
		if !isActiveMember(uow.DB(), post.GroupID, actor) {
			return apperr.Forbidden("Group membership required.")
		}

		counters = post.Reactions.Data()
		if counters == nil {
			counters = map[string]int{}
		}
		counters[label]++
		if err := uow.DB().Model(&models.Post{}).Where("id = ?", postID).
			Update("reactions", datatypes.NewJSONType(counters)).Error; err != nil {
			return err
		}

		payload := ReactionBroadcast{PostID: postID, GroupID: post.GroupID, Reactions: counters}
		uow.AfterCommit(func() {
			s.bus.Publish(realtime.PostReactionsTopic(payload.GroupID, postID), payload)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// CreateComment persists a comment, bumps the post's comment counter, and
// notifies the post author best-effort. Notification failure never fails
// the comment.
func (s *PostService) CreateComment(actor, postID uuid.UUID, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("Comment content is required.")
	}
	if ok, reason := s.moderation.FilterContent(content); !ok {
		return nil, apperr.Invalid(s.moderation.GetRejectionMessage(reason))
	}

	comment := &models.Comment{
		ID:       uuid.New(),
		PostID:   postID,
		AuthorID: actor,
		Content:  content,
	}

	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		post, err := s.findPost(uow.DB(), postID)
		if err != nil {
			return err
		}
		if !isActiveMember(uow.DB(), post.GroupID, actor) {
			return apperr.Forbidden("Group membership required.")
		}
		if err := uow.DB().Create(comment).Error; err != nil {
			return err
		}
		if err := uow.DB().Model(&models.Post{}).Where("id = ?", postID).
			Update("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
			return err
		}

		payload := CommentBroadcast{Comment: *comment, GroupID: post.GroupID}
		authorID := post.AuthorID
		uow.AfterCommit(func() {
			s.bus.Publish(realtime.PostCommentsTopic(payload.GroupID, postID), payload)
			if authorID != actor {
				s.notifyCommented(authorID)
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// UpdateComment edits a comment's text. Author only.
func (s *PostService) UpdateComment(actor, commentID uuid.UUID, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("Comment content cannot be blank.")
	}
	if ok, reason := s.moderation.FilterContent(content); !ok {
		return nil, apperr.Invalid(s.moderation.GetRejectionMessage(reason))
	}

	var comment *models.Comment
	err := database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		var err error
		comment, err = s.findComment(uow.DB(), commentID)
		if err != nil {
			return err
		}
		if comment.AuthorID != actor {
			return apperr.Forbidden("You can only edit your own comments.")
		}
		post, err := s.findPost(uow.DB(), comment.PostID)
		if err != nil {
			return err
		}

		now := time.Now()
		comment.Content = content
		comment.EditedAt = &now
		if err := uow.DB().Model(&models.Comment{}).Where("id = ?", commentID).Updates(map[string]interface{}{
			"content":   content,
			"edited_at": now,
		}).Error; err != nil {
			return err
		}

		payload := CommentBroadcast{Comment: *comment, GroupID: post.GroupID}
		uow.AfterCommit(func() {
			s.bus.Publish(realtime.PostCommentsTopic(payload.GroupID, comment.PostID), payload)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment and decrements the post's counter.
// Author only.
func (s *PostService) DeleteComment(actor, commentID uuid.UUID) error {
	return database.WithUnitOfWork(s.db, func(uow *database.UnitOfWork) error {
		comment, err := s.findComment(uow.DB(), commentID)
		if err != nil {
			return err
		}
		if comment.AuthorID != actor {
			return apperr.Forbidden("You can only delete your own comments.")
		}
		post, err := s.findPost(uow.DB(), comment.PostID)
		if err != nil {
			return err
		}

		if err := uow.DB().Delete(comment).Error; err != nil {
			return err
		}
		if err := uow.DB().Model(&models.Post{}).Where("id = ?", comment.PostID).
			Update("comment_count", gorm.Expr("comment_count - 1")).Error; err != nil {
			return err
		}

		payload := CommentDeleteBroadcast{
			CommentID: commentID,
			PostID:    comment.PostID,
			GroupID:   post.GroupID,
		}
		uow.AfterCommit(func() {
			s.bus.Publish(realtime.PostCommentsDeleteTopic(payload.GroupID, payload.PostID), payload)
		})
		return nil
	})
}

// ListGroupPosts returns a group's posts newest-first. Active members see
// them always; everyone else only when the group is public.
func (s *PostService) ListGroupPosts(viewer uuid.UUID, groupID uuid.UUID, page, limit int) ([]models.Post, int64, error) {
	group, err := findGroup(s.db, groupID)
	if err != nil {
		return nil, 0, err
	}
	if err := memberOrPublic(s.db, group, viewer); err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	var total int64
	offset := (page - 1) * limit

	s.db.Model(&models.Post{}).Where("group_id = ?", groupID).Count(&total)
	err = s.db.Where("group_id = ?", groupID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	return posts, total, err
}

func (s *PostService) GetPost(postID uuid.UUID) (*models.Post, error) {
	return s.findPost(s.db, postID)
}

func (s *PostService) ListComments(postID uuid.UUID, page, limit int) ([]models.Comment, error) {
	if _, err := s.findPost(s.db, postID); err != nil {
		return nil, err
	}
	var comments []models.Comment
	offset := (page - 1) * limit
	err := s.db.Where("post_id = ?", postID).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

func (s *PostService) notifyCommented(authorID uuid.UUID) {
	var author models.User
	if err := s.db.First(&author, "id = ?", authorID).Error; err != nil {
		return
	}
	if author.PushToken == "" {
		return
	}
	err := s.notifier.Send(notify.Notification{
		Token: author.PushToken,
		Title: "New comment",
		Body:  "Someone commented on your post.",
	})
	if err != nil {
		slog.Error("comment notification failed", "error", err, "user_id", authorID.String())
	}
}

func (s *PostService) findPost(db *gorm.DB, postID uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := db.First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Post not found.")
		}
		return nil, err
	}
	return &post, nil
}

func (s *PostService) findComment(db *gorm.DB, commentID uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := db.First(&comment, "id = ?", commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Comment not found.")
		}
		return nil, err
	}
	return &comment, nil
}
