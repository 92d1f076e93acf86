package realtime

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Topic name builders. Topics are per group and per sub-resource so that
// high-churn streams (reactions) do not spam full-post subscribers.

func GroupPostsTopic(groupID uuid.UUID) string {
	return fmt.Sprintf("group.%s.posts", groupID)
}

func GroupPostsDeleteTopic(groupID uuid.UUID) string {
	return fmt.Sprintf("group.%s.posts.delete", groupID)
}

func PostReactionsTopic(groupID, postID uuid.UUID) string {
	return fmt.Sprintf("group.%s.posts.%s.reactions", groupID, postID)
}

func PostCommentsTopic(groupID, postID uuid.UUID) string {
	return fmt.Sprintf("group.%s.comments.%s", groupID, postID)
}

func PostCommentsDeleteTopic(groupID, postID uuid.UUID) string {
	return fmt.Sprintf("group.%s.comments.%s.delete", groupID, postID)
}

func GroupMembershipTopic(groupID uuid.UUID) string {
	return fmt.Sprintf("group.%s.membership", groupID)
}

func GroupEventsTopic(groupID uuid.UUID) string {
	return fmt.Sprintf("group.%s.events", groupID)
}

// GroupWildcard subscribes to every topic under one group.
func GroupWildcard(groupID uuid.UUID) string {
	return fmt.Sprintf("group.%s.*", groupID)
}

// ParseGroupTopic extracts the group ID from a group-scoped topic or
// wildcard pattern. Returns false for topics outside the group namespace.
func ParseGroupTopic(topic string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(topic, "group.")
	if !ok {
		return uuid.Nil, false
	}
	id, _, _ := strings.Cut(rest, ".")
	groupID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false
	}
	return groupID, true
}
