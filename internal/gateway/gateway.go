// Package gateway is the authenticated real-time entry point: it upgrades
// connections, resolves the principal, registers presence, and routes
// inbound mutation messages to the owning services. REST and WebSocket
// mutations share the same service methods, so authorization rules are
// identical regardless of entry point.
package gateway

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/identity"
	"github.com/huddleapp/huddle-backend/internal/realtime"
	"github.com/huddleapp/huddle-backend/internal/services"
)

const (
	msgSubscribe     = "subscribe"
	msgUnsubscribe   = "unsubscribe"
	msgCreatePost    = "create-post"
	msgEditPost      = "edit-post"
	msgDeletePost    = "delete-post"
	msgCreateComment = "create-comment"
	msgEditComment   = "edit-comment"
	msgDeleteComment = "delete-comment"
)

type Gateway struct {
	resolver   *identity.Resolver
	bus        *realtime.Bus
	presence   *realtime.Presence
	groups     *services.GroupService
	posts      *services.PostService
	sendBuffer int
}

func New(resolver *identity.Resolver, bus *realtime.Bus, presence *realtime.Presence, groups *services.GroupService, posts *services.PostService, sendBuffer int) *Gateway {
	return &Gateway{
		resolver:   resolver,
		bus:        bus,
		presence:   presence,
		groups:     groups,
		posts:      posts,
		sendBuffer: sendBuffer,
	}
}

// Upgrade gates the WebSocket route. It resolves the principal before the
// protocol switch; an absent credential yields an anonymous connection,
// an invalid one rejects the upgrade.
func (g *Gateway) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	principal, err := g.resolver.FromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized: invalid or expired token",
		})
	}
	c.Locals("principal", principal)
	return c.Next()
}

// Handler returns the connection handler for the upgraded socket.
func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(g.handle)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type topicPayload struct {
	Topic string `json:"topic"`
}

type createPostPayload struct {
	GroupID uuid.UUID `json:"group_id"`
	dto.CreatePostRequest
}

type editPostPayload struct {
	PostID uuid.UUID `json:"post_id"`
	dto.UpdatePostRequest
}

type deletePostPayload struct {
	PostID uuid.UUID `json:"post_id"`
}

type createCommentPayload struct {
	PostID  uuid.UUID `json:"post_id"`
	Content string    `json:"content"`
}

type editCommentPayload struct {
	CommentID uuid.UUID `json:"comment_id"`
	Content   string    `json:"content"`
}

type deleteCommentPayload struct {
	CommentID uuid.UUID `json:"comment_id"`
}

func (g *Gateway) handle(conn *websocket.Conn) {
	principal, _ := conn.Locals("principal").(*identity.Principal)
	connID := uuid.NewString()
	sub := realtime.NewSubscriber(connID, g.sendBuffer)

	if principal != nil {
		if online := g.presence.AddSession(principal.UserID, connID); online {
			slog.Info("account online", "user_id", principal.UserID.String())
		}
	}

	done := make(chan struct{})
	go g.writePump(conn, sub, done)

	defer func() {
		close(done)
		g.bus.Drop(sub)
		if principal != nil {
			if offline := g.presence.RemoveSession(principal.UserID, connID); offline {
				slog.Info("account offline", "user_id", principal.UserID.String())
			}
		}
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		g.dispatch(principal, sub, &msg)
	}
}

func (g *Gateway) writePump(conn *websocket.Conn, sub *realtime.Subscriber, done chan struct{}) {
	for {
		select {
		case msg := <-sub.C():
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (g *Gateway) dispatch(principal *identity.Principal, sub *realtime.Subscriber, msg *inboundMessage) {
	switch msg.Type {
	case msgSubscribe:
		g.handleSubscribe(principal, sub, msg.Data)
	case msgUnsubscribe:
		var p topicPayload
		if err := json.Unmarshal(msg.Data, &p); err == nil && p.Topic != "" {
			g.bus.Unsubscribe(sub, p.Topic)
		}
	case msgCreatePost, msgEditPost, msgDeletePost, msgCreateComment, msgEditComment, msgDeleteComment:
		// Mutations require a resolved principal; anonymous connections
		// stay open but their actions are rejected, never processed.
		if principal == nil {
			slog.Warn("rejected anonymous realtime mutation", "type", msg.Type, "connection", sub.ID)
			g.sendError(sub, "Sign-in required.")
			return
		}
		if err := g.mutate(principal, msg); err != nil {
			g.sendError(sub, err.Error())
		}
	default:
		g.sendError(sub, "Unknown message type: "+msg.Type)
	}
}

func (g *Gateway) handleSubscribe(principal *identity.Principal, sub *realtime.Subscriber, data json.RawMessage) {
	var p topicPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Topic == "" {
		g.sendError(sub, "Topic is required.")
		return
	}

	// Group-scoped topics apply the member-or-public test to the viewer.
	if groupID, ok := realtime.ParseGroupTopic(p.Topic); ok {
		viewer := uuid.Nil
		if principal != nil {
			viewer = principal.UserID
		}
		if err := g.groups.CanAccessGroup(viewer, groupID); err != nil {
			g.sendError(sub, err.Error())
			return
		}
	}

	g.bus.Subscribe(sub, p.Topic)
}

func (g *Gateway) mutate(principal *identity.Principal, msg *inboundMessage) error {
	actor := principal.UserID

	switch msg.Type {
	case msgCreatePost:
		var p createPostPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return errInvalidPayload
		}
		_, err := g.posts.CreatePost(actor, p.GroupID, &p.CreatePostRequest)
		return err

	case msgEditPost:
		var p editPostPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return errInvalidPayload
		}
		_, err := g.posts.UpdatePost(actor, p.PostID, &p.UpdatePostRequest)
		return err

	case msgDeletePost:
		var p deletePostPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return errInvalidPayload
		}
		return g.posts.DeletePost(actor, p.PostID)

	case msgCreateComment:
		var p createCommentPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return errInvalidPayload
		}
		_, err := g.posts.CreateComment(actor, p.PostID, p.Content)
		return err

	case msgEditComment:
		var p editCommentPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return errInvalidPayload
		}
		_, err := g.posts.UpdateComment(actor, p.CommentID, p.Content)
		return err

	case msgDeleteComment:
		var p deleteCommentPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return errInvalidPayload
		}
		return g.posts.DeleteComment(actor, p.CommentID)
	}
	return nil
}

func (g *Gateway) sendError(sub *realtime.Subscriber, message string) {
	dropped := !sub.Offer(realtime.Message{
		Topic:   "error",
		Payload: dto.ErrorResponse{Error: true, Message: message},
	})
	if dropped {
		slog.Warn("dropped error frame for slow subscriber", "subscriber", sub.ID)
	}
}

var errInvalidPayload = errInvalid{}

type errInvalid struct{}

func (errInvalid) Error() string { return "Invalid message payload." }
