package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/huddleapp/huddle-backend/internal/config"
	"github.com/huddleapp/huddle-backend/internal/gateway"
	"github.com/huddleapp/huddle-backend/internal/handlers"
	"github.com/huddleapp/huddle-backend/internal/middleware"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	groupHandler *handlers.GroupHandler,
	eventHandler *handlers.EventHandler,
	postHandler *handlers.PostHandler,
	moderationHandler *handlers.ModerationHandler,
	gw *gateway.Gateway,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Public auth endpoints with a stricter rate limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	// Protected auth routes; JWT middleware applied per route so the
	// public auth endpoints above stay public.
	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)
	api.Delete("/auth/account", middleware.JWTProtected(cfg), authHandler.DeleteAccount)
	api.Get("/users/me", middleware.JWTProtected(cfg), authHandler.Me)
	api.Put("/users/me", middleware.JWTProtected(cfg), authHandler.UpdateProfile)

	// Groups and membership (protected)
	groups := api.Group("/groups", middleware.JWTProtected(cfg))
	groups.Post("/", groupHandler.Create)
	groups.Get("/", groupHandler.List)
	groups.Get("/:id", groupHandler.Get)
	groups.Put("/:id", groupHandler.Update)
	groups.Delete("/:id", groupHandler.Delete)
	groups.Get("/:id/members", groupHandler.ListMembers)
	groups.Post("/:id/members/invite", groupHandler.Invite)
	groups.Post("/:id/members/approve", groupHandler.Approve)
	groups.Post("/:id/members/join", groupHandler.Join)
	groups.Post("/:id/members/leave", groupHandler.Leave)
	groups.Post("/:id/members/remove", groupHandler.RemoveMember)
	groups.Post("/:id/members/role", groupHandler.SetRole)

	// Events (protected)
	groups.Post("/:id/events", eventHandler.Create)
	groups.Get("/:id/events", eventHandler.ListGroupEvents)
	api.Get("/events/feed", middleware.JWTProtected(cfg), eventHandler.Feed)
	events := api.Group("/events", middleware.JWTProtected(cfg))
	events.Put("/:id", eventHandler.Update)
	events.Delete("/:id", eventHandler.Delete)
	events.Post("/:id/attendance", eventHandler.ToggleAttendance)

	// Posts and comments (protected)
	groups.Post("/:id/posts", postHandler.Create)
	groups.Get("/:id/posts", postHandler.List)
	posts := api.Group("/posts", middleware.JWTProtected(cfg))
	posts.Get("/:id", postHandler.Get)
	posts.Put("/:id", postHandler.Update)
	posts.Delete("/:id", postHandler.Delete)
	posts.Post("/:id/reactions", postHandler.React)
	posts.Post("/:id/comments", postHandler.CreateComment)
	posts.Get("/:id/comments", postHandler.ListComments)
	comments := api.Group("/comments", middleware.JWTProtected(cfg))
	comments.Put("/:id", postHandler.UpdateComment)
	comments.Delete("/:id", postHandler.DeleteComment)

	// Moderation user endpoints (protected)
	api.Post("/reports", middleware.JWTProtected(cfg), moderationHandler.CreateReport)
	api.Post("/blocks", middleware.JWTProtected(cfg), moderationHandler.BlockUser)
	api.Delete("/blocks/:id", middleware.JWTProtected(cfg), moderationHandler.UnblockUser)

	// Admin moderation panel (protected + admin required)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Get("/moderation/reports", moderationHandler.ListReports)
	admin.Put("/moderation/reports/:id", moderationHandler.ActionReport)

	// Real-time gateway. Not under /api: the upgrade handshake resolves its
	// own credential (header or token query param) and allows anonymous
	// read-only connections, so the JWT middleware does not apply.
	app.Get("/ws", gw.Upgrade, gw.Handler())
}
