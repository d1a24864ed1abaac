// handlers/routes.go - API and WebSocket route table
package handlers

import (
	"fitchallenge/handlers/admin"
	"fitchallenge/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RouteOptions configures SetupRoutes
type RouteOptions struct {
	Verifier   middleware.TokenVerifier
	AdminToken string
	// AuthLimiter, when set, guards /api/auth
	AuthLimiter fiber.Handler
}

// SetupRoutes registers every API and WebSocket route on app
func SetupRoutes(app *fiber.App, opts RouteOptions) {
	requireAuth := middleware.RequireAuth(opts.Verifier)
	optionalAuth := middleware.OptionalAuth(opts.Verifier)

	api := app.Group("/api")

	// Auth routes with stricter rate limiting
	authGroup := api.Group("/auth")
	if opts.AuthLimiter != nil {
		authGroup.Use(opts.AuthLimiter)
	}
	authGroup.Post("/register", Register)
	authGroup.Post("/login", Login)

	// Profile routes
	profileGroup := api.Group("/profile", requireAuth)
	profileGroup.Get("/", GetProfile)
	profileGroup.Put("/", UpdateProfile)
	profileGroup.Get("/challenges", GetMyChallenges)

	// Challenge routes
	challengeGroup := api.Group("/challenges")
	challengeGroup.Get("/", GetChallenges)
	challengeGroup.Post("/", requireAuth, CreateChallenge)
	challengeGroup.Get("/:id", optionalAuth, GetChallenge)
	challengeGroup.Delete("/:id", requireAuth, DeleteChallenge)
	challengeGroup.Post("/:id/image", requireAuth, UploadChallengeImage)
	challengeGroup.Post("/:id/join", requireAuth, JoinChallenge)
	challengeGroup.Post("/:id/leave", requireAuth, LeaveChallenge)
	challengeGroup.Get("/:id/participants", GetParticipants)

	// Comment routes
	challengeGroup.Get("/:id/comments", GetComments)
	challengeGroup.Post("/:id/comments", requireAuth, CreateComment)
	challengeGroup.Put("/:id/comments/:commentId", requireAuth, EditComment)
	challengeGroup.Delete("/:id/comments/:commentId", requireAuth, DeleteComment)
	challengeGroup.Post("/:id/comments/:commentId/reactions/:kind", requireAuth, ToggleReaction)

	// Protected admin routes
	adminGroup := api.Group("/admin", middleware.AdminToken(opts.AdminToken))
	adminGroup.Post("/reconcile", admin.ManualReconcile)
	adminGroup.Get("/reconcile/stats", admin.GetReconcileStats)

	// Live views
	ws := app.Group("/ws", optionalAuth, RequireUpgrade)
	ws.Get("/challenges", DirectoryFilter, websocket.New(DirectorySocket))
	ws.Get("/challenges/:id/comments", websocket.New(CommentsSocket))
	ws.Get("/challenges/:id", websocket.New(ChallengeSocket))
}
