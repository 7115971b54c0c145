// Package api assembles the HTTP surface: fiber app, middleware chain and
// route table.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/auth"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/ws"
)

// Deps carries everything the route table needs.
type Deps struct {
	Auth          *AuthHandlers
	Friends       *FriendHandlers
	Chat          *ChatHandlers
	Notifications *NotificationHandlers
	WS            *ws.Handler
	Tokens        *auth.TokenManager
	RateLimiter   *RateLimiter
	PromRegistry  *prometheus.Registry
	Log           *zap.Logger
}

// New builds the fiber app with the full middleware chain and routes.
func New(cfg config.Config, d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: !cfg.Server.Development,
	})

	app.Use(Recovery(d.Log))
	app.Use(cors.New())
	app.Use(RequestLogger(d.Log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(
		d.PromRegistry, promhttp.HandlerOpts{})))

	requireAuth := auth.Middleware(d.Tokens)
	limited := d.RateLimiter.Middleware()

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", limited, d.Auth.Signup)
	authGroup.Post("/login", limited, d.Auth.Login)
	authGroup.Post("/logout", d.Auth.Logout)
	authGroup.Get("/verify-email", limited, d.Auth.VerifyEmail)
	authGroup.Post("/resend-verification", limited, d.Auth.ResendVerification)
	authGroup.Get("/check", requireAuth, d.Auth.Check)
	authGroup.Put("/update-profile", requireAuth, limited, d.Auth.UpdateProfile)
	authGroup.Delete("/delete-account", requireAuth, d.Auth.DeleteAccount)

	friendGroup := api.Group("/friends", requireAuth, limited)
	friendGroup.Get("/", d.Friends.List)
	friendGroup.Post("/requests", d.Friends.SendRequest)
	friendGroup.Get("/requests/incoming", d.Friends.Incoming)
	friendGroup.Get("/requests/outgoing", d.Friends.Outgoing)
	friendGroup.Put("/requests/:id/accept", d.Friends.AcceptRequest)
	friendGroup.Put("/requests/:id/reject", d.Friends.RejectRequest)
	friendGroup.Delete("/requests/:id", d.Friends.CancelRequest)
	friendGroup.Get("/search", d.Friends.Search)
	friendGroup.Get("/:id/profile", d.Friends.Profile)
	friendGroup.Delete("/:id", d.Friends.RemoveFriend)
	friendGroup.Post("/:id/block", d.Friends.Block)
	friendGroup.Delete("/:id/block", d.Friends.Unblock)

	msgGroup := api.Group("/messages", requireAuth, limited)
	msgGroup.Post("/send/:id", d.Chat.Send)
	msgGroup.Get("/:id", d.Chat.History)
	msgGroup.Put("/:id/read", d.Chat.MarkRead)

	notifGroup := api.Group("/notifications", requireAuth)
	notifGroup.Get("/", d.Notifications.List)
	notifGroup.Get("/unread-count", d.Notifications.UnreadCount)
	notifGroup.Put("/read-all", d.Notifications.MarkAllRead)
	notifGroup.Put("/:id/read", d.Notifications.MarkRead)
	notifGroup.Delete("/", d.Notifications.Clear)
	notifGroup.Post("/device-tokens", d.Notifications.RegisterToken)
	notifGroup.Delete("/device-tokens", d.Notifications.UnregisterToken)
	notifGroup.Get("/metrics", d.Notifications.DeliveryMetrics)
	notifGroup.Post("/metrics/reset", d.Notifications.ResetDeliveryMetrics)

	app.Use("/ws", d.WS.UpgradeGate())
	app.Get("/ws", websocket.New(d.WS.Serve))

	return app
}
