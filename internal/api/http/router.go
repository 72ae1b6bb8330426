package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/carebridge/support-service/internal/api/http/handlers"
	"github.com/carebridge/support-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Chat           *handlers.ChatHandler
	WS             *handlers.WSHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireSession())

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Post("/:id/transition", auth.RequireAdmin(), cfg.Tickets.Transition)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)
	tickets.Post("/:id/video-link", auth.RequireAdmin(), cfg.Tickets.IssueVideoLink)
	tickets.Patch("/:id/phone", cfg.Tickets.UpdatePhone)

	chat := api.Group("/chat")
	chat.Post("/channel", auth.RequireUser(), cfg.Chat.OpenChannel)
	chat.Get("/channels", auth.RequireAdmin(), cfg.Chat.ListChannels)
	chat.Get("/:id", cfg.Chat.GetChannel)
	chat.Get("/:id/messages", cfg.Chat.ListMessages)
	chat.Post("/:id/messages", cfg.Chat.SendMessage)
	chat.Post("/:id/read", cfg.Chat.MarkRead)
	chat.Delete("/:id/messages/:messageId", cfg.Chat.DeleteMessage)
	chat.Post("/:id/resolved", auth.RequireAdmin(), cfg.Chat.SetResolved)
	chat.Post("/:id/typing", cfg.Chat.SetTyping)

	// Websocket routes authenticate via the same middleware; browsers cannot
	// set headers on upgrade requests, so the token may also arrive as a
	// query parameter.
	ws := app.Group("/ws", cfg.AuthMiddleware.Handle, auth.RequireSession(), upgradeRequired)
	ws.Get("/chat/:id", websocket.New(cfg.WS.ChatSocket))
	ws.Get("/tickets/:id", websocket.New(cfg.WS.TicketSocket))
}

func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
