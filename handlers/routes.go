package handlers

import (
	"log/slog"

	"battle-arena/middleware"
	"battle-arena/services"

	"github.com/gofiber/fiber/v2"
)

// Handler serves the HTTP API on top of the services.
type Handler struct {
	Tournaments   *services.TournamentService
	Registrations *services.RegistrationService
	Settlements   *services.SettlementService
	Withdrawals   *services.WithdrawalService
	Payments      *services.PaymentService
	Users         *services.UserService
	Logger        *slog.Logger
}

// RouteConfig holds the middleware dependencies of the secured routes.
type RouteConfig struct {
	Verifier    *middleware.TokenVerifier
	RateLimiter *middleware.KeyedRateLimiter
}

func (h *Handler) SetupRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = middleware.DefaultRateLimiter()
	}
	limit := middleware.RateLimitMiddleware(cfg.RateLimiter)

	// Public
	app.Get("/healthz", h.Health)
	app.Get("/tournaments", h.ListTournaments)
	app.Get("/tournaments/:id", h.GetTournament)
	app.Get("/leaderboard", h.Leaderboard)
	app.Post("/payments/webhook", h.PaymentWebhook)

	// Signed-in players
	secured := app.Group("/s", middleware.UserContextMiddleware(cfg.Verifier, h.Users, h.Logger))
	secured.Get("/me", h.Me)
	secured.Get("/me/stats", h.MyStats)
	secured.Get("/me/transactions", h.MyTransactions)
	secured.Get("/me/registrations", h.MyRegistrations)
	secured.Get("/me/payments", h.MyPayments)
	secured.Get("/tournaments/:id", h.GetTournamentForPlayer)
	secured.Post("/tournaments/:id/join", limit, h.JoinTournament)
	secured.Post("/withdrawals", limit, h.RequestWithdrawal)
	secured.Get("/withdrawals", h.MyWithdrawals)
	secured.Post("/payments/orders", limit, h.CreatePaymentOrder)

	// Operators
	admin := secured.Group("/admin", middleware.RequireAdmin())
	admin.Get("/dashboard", h.Dashboard)
	admin.Get("/users", h.ListUsers)
	admin.Post("/users/:id/ban", h.BanUser)
	admin.Post("/users/:id/unban", h.UnbanUser)
	admin.Post("/tournaments", h.CreateTournament)
	admin.Patch("/tournaments/:id/status", h.UpdateTournamentStatus)
	admin.Post("/tournaments/:id/room", h.ReleaseRoom)
	admin.Get("/tournaments/:id/registrations", h.TournamentRegistrations)
	admin.Post("/tournaments/:id/settle", h.SettleTournament)
	admin.Get("/tournaments/:id/results", h.TournamentResults)
	admin.Post("/registrations/:id/disqualify", h.DisqualifyRegistration)
	admin.Get("/withdrawals", h.ListWithdrawals)
	admin.Post("/withdrawals/:id/process", h.ProcessWithdrawal)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
