package handlers

import (
	"strconv"

	"battle-arena/middleware"
	"battle-arena/models"
	"battle-arena/services"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListTournaments(c *fiber.Ctx) error {
	filter := services.TournamentFilter{
		Status: models.TournamentStatus(c.Query("status")),
		Game:   models.GameType(c.Query("game")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return badRequest(c, "unknown status")
	}
	if filter.Game != "" && !filter.Game.Valid() {
		return badRequest(c, "unknown game")
	}
	tournaments, err := h.Tournaments.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(tournaments)
}

func (h *Handler) GetTournament(c *fiber.Ctx) error {
	t, err := h.Tournaments.ForViewer(c.UserContext(), c.Params("id"), "", false)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(t)
}

// GetTournamentForPlayer includes room credentials once released to a registered player.
func (h *Handler) GetTournamentForPlayer(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	t, err := h.Tournaments.ForViewer(c.UserContext(), c.Params("id"), user.ID, user.IsAdmin)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	registered, err := h.Registrations.IsRegistered(c.UserContext(), t.ID, user.ID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(fiber.Map{
		"tournament":    t,
		"is_registered": registered,
	})
}

func (h *Handler) JoinTournament(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	receipt, err := h.Registrations.Join(c.UserContext(), c.Params("id"), user.ID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(receipt)
}

func (h *Handler) CreateTournament(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	var in services.CreateTournamentInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if len(in.PrizeTiers) == 0 {
		in.PrizeTiers = models.DefaultPrizeTiers()
	}
	t, err := h.Tournaments.Create(c.UserContext(), user.ID, in)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *Handler) UpdateTournamentStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.TournamentStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	t, err := h.Tournaments.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(t)
}

func (h *Handler) ReleaseRoom(c *fiber.Ctx) error {
	var req struct {
		RoomID       string `json:"room_id"`
		RoomPassword string `json:"room_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	t, err := h.Tournaments.ReleaseRoom(c.UserContext(), c.Params("id"), req.RoomID, req.RoomPassword)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(t)
}

func (h *Handler) TournamentRegistrations(c *fiber.Ctx) error {
	regs, err := h.Registrations.ListForTournament(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(regs)
}

func (h *Handler) DisqualifyRegistration(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	reg, err := h.Registrations.Disqualify(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(reg)
}

func (h *Handler) SettleTournament(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	var req struct {
		Results []services.Standing `json:"results"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	settlement, err := h.Settlements.DistributePrizes(c.UserContext(), c.Params("id"), user.ID, req.Results)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(settlement)
}

func (h *Handler) TournamentResults(c *fiber.Ctx) error {
	results, err := h.Settlements.Results(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(results)
}

func (h *Handler) Leaderboard(c *fiber.Ctx) error {
	by := services.LeaderboardOrder(c.Query("by", string(services.LeaderboardByEarnings)))
	if by != services.LeaderboardByEarnings && by != services.LeaderboardByWins {
		return badRequest(c, "by must be earnings or wins")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	entries, err := h.Users.Leaderboard(c.UserContext(), by, limit)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(entries)
}
