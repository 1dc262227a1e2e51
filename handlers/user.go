package handlers

import (
	"strconv"

	"battle-arena/middleware"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Me(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	return c.JSON(fiber.Map{
		"user":              user,
		"available_credits": user.AvailableCredits(),
	})
}

func (h *Handler) MyStats(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	stats, err := h.Users.Stats(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(stats)
}

func (h *Handler) MyTransactions(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	txns, err := h.Users.Transactions(c.UserContext(), user.ID, limit)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(txns)
}

func (h *Handler) MyRegistrations(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	regs, err := h.Registrations.ListForUser(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(regs)
}

func (h *Handler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.Users.Dashboard(c.UserContext())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(stats)
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	users, err := h.Users.List(c.UserContext(), c.Query("q"), limit)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(users)
}

func (h *Handler) BanUser(c *fiber.Ctx) error {
	user, err := h.Users.Ban(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(user)
}

func (h *Handler) UnbanUser(c *fiber.Ctx) error {
	user, err := h.Users.Unban(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(user)
}
