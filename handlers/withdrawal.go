package handlers

import (
	"battle-arena/middleware"
	"battle-arena/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

func (h *Handler) RequestWithdrawal(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		UpiID  string          `json:"upi_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	wr, err := h.Withdrawals.Request(c.UserContext(), user.ID, req.Amount, req.UpiID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(wr)
}

func (h *Handler) MyWithdrawals(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	reqs, err := h.Withdrawals.ListForUser(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(reqs)
}

// ListWithdrawals defaults to the PENDING queue; ?status=all lists everything.
func (h *Handler) ListWithdrawals(c *fiber.Ctx) error {
	status := models.WithdrawalStatus(c.Query("status", string(models.WithdrawalPending)))
	if status == "all" {
		status = ""
	}
	reqs, err := h.Withdrawals.List(c.UserContext(), status)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(reqs)
}

func (h *Handler) ProcessWithdrawal(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	var req struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	wr, err := h.Withdrawals.Process(c.UserContext(), c.Params("id"), user.ID, req.Approve, req.Reason)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(wr)
}
