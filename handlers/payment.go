package handlers

import (
	"log/slog"

	"battle-arena/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

func (h *Handler) CreatePaymentOrder(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	var req struct {
		Amount       decimal.Decimal `json:"amount"`
		TournamentID string          `json:"tournament_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	order, err := h.Payments.CreateDepositOrder(c.UserContext(), user.ID, req.Amount, req.TournamentID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *Handler) MyPayments(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)
	orders, err := h.Payments.ListForUser(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(orders)
}

// PaymentWebhook receives the signed checkout callback from the gateway.
func (h *Handler) PaymentWebhook(c *fiber.Ctx) error {
	var req struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
		Status    string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return badRequest(c, "order_id, payment_id and signature are required")
	}

	ctx := c.UserContext()
	if req.Status == "failed" {
		if err := h.Payments.VerifySignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
			return respondError(c, h.Logger, err)
		}
		order, err := h.Payments.FailPayment(ctx, req.OrderID)
		if err != nil {
			return respondError(c, h.Logger, err)
		}
		return c.JSON(order)
	}

	order, err := h.Payments.ConfirmPayment(ctx, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	if order.JoinError != nil {
		h.Logger.Info("deposit kept after failed join", slog.String("order_id", order.ID))
	}
	return c.JSON(order)
}
