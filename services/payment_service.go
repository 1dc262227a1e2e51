package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"battle-arena/metrics"
	"battle-arena/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultCurrency = "INR"
	// PaymentExpiry is how long an unpaid order stays PENDING before
	// reconciliation marks it FAILED.
	PaymentExpiry = 24 * time.Hour
)

var MaximumDeposit = decimal.NewFromInt(10000)

type PaymentService struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Gateway       PaymentGateway
	Registrations *RegistrationService
	WebhookSecret string
}

func NewPaymentService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics, gateway PaymentGateway, registrations *RegistrationService, secret string) *PaymentService {
	return &PaymentService{
		DB:            db,
		Logger:        logger,
		Metrics:       m,
		Gateway:       gateway,
		Registrations: registrations,
		WebhookSecret: secret,
	}
}

// CreateDepositOrder opens a gateway order to top up the wallet. When
// tournamentID is set the player is joined to it once the payment lands.
func (s *PaymentService) CreateDepositOrder(ctx context.Context, userID string, amount decimal.Decimal, tournamentID string) (*models.PaymentOrder, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.GreaterThan(MaximumDeposit) {
		return nil, withDetail(ErrInvalidAmount, "deposits are limited to %s", FormatINR(MaximumDeposit))
	}

	db := s.DB.WithContext(ctx)
	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.IsBanned {
		return nil, ErrAccountBanned
	}

	order := &models.PaymentOrder{
		ID:       newID("ord"),
		UserID:   userID,
		Amount:   amount.Round(2),
		Currency: DefaultCurrency,
		Status:   models.PaymentPending,
	}
	if tournamentID != "" {
		var t models.Tournament
		if err := db.Where("id = ?", tournamentID).First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTournamentNotFound
			}
			return nil, fmt.Errorf("failed to load tournament: %w", err)
		}
		if t.Status != models.TournamentUpcoming {
			return nil, withDetail(ErrRegistrationClosed, "tournament is %s", t.Status)
		}
		order.TournamentID = &t.ID
	}

	gwOrder, err := s.Gateway.CreateOrder(ctx, order.Amount, order.Currency, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}
	order.GatewayOrderID = gwOrder.ID

	if err := db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to save payment order: %w", err)
	}
	s.Logger.InfoContext(ctx, "deposit order created",
		slog.String("order_id", order.ID),
		slog.String("gateway_order_id", order.GatewayOrderID),
		slog.String("user_id", userID),
		slog.String("amount", order.Amount.StringFixed(2)),
	)
	return order, nil
}

// VerifySignature checks a checkout callback against the webhook secret.
func (s *PaymentService) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	if s.WebhookSecret == "" || !VerifyPaymentSignature(s.WebhookSecret, gatewayOrderID, gatewayPaymentID, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// ConfirmPayment credits the wallet for a signed payment. Confirming an
// already completed order returns it unchanged.
func (s *PaymentService) ConfirmPayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*models.PaymentOrder, error) {
	if err := s.VerifySignature(gatewayOrderID, gatewayPaymentID, signature); err != nil {
		s.Logger.WarnContext(ctx, "payment signature rejected", slog.String("gateway_order_id", gatewayOrderID))
		return nil, err
	}
	return s.complete(ctx, gatewayOrderID, gatewayPaymentID)
}

func (s *PaymentService) complete(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.PaymentOrder, error) {
	var (
		order    models.PaymentOrder
		credited bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, gatewayOrderID, &order); err != nil {
			return err
		}
		switch order.Status {
		case models.PaymentCompleted:
			return nil
		case models.PaymentPending:
		default:
			return withDetail(ErrPaymentNotPending, "order is %s", order.Status)
		}

		user, err := lockUser(tx, order.UserID)
		if err != nil {
			return err
		}
		user.WalletBalance = user.WalletBalance.Add(order.Amount)
		if err := saveBalances(tx, user); err != nil {
			return err
		}
		if _, err := appendTransaction(tx, user.ID, models.TransactionDeposit, order.Amount, "Wallet deposit", order.ID); err != nil {
			return err
		}

		now := time.Now().UTC()
		order.Status = models.PaymentCompleted
		order.GatewayPaymentID = &gatewayPaymentID
		order.CompletedAt = &now
		if err := tx.Model(&models.PaymentOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"status":             order.Status,
			"gateway_payment_id": gatewayPaymentID,
			"completed_at":       now,
		}).Error; err != nil {
			return fmt.Errorf("failed to complete payment order: %w", err)
		}
		credited = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !credited {
		return &order, nil
	}

	s.Metrics.Deposit(string(models.PaymentCompleted))
	s.Logger.InfoContext(ctx, "deposit credited",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("amount", order.Amount.StringFixed(2)),
	)

	if order.TournamentID != nil && s.Registrations != nil {
		s.joinAfterDeposit(ctx, &order)
	}
	return &order, nil
}

// joinAfterDeposit attempts the registration the order was created for. A
// failed join keeps the deposit in the wallet and is recorded on the order.
func (s *PaymentService) joinAfterDeposit(ctx context.Context, order *models.PaymentOrder) {
	_, err := s.Registrations.Join(ctx, *order.TournamentID, order.UserID)
	if err == nil {
		return
	}
	msg := err.Error()
	order.JoinError = &msg
	s.Logger.WarnContext(ctx, "join after deposit failed",
		slog.String("order_id", order.ID),
		slog.String("tournament_id", *order.TournamentID),
		slog.Any("error", err),
	)
	if err := s.DB.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ?", order.ID).
		Update("join_error", msg).Error; err != nil {
		s.Logger.ErrorContext(ctx, "failed to record join error", slog.String("order_id", order.ID), slog.Any("error", err))
	}
}

// FailPayment marks a PENDING order FAILED. Failing a failed order is a no-op.
func (s *PaymentService) FailPayment(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	var failed bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, gatewayOrderID, &order); err != nil {
			return err
		}
		switch order.Status {
		case models.PaymentFailed:
			return nil
		case models.PaymentPending:
		default:
			return withDetail(ErrPaymentNotPending, "order is %s", order.Status)
		}
		order.Status = models.PaymentFailed
		failed = true
		return tx.Model(&models.PaymentOrder{}).Where("id = ?", order.ID).Update("status", order.Status).Error
	})
	if err != nil {
		return nil, err
	}
	if failed {
		s.Metrics.Deposit(string(models.PaymentFailed))
		s.Logger.InfoContext(ctx, "deposit failed", slog.String("order_id", order.ID), slog.String("user_id", order.UserID))
	}
	return &order, nil
}

// Reconcile asks the gateway about PENDING orders older than grace. Captured
// payments are credited and orders past PaymentExpiry are failed. It returns
// the number of orders resolved.
func (s *PaymentService) Reconcile(ctx context.Context, grace time.Duration) (int, error) {
	now := time.Now().UTC()
	var pending []models.PaymentOrder
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND created_at <= ?", models.PaymentPending, now.Add(-grace)).
		Order("created_at ASC").
		Limit(100).
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("failed to load pending orders: %w", err)
	}

	resolved := 0
	for _, order := range pending {
		payments, err := s.Gateway.FetchPayments(ctx, order.GatewayOrderID)
		if err != nil {
			s.Logger.WarnContext(ctx, "failed to fetch gateway payments",
				slog.String("gateway_order_id", order.GatewayOrderID),
				slog.Any("error", err),
			)
			continue
		}

		captured := ""
		for _, p := range payments {
			if p.Captured() {
				captured = p.ID
				break
			}
		}
		switch {
		case captured != "":
			if _, err := s.complete(ctx, order.GatewayOrderID, captured); err != nil {
				s.Logger.ErrorContext(ctx, "failed to complete reconciled order", slog.String("order_id", order.ID), slog.Any("error", err))
				continue
			}
		case now.Sub(order.CreatedAt) > PaymentExpiry:
			if _, err := s.FailPayment(ctx, order.GatewayOrderID); err != nil {
				s.Logger.ErrorContext(ctx, "failed to expire order", slog.String("order_id", order.ID), slog.Any("error", err))
				continue
			}
		default:
			continue
		}
		resolved++
	}
	return resolved, nil
}

// ListForUser returns a player's deposit orders, newest first.
func (s *PaymentService) ListForUser(ctx context.Context, userID string) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment orders: %w", err)
	}
	return orders, nil
}

func lockOrder(tx *gorm.DB, gatewayOrderID string, order *models.PaymentOrder) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("failed to lock payment order: %w", err)
	}
	return nil
}
