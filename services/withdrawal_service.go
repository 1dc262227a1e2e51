package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"battle-arena/metrics"
	"battle-arena/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MinimumWithdrawal is the smallest amount a player may cash out.
var MinimumWithdrawal = decimal.NewFromInt(30)

var upiPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z]+$`)

// ValidUPI reports whether id looks like handle@provider.
func ValidUPI(id string) bool {
	return upiPattern.MatchString(id)
}

type WithdrawalService struct {
	DB      *gorm.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func NewWithdrawalService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *WithdrawalService {
	return &WithdrawalService{DB: db, Logger: logger, Metrics: m}
}

// Request files a withdrawal and holds the amount against the player's
// winning credits until an operator decides.
func (s *WithdrawalService) Request(ctx context.Context, userID string, amount decimal.Decimal, upiID string) (*models.WithdrawalRequest, error) {
	upiID = strings.TrimSpace(upiID)
	if !amount.Equal(amount.Round(2)) {
		return nil, withDetail(ErrInvalidAmount, "amount has more than two decimal places")
	}
	if amount.LessThan(MinimumWithdrawal) {
		return nil, ErrBelowMinimum
	}
	if !ValidUPI(upiID) {
		return nil, ErrInvalidDestination
	}

	req := &models.WithdrawalRequest{
		ID:     newID("wd"),
		UserID: userID,
		Amount: amount,
		UpiID:  upiID,
		Status: models.WithdrawalPending,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if user.IsBanned {
			return ErrAccountBanned
		}
		if available := user.AvailableCredits(); amount.GreaterThan(available) {
			return withDetail(ErrInsufficientCredits, "requested %s, available %s", FormatINR(amount), FormatINR(available))
		}

		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create withdrawal request: %w", err)
		}
		user.HeldCredits = user.HeldCredits.Add(amount)
		return saveBalances(tx, user)
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.Withdrawal(string(models.WithdrawalPending))
	s.Logger.InfoContext(ctx, "withdrawal requested",
		slog.String("withdrawal_id", req.ID),
		slog.String("user_id", userID),
		slog.String("amount", amount.StringFixed(2)),
	)
	return req, nil
}

// Process approves or rejects a PENDING request. Approval debits winning
// credits and writes a WITHDRAWAL transaction; rejection only releases the hold.
func (s *WithdrawalService) Process(ctx context.Context, requestID, operatorID string, approve bool, reason string) (*models.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if !approve && reason == "" {
		return nil, ErrReasonRequired
	}

	var req models.WithdrawalRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", requestID).
			First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWithdrawalNotFound
			}
			return fmt.Errorf("failed to load withdrawal request: %w", err)
		}
		if req.Status.Terminal() {
			return withDetail(ErrAlreadyProcessed, "request is %s", req.Status)
		}

		user, err := lockUser(tx, req.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		req.ProcessedAt = &now
		req.ProcessedBy = &operatorID
		user.HeldCredits = floorZero(user.HeldCredits.Sub(req.Amount))

		updates := map[string]interface{}{
			"processed_at": now,
			"processed_by": operatorID,
		}
		if approve {
			req.Status = models.WithdrawalApproved
			user.WinningCredits = floorZero(user.WinningCredits.Sub(req.Amount))
			if _, err := appendTransaction(tx, user.ID, models.TransactionWithdrawal, req.Amount.Neg(), "Withdrawal to "+req.UpiID, req.ID); err != nil {
				return err
			}
		} else {
			req.Status = models.WithdrawalRejected
			req.RejectionReason = &reason
			updates["rejection_reason"] = reason
		}
		updates["status"] = req.Status

		if err := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", req.ID, models.WithdrawalPending).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update withdrawal request: %w", err)
		}
		return saveBalances(tx, user)
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.Withdrawal(string(req.Status))
	s.Logger.InfoContext(ctx, "withdrawal processed",
		slog.String("withdrawal_id", req.ID),
		slog.String("user_id", req.UserID),
		slog.String("status", string(req.Status)),
		slog.String("operator_id", operatorID),
	)
	return &req, nil
}

// ListForUser returns a player's requests, newest first.
func (s *WithdrawalService) ListForUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	var reqs []models.WithdrawalRequest
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return reqs, nil
}

// List returns requests for the operator queue, oldest first. An empty status
// returns every request.
func (s *WithdrawalService) List(ctx context.Context, status models.WithdrawalStatus) ([]models.WithdrawalRequest, error) {
	q := s.DB.WithContext(ctx).Preload("User").Order("created_at ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reqs []models.WithdrawalRequest
	if err := q.Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return reqs, nil
}

// ListPending is the default operator queue.
func (s *WithdrawalService) ListPending(ctx context.Context) ([]models.WithdrawalRequest, error) {
	return s.List(ctx, models.WithdrawalPending)
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
