package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"battle-arena/metrics"
	"battle-arena/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegistrationService struct {
	DB      *gorm.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func NewRegistrationService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *RegistrationService {
	return &RegistrationService{DB: db, Logger: logger, Metrics: m}
}

// Join assigns the next slot of a tournament to the user and collects the
// entry fee from the user's wallet balance.
func (s *RegistrationService) Join(ctx context.Context, tournamentID, userID string) (*models.JoinReceipt, error) {
	var receipt *models.JoinReceipt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		receipt, err = s.join(tx, tournamentID, userID)
		return err
	})
	if err != nil {
		s.Metrics.Registration(errorCode(err))
		return nil, err
	}
	s.Metrics.Registration("joined")
	s.Logger.InfoContext(ctx, "player joined tournament",
		slog.String("tournament_id", tournamentID),
		slog.String("user_id", userID),
		slog.Int("slot", receipt.SlotNumber),
	)
	return receipt, nil
}

// join runs inside the caller's transaction. The tournament row lock makes
// the capacity check and slot assignment atomic per tournament.
func (s *RegistrationService) join(tx *gorm.DB, tournamentID, userID string) (*models.JoinReceipt, error) {
	t, err := lockTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TournamentUpcoming {
		return nil, withDetail(ErrRegistrationClosed, "tournament is %s", t.Status)
	}

	user, err := lockUser(tx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, ErrAccountBanned
	}

	var active int64
	if err := tx.Model(&models.TournamentRegistration{}).
		Where("tournament_id = ? AND user_id = ? AND is_disqualified = ?", tournamentID, userID, false).
		Count(&active).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing registration: %w", err)
	}
	if active > 0 {
		return nil, ErrAlreadyRegistered
	}

	if t.IsFull() {
		return nil, withDetail(ErrCapacityExceeded, "all %d slots are taken", t.MaxPlayers)
	}

	if user.WalletBalance.LessThan(t.EntryFee) {
		return nil, withDetail(ErrInsufficientBalance, "entry fee is %s, wallet has %s", FormatINR(t.EntryFee), FormatINR(user.WalletBalance))
	}

	slot := t.RegisteredCount + 1
	paymentID := "pay_" + uuid.NewString()
	reg := &models.TournamentRegistration{
		ID:            newID("reg"),
		TournamentID:  t.ID,
		UserID:        user.ID,
		SlotNumber:    slot,
		PaymentID:     paymentID,
		PaymentStatus: models.PaymentCompleted,
		PaymentAmount: t.EntryFee,
	}
	if err := tx.Create(reg).Error; err != nil {
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	if t.EntryFee.IsPositive() {
		user.WalletBalance = user.WalletBalance.Sub(t.EntryFee)
		if err := saveBalances(tx, user); err != nil {
			return nil, err
		}
		desc := fmt.Sprintf("Entry fee for %s Tournament", t.Game.DisplayName())
		if _, err := appendTransaction(tx, user.ID, models.TransactionEntryFee, t.EntryFee.Neg(), desc, t.ID); err != nil {
			return nil, err
		}
	}

	res := tx.Model(&models.Tournament{}).
		Where("id = ? AND registered_count = ?", t.ID, t.RegisteredCount).
		Update("registered_count", slot)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update registered count: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, fmt.Errorf("registered count of tournament %s changed concurrently", t.ID)
	}

	return &models.JoinReceipt{RegistrationID: reg.ID, SlotNumber: slot, PaymentID: paymentID}, nil
}

// Disqualify flags a registration. The slot stays taken and the fee is kept.
func (s *RegistrationService) Disqualify(ctx context.Context, registrationID, reason string) (*models.TournamentRegistration, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var reg models.TournamentRegistration
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", registrationID).First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrationNotFound
			}
			return fmt.Errorf("failed to load registration: %w", err)
		}
		if reg.IsDisqualified {
			return ErrAlreadyDisqualified
		}
		reg.IsDisqualified = true
		reg.DisqualificationReason = &reason
		return tx.Model(&models.TournamentRegistration{}).
			Where("id = ?", reg.ID).
			Updates(map[string]interface{}{
				"is_disqualified":         true,
				"disqualification_reason": reason,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "registration disqualified",
		slog.String("registration_id", reg.ID),
		slog.String("tournament_id", reg.TournamentID),
		slog.String("reason", reason),
	)
	return &reg, nil
}

// ListForTournament returns registrations in slot order.
func (s *RegistrationService) ListForTournament(ctx context.Context, tournamentID string) ([]models.TournamentRegistration, error) {
	var regs []models.TournamentRegistration
	if err := s.DB.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("slot_number ASC").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

// ListForUser returns a player's registrations, newest first.
func (s *RegistrationService) ListForUser(ctx context.Context, userID string) ([]models.TournamentRegistration, error) {
	var regs []models.TournamentRegistration
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

// IsRegistered reports whether the user holds an active registration.
func (s *RegistrationService) IsRegistered(ctx context.Context, tournamentID, userID string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&models.TournamentRegistration{}).
		Where("tournament_id = ? AND user_id = ? AND is_disqualified = ?", tournamentID, userID, false).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}
	return n > 0, nil
}
