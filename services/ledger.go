package services

import (
	"errors"
	"fmt"

	"battle-arena/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// appendTransaction writes one immutable ledger row inside tx.
func appendTransaction(tx *gorm.DB, userID string, kind models.TransactionType, amount decimal.Decimal, description, referenceID string) (*models.Transaction, error) {
	entry := &models.Transaction{
		ID:          newID("txn"),
		UserID:      userID,
		Type:        kind,
		Amount:      amount,
		Description: description,
	}
	if referenceID != "" {
		entry.ReferenceID = &referenceID
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append %s transaction: %w", kind, err)
	}
	return entry, nil
}

// lockTournament re-reads the tournament row with FOR UPDATE so that joins,
// settlement and status changes on one tournament run one at a time.
func lockTournament(tx *gorm.DB, tournamentID string) (*models.Tournament, error) {
	var t models.Tournament
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", tournamentID).
		First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to lock tournament %s: %w", tournamentID, err)
	}
	return &t, nil
}

// lockUser re-reads the user row with FOR UPDATE before any balance change.
func lockUser(tx *gorm.DB, userID string) (*models.User, error) {
	var u models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	return &u, nil
}

// saveBalances persists the three balance columns of a locked user.
func saveBalances(tx *gorm.DB, u *models.User) error {
	err := tx.Model(&models.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"wallet_balance":  u.WalletBalance,
			"winning_credits": u.WinningCredits,
			"held_credits":    u.HeldCredits,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update balances for user %s: %w", u.ID, err)
	}
	return nil
}

// decimalFromFloat converts an aggregate scanned from SQL back to paise precision.
func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}
