package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is the local profile of a player or operator.
// ID is the identity provider's subject (uid); profile fields are refreshed on login.
type User struct {
	ID          string `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Email       string `gorm:"index" json:"email"`
	Phone       string `json:"phone"`
	DisplayName string `gorm:"index;not null" json:"display_name"`

	// Deposit-origin funds, spendable on entry fees, never withdrawable.
	WalletBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"wallet_balance"`
	// Prize-origin funds, the only withdrawable balance.
	WinningCredits decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"winning_credits"`
	// Part of WinningCredits reserved by PENDING withdrawal requests.
	HeldCredits decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"held_credits"`

	IsBanned bool `gorm:"default:false" json:"is_banned"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Users are banned, never hard-deleted; soft delete keeps the ledger joinable.
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AvailableCredits is what a new withdrawal request may still claim.
func (u *User) AvailableCredits() decimal.Decimal {
	available := u.WinningCredits.Sub(u.HeldCredits)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// UserStats summarises a player's tournament history.
type UserStats struct {
	TotalMatches  int64           `json:"total_matches"`
	TotalWins     int64           `json:"total_wins"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

// LeaderboardEntry is one ranked row of the public leaderboard.
type LeaderboardEntry struct {
	Rank          int             `json:"rank"`
	UserID        string          `json:"user_id"`
	DisplayName   string          `json:"display_name"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalWins     int64           `json:"total_wins"`
	TotalMatches  int64           `json:"total_matches"`
}

// DashboardStats backs the admin overview.
type DashboardStats struct {
	TotalUsers         int64 `json:"total_users"`
	ActiveTournaments  int64 `json:"active_tournaments"`
	PendingWithdrawals int64 `json:"pending_withdrawals"`
	TotalTournaments   int64 `json:"total_tournaments"`
}
