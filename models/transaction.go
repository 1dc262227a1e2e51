package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionPrize      TransactionType = "PRIZE"
	TransactionEntryFee   TransactionType = "ENTRY_FEE"
	TransactionRefund     TransactionType = "REFUND"
)

// Transaction is an append-only ledger entry. Amount is signed: credits are
// positive, debits negative. ReferenceID points at the tournament, withdrawal
// request or payment order that caused it.
type Transaction struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID      string          `json:"user_id" gorm:"not null;index"`
	Type        TransactionType `json:"type" gorm:"type:varchar(16);not null;index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Description string          `json:"description"`
	ReferenceID *string         `json:"reference_id,omitempty" gorm:"index"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
}
