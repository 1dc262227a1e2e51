package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "PENDING"
	WithdrawalApproved WithdrawalStatus = "APPROVED"
	WithdrawalRejected WithdrawalStatus = "REJECTED"
)

// Terminal reports whether the request has already been decided.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

// WithdrawalRequest moves winning credits to a UPI destination once an operator
// approves it. PENDING is the only state with outgoing transitions.
type WithdrawalRequest struct {
	ID              string           `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID          string           `json:"user_id" gorm:"not null;index"`
	Amount          decimal.Decimal  `json:"amount" gorm:"type:numeric(12,2);not null"`
	UpiID           string           `json:"upi_id" gorm:"type:varchar(128);not null"`
	Status          WithdrawalStatus `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
	CreatedAt       time.Time        `json:"created_at" gorm:"autoCreateTime"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
	ProcessedBy     *string          `json:"processed_by,omitempty"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
