package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// TournamentRegistration links a player to a tournament slot.
// Slot numbers are unique per tournament; a player holds at most one
// registration that is not disqualified.
type TournamentRegistration struct {
	ID           string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	TournamentID string `json:"tournament_id" gorm:"not null;uniqueIndex:idx_registration_slot;uniqueIndex:idx_registration_active,where:is_disqualified = false"`
	UserID       string `json:"user_id" gorm:"not null;index;uniqueIndex:idx_registration_active,where:is_disqualified = false"`
	SlotNumber   int    `json:"slot_number" gorm:"not null;uniqueIndex:idx_registration_slot"`

	// Payment metadata
	PaymentID     string          `json:"payment_id" gorm:"not null"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);not null;default:'PENDING'"`
	PaymentAmount decimal.Decimal `json:"payment_amount" gorm:"type:numeric(12,2);not null;default:0"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`

	JoinedAt               time.Time `json:"joined_at" gorm:"autoCreateTime"`
	IsDisqualified         bool      `json:"is_disqualified" gorm:"default:false"`
	DisqualificationReason *string   `json:"disqualification_reason,omitempty"`
}

// JoinReceipt is returned to a player after a successful join.
type JoinReceipt struct {
	RegistrationID string `json:"registration_id"`
	SlotNumber     int    `json:"slot_number"`
	PaymentID      string `json:"payment_id"`
}
