package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentOrder is a wallet top-up created with the payment gateway.
// Table name: payment_orders
type PaymentOrder struct {
	ID               string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID           string          `gorm:"not null;index" json:"user_id"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency         string          `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	GatewayOrderID   string          `gorm:"type:varchar(128);not null;uniqueIndex" json:"gateway_order_id"` // Primary lookup key for webhooks
	GatewayPaymentID *string         `gorm:"type:varchar(128)" json:"gateway_payment_id,omitempty"`
	Status           PaymentStatus   `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`

	// Optional: join this tournament once the deposit lands.
	TournamentID *string `gorm:"type:varchar(64)" json:"tournament_id,omitempty"`
	JoinError    *string `json:"join_error,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}
