package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GameType string

const (
	GameBGMI     GameType = "BGMI"
	GameFreeFire GameType = "FREE_FIRE"
)

func (g GameType) Valid() bool {
	return g == GameBGMI || g == GameFreeFire
}

// DisplayName is the label used in ledger descriptions and notifications.
func (g GameType) DisplayName() string {
	switch g {
	case GameBGMI:
		return "BGMI"
	case GameFreeFire:
		return "Free Fire"
	default:
		return string(g)
	}
}

type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "UPCOMING"
	TournamentLive      TournamentStatus = "LIVE"
	TournamentCompleted TournamentStatus = "COMPLETED"
	TournamentCancelled TournamentStatus = "CANCELLED"
)

// tournamentTransitions lists the lifecycle edges an operator may take.
var tournamentTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentUpcoming: {TournamentLive, TournamentCancelled},
	TournamentLive:     {TournamentCompleted, TournamentCancelled},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	for _, allowed := range tournamentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentUpcoming, TournamentLive, TournamentCompleted, TournamentCancelled:
		return true
	}
	return false
}

// Tournament is a single solo match with a fixed entry fee and tiered prizes.
type Tournament struct {
	ID            string           `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Slug          string           `json:"slug" gorm:"uniqueIndex;not null"`
	Game          GameType         `json:"game" gorm:"type:varchar(16);not null;index"`
	EntryFee      decimal.Decimal  `json:"entry_fee" gorm:"type:numeric(12,2);not null;default:0"`
	MaxPlayers    int              `json:"max_players" gorm:"not null"`
	WinnerCount   int              `json:"winner_count" gorm:"not null"`
	PrizeTiers    PrizeTiers       `json:"prize_tiers" gorm:"serializer:json;type:jsonb;not null"`
	MatchDateTime time.Time        `json:"match_date_time" gorm:"not null;index"`
	Status        TournamentStatus `json:"status" gorm:"type:varchar(16);not null;default:'UPCOMING';index"`

	// Room credentials stay nil until an operator releases them.
	RoomID       *string `json:"room_id,omitempty"`
	RoomPassword *string `json:"room_password,omitempty"`
	RoomReleased bool    `json:"room_released" gorm:"default:false"`

	Rules           string `json:"rules" gorm:"type:text"`
	CreatedBy       string `json:"created_by" gorm:"not null"`
	RegisteredCount int    `json:"registered_count" gorm:"not null;default:0"`

	SettledAt      *time.Time `json:"settled_at,omitempty"`
	ReminderSentAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated fields (not stored in DB)
	TotalPrizePool decimal.Decimal `json:"total_prize_pool" gorm:"-"`
	AvailableSlots int             `json:"available_slots" gorm:"-"`
}

// IsFull reports whether every slot has been taken.
func (t *Tournament) IsFull() bool {
	return t.RegisteredCount >= t.MaxPlayers
}

// Fill populates the calculated fields.
func (t *Tournament) Fill() {
	t.TotalPrizePool = t.PrizeTiers.TotalPrizePool()
	t.AvailableSlots = t.MaxPlayers - t.RegisteredCount
	if t.AvailableSlots < 0 {
		t.AvailableSlots = 0
	}
}

// HideRoom strips room credentials for callers not entitled to them.
func (t *Tournament) HideRoom() {
	t.RoomID = nil
	t.RoomPassword = nil
}

// TournamentResult records one player's final standing.
type TournamentResult struct {
	ID           string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	TournamentID string          `json:"tournament_id" gorm:"not null;uniqueIndex:idx_result_user;uniqueIndex:idx_result_position"`
	UserID       string          `json:"user_id" gorm:"not null;uniqueIndex:idx_result_user;index"`
	Position     int             `json:"position" gorm:"not null;uniqueIndex:idx_result_position"`
	Kills        int             `json:"kills" gorm:"default:0"`
	PrizeAmount  decimal.Decimal `json:"prize_amount" gorm:"type:numeric(12,2);not null;default:0"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
}
