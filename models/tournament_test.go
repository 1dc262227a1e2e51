package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTournamentStatusTransitions(t *testing.T) {
	allowed := map[[2]TournamentStatus]bool{
		{TournamentUpcoming, TournamentLive}:      true,
		{TournamentUpcoming, TournamentCancelled}: true,
		{TournamentLive, TournamentCompleted}:     true,
		{TournamentLive, TournamentCancelled}:     true,
	}
	all := []TournamentStatus{TournamentUpcoming, TournamentLive, TournamentCompleted, TournamentCancelled}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]TournamentStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTournamentFill(t *testing.T) {
	tr := &Tournament{MaxPlayers: 20, RegisteredCount: 12, PrizeTiers: PrizeTiers{tier(1, 5, 50), tier(6, 20, 30)}}
	tr.Fill()
	assert.Equal(t, 8, tr.AvailableSlots)
	assert.True(t, tr.TotalPrizePool.Equal(decimal.NewFromInt(700)))
	assert.False(t, tr.IsFull())

	tr.RegisteredCount = 20
	tr.Fill()
	assert.Equal(t, 0, tr.AvailableSlots)
	assert.True(t, tr.IsFull())
}

func TestUserAvailableCredits(t *testing.T) {
	u := &User{WinningCredits: decimal.NewFromInt(100), HeldCredits: decimal.NewFromInt(40)}
	assert.True(t, u.AvailableCredits().Equal(decimal.NewFromInt(60)))

	u.HeldCredits = decimal.NewFromInt(150)
	assert.True(t, u.AvailableCredits().IsZero())
}

func TestGameType(t *testing.T) {
	assert.True(t, GameBGMI.Valid())
	assert.True(t, GameFreeFire.Valid())
	assert.False(t, GameType("PUBG").Valid())
	assert.Equal(t, "Free Fire", GameFreeFire.DisplayName())
}
