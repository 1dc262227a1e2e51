package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PrizeTier pays PrizeAmount to every finisher ranked RankStart..RankEnd inclusive.
type PrizeTier struct {
	RankStart   int             `json:"rank_start"`
	RankEnd     int             `json:"rank_end"`
	PrizeAmount decimal.Decimal `json:"prize_amount"`
}

// Winners is the number of ranks the tier covers.
func (t PrizeTier) Winners() int {
	if t.RankEnd < t.RankStart {
		return 0
	}
	return t.RankEnd - t.RankStart + 1
}

// Contains reports whether rank falls inside the tier.
func (t PrizeTier) Contains(rank int) bool {
	return rank >= t.RankStart && rank <= t.RankEnd
}

// PrizeTiers is the ordered prize table of a tournament.
type PrizeTiers []PrizeTier

// DefaultPrizeTiers is the table offered for a 100 player lobby with 80 winners.
func DefaultPrizeTiers() PrizeTiers {
	return PrizeTiers{
		{RankStart: 1, RankEnd: 5, PrizeAmount: decimal.NewFromInt(50)},
		{RankStart: 6, RankEnd: 20, PrizeAmount: decimal.NewFromInt(30)},
		{RankStart: 21, RankEnd: 40, PrizeAmount: decimal.NewFromInt(20)},
		{RankStart: 41, RankEnd: 80, PrizeAmount: decimal.NewFromInt(10)},
	}
}

// TotalPrizePool sums PrizeAmount * Winners over every tier.
func (tiers PrizeTiers) TotalPrizePool() decimal.Decimal {
	total := decimal.Zero
	for _, tier := range tiers {
		total = total.Add(tier.PrizeAmount.Mul(decimal.NewFromInt(int64(tier.Winners()))))
	}
	return total
}

// PrizeForRank returns the amount of the first tier containing rank, or zero.
// Tiers are scanned in order, so the earlier tier wins when ranges overlap.
func (tiers PrizeTiers) PrizeForRank(rank int) decimal.Decimal {
	if i := tiers.TierFor(rank); i >= 0 {
		return tiers[i].PrizeAmount
	}
	return decimal.Zero
}

// TierFor returns the index of the first tier containing rank, or -1.
func (tiers PrizeTiers) TierFor(rank int) int {
	for i, tier := range tiers {
		if tier.Contains(rank) {
			return i
		}
	}
	return -1
}

// PaidRanks is the total number of ranks that receive a prize.
func (tiers PrizeTiers) PaidRanks() int {
	n := 0
	for _, tier := range tiers {
		n += tier.Winners()
	}
	return n
}

var ErrMalformedPrizeTiers = errors.New("malformed prize tiers")

// Validate enforces the tier policy applied at tournament creation: at least one
// tier, positive amounts, tiers contiguous from rank 1 with no gap or overlap,
// paid ranks within winnerCount, and winnerCount within maxPlayers.
func (tiers PrizeTiers) Validate(winnerCount, maxPlayers int) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: at least one prize tier is required", ErrMalformedPrizeTiers)
	}
	if winnerCount < 1 || winnerCount > maxPlayers {
		return fmt.Errorf("%w: winner count %d must be between 1 and max players %d", ErrMalformedPrizeTiers, winnerCount, maxPlayers)
	}

	expectedStart := 1
	for i, tier := range tiers {
		if tier.RankStart != expectedStart {
			return fmt.Errorf("%w: tier %d starts at rank %d, expected %d", ErrMalformedPrizeTiers, i+1, tier.RankStart, expectedStart)
		}
		if tier.RankEnd < tier.RankStart {
			return fmt.Errorf("%w: tier %d ends at rank %d before it starts at %d", ErrMalformedPrizeTiers, i+1, tier.RankEnd, tier.RankStart)
		}
		if !tier.PrizeAmount.IsPositive() {
			return fmt.Errorf("%w: tier %d prize must be positive", ErrMalformedPrizeTiers, i+1)
		}
		expectedStart = tier.RankEnd + 1
	}

	if paid := tiers.PaidRanks(); paid > winnerCount {
		return fmt.Errorf("%w: tiers pay %d ranks but winner count is %d", ErrMalformedPrizeTiers, paid, winnerCount)
	}
	return nil
}
