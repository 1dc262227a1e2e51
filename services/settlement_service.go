package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"battle-arena/metrics"
	"battle-arena/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Standing is one player's final placement as entered by an operator.
type Standing struct {
	UserID   string `json:"user_id"`
	Position int    `json:"position"`
	Kills    int    `json:"kills"`
}

// Payout is what a single standing earned.
type Payout struct {
	UserID   string          `json:"user_id"`
	Position int             `json:"position"`
	Kills    int             `json:"kills"`
	Amount   decimal.Decimal `json:"amount"`
}

// Settlement summarises a completed prize distribution.
type Settlement struct {
	TournamentID string          `json:"tournament_id"`
	SettledBy    string          `json:"settled_by"`
	SettledAt    time.Time       `json:"settled_at"`
	PrizePool    decimal.Decimal `json:"prize_pool"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Payouts      []Payout        `json:"payouts"`
	ReportURL    string          `json:"report_url,omitempty"`
}

// ReportStore archives settlement reports, e.g. in an object bucket.
type ReportStore interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

type SettlementService struct {
	DB       *gorm.DB
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Notifier Notifier
	Reports  ReportStore
}

func NewSettlementService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics, notifier Notifier, reports ReportStore) *SettlementService {
	return &SettlementService{DB: db, Logger: logger, Metrics: m, Notifier: notifier, Reports: reports}
}

// DistributePrizes pays every standing according to the tournament's prize
// tiers, credits winning balances, records results and marks the tournament
// settled. Either every payout is applied or none is.
func (s *SettlementService) DistributePrizes(ctx context.Context, tournamentID, operatorID string, standings []Standing) (*Settlement, error) {
	var (
		settlement *Settlement
		tournament *models.Tournament
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockTournament(tx, tournamentID)
		if err != nil {
			return err
		}
		tournament = t
		settlement, err = s.settle(tx, t, operatorID, standings)
		return err
	})
	if err != nil {
		s.Metrics.Settlement(errorCode(err), decimal.Zero)
		if domainErr, ok := AsError(err); ok && domainErr.Kind == KindIntegrity {
			s.Logger.ErrorContext(ctx, "settlement rejected",
				slog.String("tournament_id", tournamentID),
				slog.String("operator_id", operatorID),
				slog.Int("standings", len(standings)),
				slog.Any("error", err),
			)
		}
		return nil, err
	}

	s.Metrics.Settlement("settled", settlement.TotalPaid)
	s.Logger.InfoContext(ctx, "prizes distributed",
		slog.String("tournament_id", tournamentID),
		slog.String("operator_id", operatorID),
		slog.Int("winners", countWinners(settlement.Payouts)),
		slog.String("total_paid", settlement.TotalPaid.StringFixed(2)),
	)

	settlement.ReportURL = s.archive(ctx, settlement)
	notifyAll(ctx, s.Notifier, s.Logger, prizeNotifications(tournament, settlement.Payouts))
	return settlement, nil
}

func (s *SettlementService) settle(tx *gorm.DB, t *models.Tournament, operatorID string, standings []Standing) (*Settlement, error) {
	if t.SettledAt != nil {
		return nil, ErrAlreadySettled
	}
	if t.Status != models.TournamentLive && t.Status != models.TournamentCompleted {
		return nil, withDetail(ErrInvalidStatusTransition, "cannot settle a %s tournament", t.Status)
	}
	if err := validateStandings(tx, t.ID, standings); err != nil {
		return nil, err
	}

	payouts, total, err := computePayouts(t.PrizeTiers, standings)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Prize for %s Tournament", t.Game.DisplayName())
	for _, p := range payouts {
		result := &models.TournamentResult{
			ID:           newID("res"),
			TournamentID: t.ID,
			UserID:       p.UserID,
			Position:     p.Position,
			Kills:        p.Kills,
			PrizeAmount:  p.Amount,
			CreatedBy:    operatorID,
		}
		if err := tx.Create(result).Error; err != nil {
			return nil, fmt.Errorf("failed to record result for %s: %w", p.UserID, err)
		}
		if !p.Amount.IsPositive() {
			continue
		}

		user, err := lockUser(tx, p.UserID)
		if err != nil {
			return nil, err
		}
		user.WinningCredits = user.WinningCredits.Add(p.Amount)
		if err := saveBalances(tx, user); err != nil {
			return nil, err
		}
		if _, err := appendTransaction(tx, user.ID, models.TransactionPrize, p.Amount, fmt.Sprintf("%s (rank #%d)", desc, p.Position), t.ID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := tx.Model(&models.Tournament{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"settled_at": now,
			"status":     models.TournamentCompleted,
		}).Error; err != nil {
		return nil, fmt.Errorf("failed to mark tournament settled: %w", err)
	}

	return &Settlement{
		TournamentID: t.ID,
		SettledBy:    operatorID,
		SettledAt:    now,
		PrizePool:    t.PrizeTiers.TotalPrizePool(),
		TotalPaid:    total,
		Payouts:      payouts,
	}, nil
}

// validateStandings checks positions and players before any money moves.
func validateStandings(tx *gorm.DB, tournamentID string, standings []Standing) error {
	if len(standings) == 0 {
		return withDetail(ErrInvalidStandings, "no standings submitted")
	}

	positions := make(map[int]bool, len(standings))
	users := make(map[string]bool, len(standings))
	ids := make([]string, 0, len(standings))
	for _, st := range standings {
		if st.UserID == "" {
			return withDetail(ErrInvalidStandings, "standing without user")
		}
		if st.Position < 1 {
			return withDetail(ErrInvalidStandings, "position %d for %s is not a rank", st.Position, st.UserID)
		}
		if st.Kills < 0 {
			return withDetail(ErrInvalidStandings, "negative kills for %s", st.UserID)
		}
		if positions[st.Position] {
			return withDetail(ErrInvalidStandings, "position %d assigned twice", st.Position)
		}
		if users[st.UserID] {
			return withDetail(ErrInvalidStandings, "user %s listed twice", st.UserID)
		}
		positions[st.Position] = true
		users[st.UserID] = true
		ids = append(ids, st.UserID)
	}

	var registered []string
	if err := tx.Model(&models.TournamentRegistration{}).
		Where("tournament_id = ? AND user_id IN ? AND is_disqualified = ?", tournamentID, ids, false).
		Pluck("user_id", &registered).Error; err != nil {
		return fmt.Errorf("failed to load registrations: %w", err)
	}
	active := make(map[string]bool, len(registered))
	for _, id := range registered {
		active[id] = true
	}
	for _, id := range ids {
		if !active[id] {
			return withDetail(ErrInvalidStandings, "user %s has no active registration", id)
		}
	}
	return nil
}

// computePayouts maps standings to prize amounts and verifies the result
// against the prize table: no tier paid beyond its width and nothing paid
// beyond the advertised pool. The width check only matters for callers that
// skip validateStandings, since unique positions never overfill a tier.
func computePayouts(tiers models.PrizeTiers, standings []Standing) ([]Payout, decimal.Decimal, error) {
	payouts := make([]Payout, 0, len(standings))
	occupancy := make(map[int]int, len(tiers))
	total := decimal.Zero

	for _, st := range standings {
		amount := tiers.PrizeForRank(st.Position)
		if i := tiers.TierFor(st.Position); i >= 0 {
			occupancy[i]++
			if occupancy[i] > tiers[i].Winners() {
				return nil, decimal.Zero, withDetail(ErrSettlementMismatch, "tier %d-%d paid to %d players", tiers[i].RankStart, tiers[i].RankEnd, occupancy[i])
			}
		}
		total = total.Add(amount)
		payouts = append(payouts, Payout{UserID: st.UserID, Position: st.Position, Kills: st.Kills, Amount: amount})
	}

	if pool := tiers.TotalPrizePool(); total.GreaterThan(pool) {
		return nil, decimal.Zero, withDetail(ErrSettlementMismatch, "payouts %s exceed prize pool %s", total.StringFixed(2), pool.StringFixed(2))
	}
	return payouts, total, nil
}

// Results returns the recorded standings of a settled tournament.
func (s *SettlementService) Results(ctx context.Context, tournamentID string) ([]models.TournamentResult, error) {
	var results []models.TournamentResult
	if err := s.DB.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	return results, nil
}

// archive uploads the settlement report. Failures are logged and never undo
// the settlement.
func (s *SettlementService) archive(ctx context.Context, settlement *Settlement) string {
	if s.Reports == nil {
		return ""
	}
	body, err := json.MarshalIndent(settlement, "", "  ")
	if err != nil {
		s.Logger.WarnContext(ctx, "failed to encode settlement report", slog.Any("error", err))
		return ""
	}
	key := fmt.Sprintf("settlements/%s/%s.json", settlement.TournamentID, settlement.SettledAt.Format("20060102T150405Z"))
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	url, err := s.Reports.Upload(uploadCtx, key, "application/json", body)
	if err != nil {
		s.Logger.WarnContext(ctx, "failed to archive settlement report",
			slog.String("tournament_id", settlement.TournamentID),
			slog.Any("error", err),
		)
		return ""
	}
	return url
}

func prizeNotifications(t *models.Tournament, payouts []Payout) []Notification {
	var batch []Notification
	for _, p := range payouts {
		if !p.Amount.IsPositive() {
			continue
		}
		batch = append(batch, Notification{
			Kind:         NotifyPrizeWon,
			UserID:       p.UserID,
			TournamentID: t.ID,
			Title:        "You won " + FormatINR(p.Amount) + "!",
			Body:         fmt.Sprintf("You finished #%d in the %s tournament. Your winnings are ready to withdraw.", p.Position, t.Game.DisplayName()),
		})
	}
	return batch
}

func countWinners(payouts []Payout) int {
	n := 0
	for _, p := range payouts {
		if p.Amount.IsPositive() {
			n++
		}
	}
	return n
}
