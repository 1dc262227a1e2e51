package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"battle-arena/metrics"
	"battle-arena/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultRules = "Standard rules apply. Mobile devices only. No emulators or hacks allowed."

// CreateTournamentInput is what an operator submits to schedule a match.
type CreateTournamentInput struct {
	Game          models.GameType   `json:"game"`
	EntryFee      decimal.Decimal   `json:"entry_fee"`
	MaxPlayers    int               `json:"max_players"`
	WinnerCount   int               `json:"winner_count"`
	PrizeTiers    models.PrizeTiers `json:"prize_tiers"`
	MatchDateTime time.Time         `json:"match_date_time"`
	Rules         string            `json:"rules"`
}

// TournamentFilter narrows List. Zero values match everything.
type TournamentFilter struct {
	Status models.TournamentStatus
	Game   models.GameType
}

type TournamentService struct {
	DB       *gorm.DB
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Notifier Notifier
}

func NewTournamentService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics, notifier Notifier) *TournamentService {
	return &TournamentService{DB: db, Logger: logger, Metrics: m, Notifier: notifier}
}

// Create validates the input and stores an UPCOMING tournament.
func (s *TournamentService) Create(ctx context.Context, operatorID string, in CreateTournamentInput) (*models.Tournament, error) {
	if !in.Game.Valid() {
		return nil, withDetail(ErrInvalidTournament, "unknown game %q", in.Game)
	}
	if in.EntryFee.IsNegative() {
		return nil, withDetail(ErrInvalidTournament, "entry fee cannot be negative")
	}
	if in.MaxPlayers < 1 {
		return nil, withDetail(ErrInvalidTournament, "max players must be positive")
	}
	if in.MatchDateTime.IsZero() {
		return nil, withDetail(ErrInvalidTournament, "match date and time are required")
	}
	if err := in.PrizeTiers.Validate(in.WinnerCount, in.MaxPlayers); err != nil {
		return nil, withDetail(ErrInvalidPrizeTiers, "%s", strings.TrimPrefix(err.Error(), models.ErrMalformedPrizeTiers.Error()+": "))
	}

	rules := strings.TrimSpace(in.Rules)
	if rules == "" {
		rules = DefaultRules
	}

	id := uuid.NewString()
	t := &models.Tournament{
		ID:            id,
		Slug:          tournamentSlug(in.Game, in.MatchDateTime, id),
		Game:          in.Game,
		EntryFee:      in.EntryFee,
		MaxPlayers:    in.MaxPlayers,
		WinnerCount:   in.WinnerCount,
		PrizeTiers:    in.PrizeTiers,
		MatchDateTime: in.MatchDateTime.UTC(),
		Status:        models.TournamentUpcoming,
		Rules:         rules,
		CreatedBy:     operatorID,
	}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	t.Fill()

	s.Logger.InfoContext(ctx, "tournament created",
		slog.String("tournament_id", t.ID),
		slog.String("game", string(t.Game)),
		slog.String("entry_fee", t.EntryFee.StringFixed(2)),
		slog.String("prize_pool", t.TotalPrizePool.StringFixed(2)),
	)
	return t, nil
}

func tournamentSlug(game models.GameType, at time.Time, id string) string {
	return slug.Make(fmt.Sprintf("%s %s %s", game.DisplayName(), at.UTC().Format("2006-01-02 1504"), id[:8]))
}

// Get loads a tournament with its calculated fields. Room credentials are
// left in place; callers decide visibility with ForViewer.
func (s *TournamentService) Get(ctx context.Context, id string) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.DB.WithContext(ctx).Where("id = ? OR slug = ?", id, id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament: %w", err)
	}
	t.Fill()
	return &t, nil
}

// ForViewer returns the tournament as userID may see it. Room credentials are
// only shown to operators and to players holding an active registration once
// the room has been released.
func (s *TournamentService) ForViewer(ctx context.Context, id, userID string, isAdmin bool) (*models.Tournament, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return t, nil
	}
	if !t.RoomReleased || userID == "" {
		t.HideRoom()
		return t, nil
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.TournamentRegistration{}).
		Where("tournament_id = ? AND user_id = ? AND is_disqualified = ?", t.ID, userID, false).
		Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	if n == 0 {
		t.HideRoom()
	}
	return t, nil
}

// List returns tournaments ordered by match time with room credentials hidden.
func (s *TournamentService) List(ctx context.Context, filter TournamentFilter) ([]models.Tournament, error) {
	q := s.DB.WithContext(ctx).Order("match_date_time ASC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Game != "" {
		q = q.Where("game = ?", filter.Game)
	}
	var tournaments []models.Tournament
	if err := q.Find(&tournaments).Error; err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	for i := range tournaments {
		tournaments[i].Fill()
		tournaments[i].HideRoom()
	}
	return tournaments, nil
}

// UpdateStatus moves a tournament along its lifecycle. Cancelling refunds the
// entry fee of every paid registration in the same transaction.
func (s *TournamentService) UpdateStatus(ctx context.Context, id string, next models.TournamentStatus) (*models.Tournament, error) {
	if !next.Valid() {
		return nil, withDetail(ErrInvalidStatusTransition, "unknown status %q", next)
	}

	var (
		t        *models.Tournament
		refunded int
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, err = lockTournament(tx, id)
		if err != nil {
			return err
		}
		if !t.Status.CanTransitionTo(next) {
			return withDetail(ErrInvalidStatusTransition, "%s to %s", t.Status, next)
		}
		if next == models.TournamentCancelled {
			if refunded, err = refundRegistrations(tx, t); err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Tournament{}).Where("id = ?", t.ID).Update("status", next).Error; err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		t.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.Refunds(refunded)
	s.Logger.InfoContext(ctx, "tournament status changed",
		slog.String("tournament_id", t.ID),
		slog.String("status", string(next)),
		slog.Int("refunds", refunded),
	)
	t.Fill()
	return t, nil
}

// refundRegistrations returns entry fees to wallets. Only COMPLETED payments
// are refunded, so a registration is never refunded twice.
func refundRegistrations(tx *gorm.DB, t *models.Tournament) (int, error) {
	var regs []models.TournamentRegistration
	if err := tx.Where("tournament_id = ? AND payment_status = ?", t.ID, models.PaymentCompleted).
		Order("slot_number ASC").
		Find(&regs).Error; err != nil {
		return 0, fmt.Errorf("failed to load registrations for refund: %w", err)
	}

	now := time.Now().UTC()
	desc := fmt.Sprintf("Refund for cancelled %s Tournament", t.Game.DisplayName())
	for _, reg := range regs {
		if reg.PaymentAmount.IsPositive() {
			user, err := lockUser(tx, reg.UserID)
			if err != nil {
				return 0, err
			}
			user.WalletBalance = user.WalletBalance.Add(reg.PaymentAmount)
			if err := saveBalances(tx, user); err != nil {
				return 0, err
			}
			if _, err := appendTransaction(tx, user.ID, models.TransactionRefund, reg.PaymentAmount, desc, t.ID); err != nil {
				return 0, err
			}
		}
		if err := tx.Model(&models.TournamentRegistration{}).
			Where("id = ?", reg.ID).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentRefunded,
				"refunded_at":    now,
			}).Error; err != nil {
			return 0, fmt.Errorf("failed to mark registration %s refunded: %w", reg.ID, err)
		}
	}
	return len(regs), nil
}

// ReleaseRoom publishes the room credentials and tells every active player.
func (s *TournamentService) ReleaseRoom(ctx context.Context, id, roomID, password string) (*models.Tournament, error) {
	roomID = strings.TrimSpace(roomID)
	password = strings.TrimSpace(password)
	if roomID == "" || password == "" {
		return nil, ErrRoomDetailsRequired
	}

	var (
		t       *models.Tournament
		players []string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, err = lockTournament(tx, id)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentUpcoming && t.Status != models.TournamentLive {
			return withDetail(ErrInvalidStatusTransition, "cannot release room of a %s tournament", t.Status)
		}
		if err := tx.Model(&models.Tournament{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
			"room_id":       roomID,
			"room_password": password,
			"room_released": true,
		}).Error; err != nil {
			return fmt.Errorf("failed to release room: %w", err)
		}
		t.RoomID = &roomID
		t.RoomPassword = &password
		t.RoomReleased = true

		return tx.Model(&models.TournamentRegistration{}).
			Where("tournament_id = ? AND is_disqualified = ?", t.ID, false).
			Pluck("user_id", &players).Error
	})
	if err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "room released",
		slog.String("tournament_id", t.ID),
		slog.Int("players", len(players)),
	)

	batch := make([]Notification, 0, len(players))
	for _, userID := range players {
		batch = append(batch, Notification{
			Kind:         NotifyRoomReleased,
			UserID:       userID,
			TournamentID: t.ID,
			Title:        "Room details are live",
			Body:         fmt.Sprintf("Your %s match room is ready. Room ID: %s", t.Game.DisplayName(), roomID),
		})
	}
	notifyAll(ctx, s.Notifier, s.Logger, batch)

	t.Fill()
	return t, nil
}
