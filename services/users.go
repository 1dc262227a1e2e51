package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"battle-arena/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity is what the identity provider vouches for on every request.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Phone   string
	Admin   bool
}

type LeaderboardOrder string

const (
	LeaderboardByEarnings LeaderboardOrder = "earnings"
	LeaderboardByWins     LeaderboardOrder = "wins"
)

type UserService struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

func NewUserService(db *gorm.DB, logger *slog.Logger) *UserService {
	return &UserService{DB: db, Logger: logger}
}

// EnsureProfile creates the local profile on first sight of an identity and
// refreshes contact fields afterwards. Balances and flags are never touched.
func (s *UserService) EnsureProfile(ctx context.Context, id Identity) (*models.User, error) {
	if id.Subject == "" {
		return nil, ErrUserNotFound
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = displayNameFromEmail(id.Email)
	}

	user := models.User{
		ID:          id.Subject,
		Email:       id.Email,
		Phone:       id.Phone,
		DisplayName: name,
		IsAdmin:     id.Admin,
	}
	updates := []string{"email", "display_name", "updated_at"}
	if id.Phone != "" {
		updates = append(updates, "phone")
	}
	if id.Admin {
		updates = append(updates, "is_admin")
	}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert profile %s: %w", id.Subject, err)
	}
	return s.Get(ctx, id.Subject)
}

func displayNameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	if email != "" {
		return email
	}
	return "Player"
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// List searches profiles by display name or email for the operator console.
func (s *UserService) List(ctx context.Context, query string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.User{}).Order("created_at DESC").Limit(limit)
	if query = strings.TrimSpace(query); query != "" {
		term := "%" + strings.ToLower(query) + "%"
		db = db.Where("LOWER(display_name) LIKE ? OR LOWER(email) LIKE ?", term, term)
	}
	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Ban(ctx context.Context, userID string) (*models.User, error) {
	return s.setBanned(ctx, userID, true)
}

func (s *UserService) Unban(ctx context.Context, userID string) (*models.User, error) {
	return s.setBanned(ctx, userID, false)
}

func (s *UserService) setBanned(ctx context.Context, userID string, banned bool) (*models.User, error) {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("is_banned", banned)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update ban flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	s.Logger.InfoContext(ctx, "ban flag changed", slog.String("user_id", userID), slog.Bool("banned", banned))
	return s.Get(ctx, userID)
}

// Stats counts registrations, prizes won and total prize earnings.
func (s *UserService) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	db := s.DB.WithContext(ctx)
	var stats models.UserStats
	if err := db.Model(&models.TournamentRegistration{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalMatches).Error; err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	var prize struct {
		Wins     int64
		Earnings float64
	}
	if err := db.Model(&models.Transaction{}).
		Select("COUNT(*) AS wins, COALESCE(SUM(amount), 0) AS earnings").
		Where("user_id = ? AND type = ?", userID, models.TransactionPrize).
		Scan(&prize).Error; err != nil {
		return nil, fmt.Errorf("failed to sum prizes: %w", err)
	}
	stats.TotalWins = prize.Wins
	stats.TotalEarnings = decimalFromFloat(prize.Earnings)
	return &stats, nil
}

// Leaderboard ranks players by prize earnings or by prizes won.
func (s *UserService) Leaderboard(ctx context.Context, by LeaderboardOrder, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	order := "total_earnings DESC, total_wins DESC"
	if by == LeaderboardByWins {
		order = "total_wins DESC, total_earnings DESC"
	}

	var rows []struct {
		UserID        string
		DisplayName   string
		TotalEarnings float64
		TotalWins     int64
	}
	db := s.DB.WithContext(ctx)
	if err := db.Table("transactions AS t").
		Select("t.user_id AS user_id, u.display_name AS display_name, SUM(t.amount) AS total_earnings, COUNT(*) AS total_wins").
		Joins("JOIN users u ON u.id = t.user_id").
		Where("t.type = ? AND u.is_banned = ? AND u.deleted_at IS NULL", models.TransactionPrize, false).
		Group("t.user_id, u.display_name").
		Order(order).
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}
	if len(rows) == 0 {
		return []models.LeaderboardEntry{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	var matches []struct {
		UserID string
		N      int64
	}
	if err := db.Model(&models.TournamentRegistration{}).
		Select("user_id, COUNT(*) AS n").
		Where("user_id IN ?", ids).
		Group("user_id").
		Scan(&matches).Error; err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}
	played := make(map[string]int64, len(matches))
	for _, m := range matches {
		played[m.UserID] = m.N
	}

	entries := make([]models.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = models.LeaderboardEntry{
			Rank:          i + 1,
			UserID:        r.UserID,
			DisplayName:   r.DisplayName,
			TotalEarnings: decimalFromFloat(r.TotalEarnings),
			TotalWins:     r.TotalWins,
			TotalMatches:  played[r.UserID],
		}
	}
	return entries, nil
}

// Dashboard backs the operator overview.
func (s *UserService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	db := s.DB.WithContext(ctx)
	var stats models.DashboardStats
	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.Tournament{}).Count(&stats.TotalTournaments).Error; err != nil {
		return nil, fmt.Errorf("failed to count tournaments: %w", err)
	}
	if err := db.Model(&models.Tournament{}).
		Where("status IN ?", []models.TournamentStatus{models.TournamentUpcoming, models.TournamentLive}).
		Count(&stats.ActiveTournaments).Error; err != nil {
		return nil, fmt.Errorf("failed to count active tournaments: %w", err)
	}
	if err := db.Model(&models.WithdrawalRequest{}).
		Where("status = ?", models.WithdrawalPending).
		Count(&stats.PendingWithdrawals).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending withdrawals: %w", err)
	}
	return &stats, nil
}

// Transactions returns a player's ledger, newest first.
func (s *UserService) Transactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txns []models.Transaction
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}
