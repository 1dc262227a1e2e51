package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"battle-arena/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database. A single connection
// serialises transactions the way row locks do in production.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Tournament{},
		&models.TournamentRegistration{},
		&models.TournamentResult{},
		&models.Transaction{},
		&models.WithdrawalRequest{},
		&models.PaymentOrder{},
	))
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(money(want)), "want %s, got %s", want, got.String())
}

type userOpt func(*models.User)

func withWallet(amount string) userOpt {
	return func(u *models.User) { u.WalletBalance = money(amount) }
}

func withCredits(amount string) userOpt {
	return func(u *models.User) { u.WinningCredits = money(amount) }
}

func banned() userOpt {
	return func(u *models.User) { u.IsBanned = true }
}

func createUser(t *testing.T, db *gorm.DB, id string, opts ...userOpt) *models.User {
	t.Helper()
	u := &models.User{ID: id, Email: id + "@example.com", DisplayName: id}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.Where("id = ?", id).First(&u).Error)
	return &u
}

type tournamentOpt func(*models.Tournament)

func withFee(amount string) tournamentOpt {
	return func(t *models.Tournament) { t.EntryFee = money(amount) }
}

func withPlayers(maxPlayers, winners int) tournamentOpt {
	return func(t *models.Tournament) {
		t.MaxPlayers = maxPlayers
		t.WinnerCount = winners
	}
}

func withTiers(tiers models.PrizeTiers) tournamentOpt {
	return func(t *models.Tournament) { t.PrizeTiers = tiers }
}

func withStatus(status models.TournamentStatus) tournamentOpt {
	return func(t *models.Tournament) { t.Status = status }
}

func startingAt(at time.Time) tournamentOpt {
	return func(t *models.Tournament) { t.MatchDateTime = at }
}

func createTournament(t *testing.T, db *gorm.DB, opts ...tournamentOpt) *models.Tournament {
	t.Helper()
	id := uuid.NewString()
	tr := &models.Tournament{
		ID:            id,
		Slug:          "t-" + id,
		Game:          models.GameBGMI,
		EntryFee:      money("25"),
		MaxPlayers:    100,
		WinnerCount:   80,
		PrizeTiers:    models.DefaultPrizeTiers(),
		MatchDateTime: time.Now().UTC().Add(24 * time.Hour),
		Status:        models.TournamentUpcoming,
		CreatedBy:     "admin",
	}
	for _, opt := range opts {
		opt(tr)
	}
	require.NoError(t, db.Create(tr).Error)
	return tr
}

func reloadTournament(t *testing.T, db *gorm.DB, id string) *models.Tournament {
	t.Helper()
	var tr models.Tournament
	require.NoError(t, db.Where("id = ?", id).First(&tr).Error)
	return &tr
}

func transactionsOf(t *testing.T, db *gorm.DB, userID string, kind models.TransactionType) []models.Transaction {
	t.Helper()
	var txns []models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", userID, kind).Find(&txns).Error)
	return txns
}

// recordingNotifier keeps every notification in memory.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) byKind(kind NotificationKind) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
