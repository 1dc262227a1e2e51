package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"battle-arena/middleware"
	"battle-arena/models"
	"battle-arena/services"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret     = "test-secret"
	testWebhookSecret = "whsec_test"
)

type stubGateway struct{ n int }

func (g *stubGateway) CreateOrder(_ context.Context, _ decimal.Decimal, currency, receipt string) (*services.GatewayOrder, error) {
	g.n++
	return &services.GatewayOrder{ID: fmt.Sprintf("order_%d", g.n), Currency: currency, Receipt: receipt}, nil
}

func (g *stubGateway) FetchPayments(context.Context, string) ([]services.GatewayPayment, error) {
	return nil, nil
}

type testServer struct {
	app      *fiber.App
	db       *gorm.DB
	verifier *middleware.TokenVerifier
}

func newTestServer(t *testing.T) *testServer {
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

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registrations := services.NewRegistrationService(db, log, nil)
	h := &Handler{
		Tournaments:   services.NewTournamentService(db, log, nil, nil),
		Registrations: registrations,
		Settlements:   services.NewSettlementService(db, log, nil, nil, nil),
		Withdrawals:   services.NewWithdrawalService(db, log, nil),
		Payments:      services.NewPaymentService(db, log, nil, &stubGateway{}, registrations, testWebhookSecret),
		Users:         services.NewUserService(db, log),
		Logger:        log,
	}

	verifier := middleware.NewTokenVerifier(testJWTSecret, "", "")
	app := fiber.New()
	h.SetupRoutes(app, RouteConfig{
		Verifier:    verifier,
		RateLimiter: middleware.NewKeyedRateLimiter(rate.Inf, 1),
	})
	return &testServer{app: app, db: db, verifier: verifier}
}

func jwtSubject(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject}
}

func (s *testServer) token(t *testing.T, subject string, admin bool) string {
	t.Helper()
	tok, err := s.verifier.Issue(middleware.Claims{
		RegisteredClaims: jwtSubject(subject),
		Email:            subject + "@example.com",
		Admin:            admin,
	}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (s *testServer) fund(t *testing.T, userID, wallet, credits string) {
	t.Helper()
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"wallet_balance":  decimal.RequireFromString(wallet),
		"winning_credits": decimal.RequireFromString(credits),
	}).Error)
}

func (s *testServer) createTournament(t *testing.T, adminToken string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/s/admin/tournaments", adminToken, map[string]any{
		"game":            "BGMI",
		"entry_fee":       "25",
		"max_players":     20,
		"winner_count":    20,
		"match_date_time": time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339),
		"prize_tiers": []map[string]any{
			{"rank_start": 1, "rank_end": 5, "prize_amount": "50"},
			{"rank_start": 6, "rank_end": 20, "prize_amount": "30"},
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func TestHealthAndPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = s.do(t, http.MethodGet, "/tournaments?status=PAUSED", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/tournaments/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "tournament_not_found", body["code"])

	status, _ = s.do(t, http.MethodGet, "/leaderboard?by=kills", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/s/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", body["code"])

	status, _ = s.do(t, http.MethodGet, "/s/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	expired, err := s.verifier.Issue(middleware.Claims{RegisteredClaims: jwtSubject("alice")}, -time.Minute)
	require.NoError(t, err)
	status, _ = s.do(t, http.MethodGet, "/s/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodGet, "/s/me", s.token(t, "alice", false), nil)
	assert.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["id"])
	assert.Equal(t, "alice", user["display_name"])
}

func TestAdminRoutesRequireOperator(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/s/admin/dashboard", s.token(t, "alice", false), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["code"])

	status, body = s.do(t, http.MethodGet, "/s/admin/dashboard", s.token(t, "root", true), nil)
	assert.Equal(t, http.StatusOK, status)
	// The forbidden request above already created alice's profile.
	assert.EqualValues(t, 2, body["total_users"])
}

func TestJoinSettleAndWithdrawOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "root", true)
	alice := s.token(t, "alice", false)
	tournamentID := s.createTournament(t, admin)

	// Profile is created on first request; the wallet is empty.
	status, body := s.do(t, http.MethodPost, "/s/tournaments/"+tournamentID+"/join", alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "insufficient_balance", body["code"])

	s.fund(t, "alice", "100", "0")
	status, body = s.do(t, http.MethodPost, "/s/tournaments/"+tournamentID+"/join", alice, nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, body["slot_number"])

	status, body = s.do(t, http.MethodPost, "/s/tournaments/"+tournamentID+"/join", alice, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_registered", body["code"])

	status, body = s.do(t, http.MethodGet, "/s/tournaments/"+tournamentID, alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_registered"])

	status, _ = s.do(t, http.MethodPatch, "/s/admin/tournaments/"+tournamentID+"/status", admin, map[string]any{"status": "LIVE"})
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/s/admin/tournaments/"+tournamentID+"/settle", admin, map[string]any{
		"results": []map[string]any{{"user_id": "alice", "position": 3, "kills": 2}},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "50", body["total_paid"])

	status, body = s.do(t, http.MethodPost, "/s/admin/tournaments/"+tournamentID+"/settle", admin, map[string]any{
		"results": []map[string]any{{"user_id": "alice", "position": 3}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "already_settled", body["code"])

	status, body = s.do(t, http.MethodPost, "/s/withdrawals", alice, map[string]any{"amount": "20", "upi_id": "alice@okaxis"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "below_minimum", body["code"])

	status, body = s.do(t, http.MethodPost, "/s/withdrawals", alice, map[string]any{"amount": "40", "upi_id": "alice@okaxis"})
	require.Equal(t, http.StatusCreated, status, body)
	withdrawalID := body["id"].(string)

	status, body = s.do(t, http.MethodPost, "/s/admin/withdrawals/"+withdrawalID+"/process", admin, map[string]any{"approve": false})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "reason_required", body["code"])

	status, body = s.do(t, http.MethodPost, "/s/admin/withdrawals/"+withdrawalID+"/process", admin, map[string]any{"approve": true})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "APPROVED", body["status"])

	status, body = s.do(t, http.MethodGet, "/s/me", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "10", body["available_credits"])
}

func TestPaymentWebhook(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "alice", false)

	status, body := s.do(t, http.MethodPost, "/s/payments/orders", alice, map[string]any{"amount": "50"})
	require.Equal(t, http.StatusCreated, status, body)
	orderID := body["gateway_order_id"].(string)

	status, body = s.do(t, http.MethodPost, "/payments/webhook", "", map[string]any{
		"order_id": orderID, "payment_id": "pay_1", "signature": "forged",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "invalid_signature", body["code"])

	status, _ = s.do(t, http.MethodPost, "/payments/webhook", "", map[string]any{"order_id": orderID})
	assert.Equal(t, http.StatusBadRequest, status)

	sig := services.SignPayment(testWebhookSecret, orderID, "pay_1")
	status, body = s.do(t, http.MethodPost, "/payments/webhook", "", map[string]any{
		"order_id": orderID, "payment_id": "pay_1", "signature": sig,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "COMPLETED", body["status"])

	status, body = s.do(t, http.MethodPost, "/payments/webhook", "", map[string]any{
		"order_id": orderID, "payment_id": "pay_1", "signature": sig, "status": "failed",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "payment_not_pending", body["code"])

	status, body = s.do(t, http.MethodGet, "/s/me", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "50", body["user"].(map[string]any)["wallet_balance"])
}

func TestStatusForKinds(t *testing.T) {
	tests := map[services.ErrorKind]int{
		services.KindValidation:    fiber.StatusBadRequest,
		services.KindState:         fiber.StatusConflict,
		services.KindCapacity:      fiber.StatusConflict,
		services.KindAuthorization: fiber.StatusForbidden,
		services.KindIntegrity:     fiber.StatusUnprocessableEntity,
		services.KindNotFound:      fiber.StatusNotFound,
		services.ErrorKind(99):     fiber.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusFor(kind), kind.String())
	}
}
