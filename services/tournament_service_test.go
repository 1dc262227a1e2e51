package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"battle-arena/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() CreateTournamentInput {
	return CreateTournamentInput{
		Game:          models.GameFreeFire,
		EntryFee:      money("25"),
		MaxPlayers:    20,
		WinnerCount:   20,
		PrizeTiers:    smallTiers,
		MatchDateTime: time.Date(2026, 11, 2, 18, 30, 0, 0, time.UTC),
	}
}

func TestCreateTournament(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db, testLogger(), nil, nil)

	created, err := svc.Create(context.Background(), "admin", validInput())
	require.NoError(t, err)
	assert.Equal(t, models.TournamentUpcoming, created.Status)
	assert.Equal(t, DefaultRules, created.Rules)
	assert.Equal(t, "admin", created.CreatedBy)
	assert.True(t, strings.HasPrefix(created.Slug, "free-fire-2026-11-02-1830-"), created.Slug)
	assertAmount(t, "700", created.TotalPrizePool)
	assert.Equal(t, 20, created.AvailableSlots)

	bySlug, err := svc.Get(context.Background(), created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)
	assertAmount(t, "700", bySlug.TotalPrizePool)

	_, err = svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestCreateTournamentValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateTournamentInput)
		wantErr error
	}{
		{name: "unknown game", mutate: func(in *CreateTournamentInput) { in.Game = "CHESS" }, wantErr: ErrInvalidTournament},
		{name: "negative fee", mutate: func(in *CreateTournamentInput) { in.EntryFee = money("-1") }, wantErr: ErrInvalidTournament},
		{name: "no players", mutate: func(in *CreateTournamentInput) { in.MaxPlayers = 0 }, wantErr: ErrInvalidTournament},
		{name: "no match time", mutate: func(in *CreateTournamentInput) { in.MatchDateTime = time.Time{} }, wantErr: ErrInvalidTournament},
		{name: "no tiers", mutate: func(in *CreateTournamentInput) { in.PrizeTiers = nil }, wantErr: ErrInvalidPrizeTiers},
		{name: "more winners than players", mutate: func(in *CreateTournamentInput) { in.WinnerCount = 21 }, wantErr: ErrInvalidPrizeTiers},
		{name: "tiers beyond winners", mutate: func(in *CreateTournamentInput) { in.WinnerCount = 10 }, wantErr: ErrInvalidPrizeTiers},
		{
			name: "gap between tiers",
			mutate: func(in *CreateTournamentInput) {
				in.PrizeTiers = models.PrizeTiers{
					{RankStart: 1, RankEnd: 5, PrizeAmount: money("50")},
					{RankStart: 7, RankEnd: 20, PrizeAmount: money("30")},
				}
			},
			wantErr: ErrInvalidPrizeTiers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			svc := NewTournamentService(db, testLogger(), nil, nil)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), "admin", in)
			require.ErrorIs(t, err, tt.wantErr)

			var n int64
			require.NoError(t, db.Model(&models.Tournament{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestCreateTournamentFreeEntry(t *testing.T) {
	svc := NewTournamentService(newTestDB(t), testLogger(), nil, nil)
	in := validInput()
	in.EntryFee = money("0")
	in.Rules = "Squads not allowed."

	created, err := svc.Create(context.Background(), "admin", in)
	require.NoError(t, err)
	assert.True(t, created.EntryFee.IsZero())
	assert.Equal(t, "Squads not allowed.", created.Rules)
}

func TestListTournamentsFiltersAndHidesRooms(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db, testLogger(), nil, nil)
	ctx := context.Background()

	later := createTournament(t, db, startingAt(time.Now().UTC().Add(48*time.Hour)))
	sooner := createTournament(t, db, startingAt(time.Now().UTC().Add(2*time.Hour)))
	createTournament(t, db, withStatus(models.TournamentCompleted))
	ff := createTournament(t, db)
	require.NoError(t, db.Model(&models.Tournament{}).Where("id = ?", ff.ID).Update("game", models.GameFreeFire).Error)

	_, err := svc.ReleaseRoom(ctx, sooner.ID, "room-1", "secret")
	require.NoError(t, err)

	upcomingBGMI, err := svc.List(ctx, TournamentFilter{Status: models.TournamentUpcoming, Game: models.GameBGMI})
	require.NoError(t, err)
	require.Len(t, upcomingBGMI, 2)
	assert.Equal(t, sooner.ID, upcomingBGMI[0].ID)
	assert.Equal(t, later.ID, upcomingBGMI[1].ID)
	assert.True(t, upcomingBGMI[0].RoomReleased)
	assert.Nil(t, upcomingBGMI[0].RoomID)
	assert.Nil(t, upcomingBGMI[0].RoomPassword)

	all, err := svc.List(ctx, TournamentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateStatusTransitions(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db, testLogger(), nil, nil)
	ctx := context.Background()
	tr := createTournament(t, db)

	_, err := svc.UpdateStatus(ctx, tr.ID, models.TournamentCompleted)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = svc.UpdateStatus(ctx, tr.ID, "PAUSED")
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	live, err := svc.UpdateStatus(ctx, tr.ID, models.TournamentLive)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentLive, live.Status)

	_, err = svc.UpdateStatus(ctx, tr.ID, models.TournamentUpcoming)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	done, err := svc.UpdateStatus(ctx, tr.ID, models.TournamentCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, done.Status)

	_, err = svc.UpdateStatus(ctx, tr.ID, models.TournamentCancelled)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = svc.UpdateStatus(ctx, "missing", models.TournamentLive)
	require.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestCancelRefundsEntryFeesOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db, testLogger(), nil, nil)
	regs := NewRegistrationService(db, testLogger(), nil)
	ctx := context.Background()
	tr := createTournament(t, db, withFee("25"))

	createUser(t, db, "alice", withWallet("100"))
	createUser(t, db, "bob", withWallet("25"))
	_, err := regs.Join(ctx, tr.ID, "alice")
	require.NoError(t, err)
	_, err = regs.Join(ctx, tr.ID, "bob")
	require.NoError(t, err)

	cancelled, err := svc.UpdateStatus(ctx, tr.ID, models.TournamentCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCancelled, cancelled.Status)

	assertAmount(t, "100", reloadUser(t, db, "alice").WalletBalance)
	assertAmount(t, "25", reloadUser(t, db, "bob").WalletBalance)

	refunds := transactionsOf(t, db, "alice", models.TransactionRefund)
	require.Len(t, refunds, 1)
	assertAmount(t, "25", refunds[0].Amount)

	registrations, err := regs.ListForTournament(ctx, tr.ID)
	require.NoError(t, err)
	for _, reg := range registrations {
		assert.Equal(t, models.PaymentRefunded, reg.PaymentStatus)
		assert.NotNil(t, reg.RefundedAt)
	}

	// Cancelled is terminal; the refunds cannot be replayed.
	_, err = svc.UpdateStatus(ctx, tr.ID, models.TournamentCancelled)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Len(t, transactionsOf(t, db, "alice", models.TransactionRefund), 1)
}

func TestReleaseRoomNotifiesActivePlayers(t *testing.T) {
	db := newTestDB(t)
	notifier := &recordingNotifier{}
	svc := NewTournamentService(db, testLogger(), nil, notifier)
	regs := NewRegistrationService(db, testLogger(), nil)
	ctx := context.Background()
	tr := createTournament(t, db)

	for _, id := range []string{"alice", "bob", "carol"} {
		createUser(t, db, id, withWallet("100"))
		_, err := regs.Join(ctx, tr.ID, id)
		require.NoError(t, err)
	}
	var carol models.TournamentRegistration
	require.NoError(t, db.Where("user_id = ?", "carol").First(&carol).Error)
	_, err := regs.Disqualify(ctx, carol.ID, "smurf account")
	require.NoError(t, err)

	_, err = svc.ReleaseRoom(ctx, tr.ID, "", "pw")
	require.ErrorIs(t, err, ErrRoomDetailsRequired)

	released, err := svc.ReleaseRoom(ctx, tr.ID, " 8812 ", " tiger ")
	require.NoError(t, err)
	assert.True(t, released.RoomReleased)
	require.NotNil(t, released.RoomID)
	assert.Equal(t, "8812", *released.RoomID)

	sent := notifier.byKind(NotifyRoomReleased)
	require.Len(t, sent, 2)
	recipients := []string{sent[0].UserID, sent[1].UserID}
	assert.ElementsMatch(t, []string{"alice", "bob"}, recipients)
	assert.Contains(t, sent[0].Body, "8812")
}

func TestReleaseRoomRequiresOpenTournament(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db, testLogger(), nil, nil)
	tr := createTournament(t, db, withStatus(models.TournamentCompleted))

	_, err := svc.ReleaseRoom(context.Background(), tr.ID, "1", "2")
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestForViewerRoomVisibility(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db, testLogger(), nil, nil)
	regs := NewRegistrationService(db, testLogger(), nil)
	ctx := context.Background()
	tr := createTournament(t, db)
	createUser(t, db, "alice", withWallet("100"))
	createUser(t, db, "mallory", withWallet("100"))
	_, err := regs.Join(ctx, tr.ID, "alice")
	require.NoError(t, err)

	before, err := svc.ForViewer(ctx, tr.ID, "alice", false)
	require.NoError(t, err)
	assert.Nil(t, before.RoomID)

	_, err = svc.ReleaseRoom(ctx, tr.ID, "8812", "tiger")
	require.NoError(t, err)

	tests := []struct {
		name     string
		userID   string
		isAdmin  bool
		wantRoom bool
	}{
		{name: "registered player", userID: "alice", wantRoom: true},
		{name: "outsider", userID: "mallory", wantRoom: false},
		{name: "anonymous", userID: "", wantRoom: false},
		{name: "operator", userID: "admin", isAdmin: true, wantRoom: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ForViewer(ctx, tr.ID, tt.userID, tt.isAdmin)
			require.NoError(t, err)
			if tt.wantRoom {
				require.NotNil(t, got.RoomPassword)
				assert.Equal(t, "tiger", *got.RoomPassword)
			} else {
				assert.Nil(t, got.RoomID)
				assert.Nil(t, got.RoomPassword)
			}
		})
	}
}
