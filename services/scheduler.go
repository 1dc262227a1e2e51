package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"battle-arena/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ReminderService tells registered players that their match is about to start.
type ReminderService struct {
	DB       *gorm.DB
	Logger   *slog.Logger
	Notifier Notifier
	Window   time.Duration
}

func NewReminderService(db *gorm.DB, logger *slog.Logger, notifier Notifier, window time.Duration) *ReminderService {
	if window <= 0 {
		window = DefaultReminderWindow
	}
	return &ReminderService{DB: db, Logger: logger, Notifier: notifier, Window: window}
}

// SendReminders notifies players of UPCOMING tournaments starting within the
// window. Each tournament is reminded once. It returns the tournaments handled.
func (s *ReminderService) SendReminders(ctx context.Context, now time.Time) (int, error) {
	var due []models.Tournament
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND reminder_sent_at IS NULL AND match_date_time > ? AND match_date_time <= ?",
			models.TournamentUpcoming, now, now.Add(s.Window)).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to load due tournaments: %w", err)
	}

	for _, t := range due {
		// Claim the tournament first so two replicas never remind twice.
		res := s.DB.WithContext(ctx).Model(&models.Tournament{}).
			Where("id = ? AND reminder_sent_at IS NULL", t.ID).
			Update("reminder_sent_at", now)
		if res.Error != nil {
			return 0, fmt.Errorf("failed to mark reminder for %s: %w", t.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		var players []string
		if err := s.DB.WithContext(ctx).Model(&models.TournamentRegistration{}).
			Where("tournament_id = ? AND is_disqualified = ?", t.ID, false).
			Pluck("user_id", &players).Error; err != nil {
			return 0, fmt.Errorf("failed to load players for %s: %w", t.ID, err)
		}

		minutes := int(t.MatchDateTime.Sub(now).Round(time.Minute) / time.Minute)
		batch := make([]Notification, 0, len(players))
		for _, userID := range players {
			batch = append(batch, Notification{
				Kind:         NotifyMatchReminder,
				UserID:       userID,
				TournamentID: t.ID,
				Title:        fmt.Sprintf("%s match starts soon", t.Game.DisplayName()),
				Body:         fmt.Sprintf("Your match starts in %d minutes. Keep an eye out for the room details.", minutes),
			})
		}
		notifyAll(ctx, s.Notifier, s.Logger, batch)

		s.Logger.InfoContext(ctx, "match reminders sent",
			slog.String("tournament_id", t.ID),
			slog.Int("players", len(players)),
		)
	}
	return len(due), nil
}

// StartScheduler runs the reminder job every minute until the returned
// scheduler is shut down.
func (s *ReminderService) StartScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if _, err := s.SendReminders(ctx, time.Now().UTC()); err != nil {
				s.Logger.Error("reminder job failed", slog.Any("error", err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("failed to schedule reminders: %w", err)
	}

	sched.Start()
	return sched, nil
}
