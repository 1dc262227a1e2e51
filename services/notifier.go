package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"battle-arena/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type NotificationKind string

const (
	NotifyRoomReleased  NotificationKind = "room_released"
	NotifyPrizeWon      NotificationKind = "prize_won"
	NotifyMatchReminder NotificationKind = "match_reminder"
)

// Notification is a fire-and-forget event for a single player.
type Notification struct {
	Kind         NotificationKind `json:"kind"`
	UserID       string           `json:"user_id"`
	TournamentID string           `json:"tournament_id,omitempty"`
	Title        string           `json:"title"`
	Body         string           `json:"body"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Notifier delivers notifications to the push pipeline.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders an amount the way players see it, e.g. ₹1,250.00.
func FormatINR(amount decimal.Decimal) string {
	return "₹" + inrPrinter.Sprintf("%.2f", amount.InexactFloat64())
}

// RedisNotifier publishes notifications on a per-user pub/sub channel that the
// push gateway subscribes to.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	channel := fmt.Sprintf(KeyUserNotifications, n.UserID)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// LogNotifier only logs; used when no push pipeline is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Logger.Info("notification",
		slog.String("kind", string(n.Kind)),
		slog.String("user_id", n.UserID),
		slog.String("tournament_id", n.TournamentID),
		slog.String("title", n.Title),
	)
	return nil
}

// AsyncNotifier hands every notification to a goroutine with its own deadline,
// so a slow or failing sink never blocks the caller or its transaction.
type AsyncNotifier struct {
	next    Notifier
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewAsyncNotifier(next Notifier, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *AsyncNotifier {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	return &AsyncNotifier{next: next, timeout: timeout, logger: logger, metrics: m}
}

func (a *AsyncNotifier) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(sendCtx, n); err != nil {
			a.metrics.NotificationFailed()
			a.logger.Warn("notification delivery failed",
				slog.String("kind", string(n.Kind)),
				slog.String("user_id", n.UserID),
				slog.Any("error", err),
			)
		}
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish. Called on shutdown.
func (a *AsyncNotifier) Wait() {
	a.wg.Wait()
}

// notifyAll sends each notification and logs failures; delivery never fails the caller.
func notifyAll(ctx context.Context, notifier Notifier, logger *slog.Logger, batch []Notification) {
	if notifier == nil {
		return
	}
	for _, n := range batch {
		if err := notifier.Notify(ctx, n); err != nil {
			logger.Warn("notification dropped",
				slog.String("kind", string(n.Kind)),
				slog.String("user_id", n.UserID),
				slog.Any("error", err),
			)
		}
	}
}
