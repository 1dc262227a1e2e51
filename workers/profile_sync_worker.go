package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"battle-arena/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile is one changed profile reported by the identity provider.
type RemoteProfile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	Phone         string    `json:"phone"`
	AccountStatus string    `json:"account_status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Suspended reports whether the provider has locked the account.
func (p RemoteProfile) Suspended() bool {
	switch strings.ToLower(p.AccountStatus) {
	case "suspended", "banned", "disabled":
		return true
	}
	return false
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors profile changes from the identity provider into
// the users table so operators see current names and contact details.
type ProfileSyncWorker struct {
	db           *gorm.DB
	logger       *slog.Logger
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	lastSync     time.Time
}

func NewProfileSyncWorker(db *gorm.DB, logger *slog.Logger, baseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		logger:       logger,
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Run syncs once immediately and then on every tick until ctx is done.
func (w *ProfileSyncWorker) Run(ctx context.Context) {
	w.logger.Info("profile sync worker started", slog.String("source", w.baseURL))
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			w.logger.Info("profile sync worker stopped")
			return
		}
	}
}

func (w *ProfileSyncWorker) tick(ctx context.Context) {
	started := time.Now().UTC()
	n, err := w.SyncOnce(ctx, w.lastSync)
	if err != nil {
		// Keep lastSync so the same window is retried.
		w.logger.Warn("profile sync failed", slog.Any("error", err))
		return
	}
	w.lastSync = started
	if n > 0 {
		w.logger.Info("profiles synced", slog.Int("count", n))
	}
}

// SyncOnce fetches profiles changed since the given time and upserts them.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context, since time.Time) (int, error) {
	profiles, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	synced := 0
	for _, p := range profiles {
		if p.ID == "" {
			continue
		}
		user := models.User{
			ID:          p.ID,
			Email:       p.Email,
			Phone:       p.Phone,
			DisplayName: p.DisplayName,
		}
		if user.DisplayName == "" {
			user.DisplayName = "Player"
		}
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "phone", "display_name", "updated_at"}),
		}).Create(&user).Error; err != nil {
			w.logger.Warn("failed to upsert profile", slog.String("user_id", p.ID), slog.Any("error", err))
			continue
		}
		if p.Suspended() {
			if err := w.db.WithContext(ctx).Model(&models.User{}).
				Where("id = ?", p.ID).
				Update("is_banned", true).Error; err != nil {
				w.logger.Warn("failed to ban suspended profile", slog.String("user_id", p.ID), slog.Any("error", err))
				continue
			}
		}
		synced++
	}
	return synced, nil
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile sync URL %q: %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile sync request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile sync returned %d: %s", resp.StatusCode, string(body))
	}

	var out profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode profile sync response: %w", err)
	}
	return out.Users, nil
}
