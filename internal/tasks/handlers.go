package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"authbase/internal/config"
	"authbase/internal/models"
	"authbase/internal/utils/logger"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// TaskHandler processes the background work queued by the HTTP side.
//
// There is no real mail transport wired in; delivery logs the outbound
// message and records it as sent. Swapping in SMTP means replacing the
// deliver* functions only.
type TaskHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	logger *logger.Logger
}

func NewTaskHandler(db *gorm.DB, cfg *config.Config) *TaskHandler {
	return &TaskHandler{db: db, cfg: cfg, logger: logger.New("TASK-HANDLER")}
}

// HandleNotificationDeliver delivers one persisted notification and stamps
// it sent. Already-sent notifications are skipped so retries stay safe.
func (h *TaskHandler) HandleNotificationDeliver(ctx context.Context, t *asynq.Task) error {
	var payload IDPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("bad payload: %v: %w", err, asynq.SkipRetry)
	}

	var notification models.Notification
	err := h.db.WithContext(ctx).Preload("Recipient").First(&notification, payload.ID).Error
	if err != nil {
		return fmt.Errorf("notification %d not found: %w", payload.ID, err)
	}
	if notification.Sent != nil {
		return nil
	}

	recipient := "broadcast"
	if notification.Recipient != nil {
		recipient = notification.Recipient.Username
	}
	h.logger.Info("delivering %s notification to %s: %s", notification.Level, recipient, notification.Text)

	now := time.Now()
	return h.db.WithContext(ctx).Model(&notification).Update("sent", &now).Error
}

// HandleConfirmEmail sends the confirmation link for a pending account
// request.
func (h *TaskHandler) HandleConfirmEmail(ctx context.Context, t *asynq.Task) error {
	var payload IDPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("bad payload: %v: %w", err, asynq.SkipRetry)
	}

	var request models.AccountRequest
	err := h.db.WithContext(ctx).First(&request, payload.ID).Error
	if err != nil {
		return fmt.Errorf("account request %d not found: %w", payload.ID, err)
	}
	if request.ConfirmedAt != nil {
		return nil
	}

	link := fmt.Sprintf("%s/account/confirm?token=%s", h.cfg.Server.PublicURL, request.ConfirmToken)
	h.logger.Info("mail to %s: confirm your account at %s", request.Email, link)
	return nil
}

// HandleResetEmail sends the password reset link for a user.
func (h *TaskHandler) HandleResetEmail(ctx context.Context, t *asynq.Task) error {
	var payload IDPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("bad payload: %v: %w", err, asynq.SkipRetry)
	}

	var user models.AppUser
	err := h.db.WithContext(ctx).Preload("Security").First(&user, payload.ID).Error
	if err != nil {
		return fmt.Errorf("user %d not found: %w", payload.ID, err)
	}
	if user.Security == nil || user.Security.ResetToken == nil {
		return fmt.Errorf("user %d has no pending reset: %w", payload.ID, asynq.SkipRetry)
	}

	link := fmt.Sprintf("%s/password/change?token=%s", h.cfg.Server.PublicURL, *user.Security.ResetToken)
	h.logger.Info("mail to %s: reset your password at %s", user.Email, link)
	return nil
}

// HandleAccountRequestPurge deletes account requests that expired without
// being confirmed.
func (h *TaskHandler) HandleAccountRequestPurge(ctx context.Context, _ *asynq.Task) error {
	result := h.db.WithContext(ctx).
		Where("confirmed_at IS NULL AND expires_at < ?", time.Now()).
		Delete(&models.AccountRequest{})
	if result.Error != nil {
		return h.logger.Error("failed to purge expired account requests", result.Error)
	}
	if result.RowsAffected > 0 {
		h.logger.Info("purged %d expired account requests", result.RowsAffected)
	}
	return nil
}
