package tasks

import (
	"context"
	"time"

	"authbase/internal/models"
	"authbase/internal/utils/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Sweeper is the in-process safety net for notification delivery. The event
// bus enqueues deliveries as notifications are created, but that enqueue is
// best-effort; every few minutes the sweeper re-enqueues anything still
// unsent after a grace period.
type Sweeper struct {
	db     *gorm.DB
	client *TaskClient
	cron   *cron.Cron
	logger *logger.Logger
}

const sweepGracePeriod = 5 * time.Minute

func NewSweeper(db *gorm.DB, client *TaskClient) *Sweeper {
	return &Sweeper{
		db:     db,
		client: client,
		cron:   cron.New(),
		logger: logger.New("SWEEPER"),
	}
}

func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("*/5 * * * *", s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("notification sweeper started")
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("notification sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), TimeoutMedium)
	defer cancel()

	var stale []models.Notification
	err := s.db.WithContext(ctx).
		Where("sent IS NULL AND created < ?", time.Now().Add(-sweepGracePeriod)).
		Limit(100).
		Find(&stale).Error
	if err != nil {
		s.logger.Warn("sweep query failed: %v", err)
		return
	}

	for _, n := range stale {
		if err := s.client.EnqueueNotificationDelivery(ctx, n.ID); err != nil {
			s.logger.Warn("failed to re-enqueue notification %d: %v", n.ID, err)
		}
	}
	if len(stale) > 0 {
		s.logger.Info("re-enqueued %d stale notifications", len(stale))
	}
}
