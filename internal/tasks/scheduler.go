package tasks

import (
	"encoding/json"
	"fmt"

	"authbase/internal/config"
	"authbase/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Scheduler enqueues the periodic maintenance tasks.
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *logger.Logger
}

// NewScheduler creates a new task scheduler
func NewScheduler(cfg *config.Config) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		&asynq.SchedulerOpts{},
	)

	return &Scheduler{
		scheduler: scheduler,
		logger:    logger.New("SCHEDULER"),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if err := s.registerTasks(); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}
	s.logger.Info("starting task scheduler")
	return s.scheduler.Run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("task scheduler stopped")
}

func (s *Scheduler) registerTasks() error {
	empty, _ := json.Marshal(struct{}{})

	// Hourly sweep of account requests that expired unconfirmed.
	entryID, err := s.scheduler.Register("0 * * * *",
		asynq.NewTask(TaskTypeAccountRequestPurge, empty),
		asynq.Queue(QueueLow), asynq.Timeout(TimeoutMedium))
	if err != nil {
		return err
	}
	s.logger.Info("registered periodic task %s as %s", TaskTypeAccountRequestPurge, entryID)
	return nil
}
