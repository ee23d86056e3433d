package tasks

import (
	"context"
	"fmt"

	"authbase/internal/config"
	"authbase/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Server handles task processing
type Server struct {
	server  *asynq.Server
	handler *TaskHandler
	logger  *logger.Logger
}

// NewServer creates a new task processing server
func NewServer(cfg *config.Config, handler *TaskHandler) *Server {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			StrictPriority: true,
		},
	)

	return &Server{
		server:  server,
		handler: handler,
		logger:  logger.New("TASK-SERVER"),
	}
}

// Start starts the task processing server
func (s *Server) Start(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeNotificationDeliver, s.handler.HandleNotificationDeliver)
	mux.HandleFunc(TaskTypeConfirmEmail, s.handler.HandleConfirmEmail)
	mux.HandleFunc(TaskTypeResetEmail, s.handler.HandleResetEmail)
	mux.HandleFunc(TaskTypeAccountRequestPurge, s.handler.HandleAccountRequestPurge)

	s.logger.Info("starting task processing server")
	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the task processing server
func (s *Server) Shutdown() {
	s.logger.Info("shutting down task processing server")
	s.server.Shutdown()
}
