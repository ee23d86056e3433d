package tasks

import (
	"context"
	"encoding/json"

	"authbase/internal/config"
	"authbase/internal/utils/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TaskClient enqueues background work. The HTTP handlers only ever touch
// this side; processing happens in the worker server.
type TaskClient struct {
	client      *asynq.Client
	redisClient *redis.Client
	logger      *logger.Logger
}

// IDPayload is the payload shared by tasks that operate on one record.
type IDPayload struct {
	ID uint64 `json:"id"`
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(cfg config.RedisConfig) *TaskClient {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &TaskClient{
		client:      asynq.NewClient(redisOpt),
		redisClient: redisClient,
		logger:      logger.New("TASKS"),
	}
}

// Redis exposes the shared redis connection for the login rate limiter.
func (c *TaskClient) Redis() *redis.Client {
	return c.redisClient
}

// Close closes the underlying asynq client
func (c *TaskClient) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	return c.redisClient.Close()
}

// EnqueueNotificationDelivery queues delivery of a persisted notification.
func (c *TaskClient) EnqueueNotificationDelivery(ctx context.Context, notificationID uint64) error {
	return c.enqueueByID(ctx, TaskTypeNotificationDeliver, notificationID,
		asynq.Queue(QueueDefault), asynq.MaxRetry(RetryDefault), asynq.Timeout(TimeoutShort))
}

// EnqueueConfirmEmail queues the confirmation mail for an account request.
func (c *TaskClient) EnqueueConfirmEmail(ctx context.Context, accountRequestID uint64) error {
	return c.enqueueByID(ctx, TaskTypeConfirmEmail, accountRequestID,
		asynq.Queue(QueueCritical), asynq.MaxRetry(RetryMax), asynq.Timeout(TimeoutShort))
}

// EnqueueResetEmail queues the password reset mail for a user.
func (c *TaskClient) EnqueueResetEmail(ctx context.Context, userID uint64) error {
	return c.enqueueByID(ctx, TaskTypeResetEmail, userID,
		asynq.Queue(QueueCritical), asynq.MaxRetry(RetryMax), asynq.Timeout(TimeoutShort))
}

func (c *TaskClient) enqueueByID(ctx context.Context, taskType string, id uint64, opts ...asynq.Option) error {
	payload, err := json.Marshal(IDPayload{ID: id})
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...)
	if err != nil {
		return c.logger.Error("failed to enqueue %s task", err, taskType)
	}
	c.logger.Debug("enqueued %s as %s on queue %s", taskType, info.ID, info.Queue)
	return nil
}
