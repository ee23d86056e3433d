package tasks

import "time"

// Task Types
const (
	TaskTypeNotificationDeliver = "notification:deliver"
	TaskTypeConfirmEmail        = "account:confirm_email"
	TaskTypeResetEmail          = "account:reset_email"
	TaskTypeAccountRequestPurge = "account:purge_expired"
)

// Task Queues
const (
	QueueCritical = "critical" // account confirmation and reset mail
	QueueDefault  = "default"  // notification delivery
	QueueLow      = "low"      // cleanup
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
)
