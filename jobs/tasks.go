package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeThresholdAlert fans a threshold crossing out to recipients.
	TaskTypeThresholdAlert = "notify:threshold"
	// TaskTypeNotificationsPurge removes read notifications past retention.
	TaskTypeNotificationsPurge = "notifications:purge"
	// TaskTypeIdempotencySweep removes stale idempotency keys.
	TaskTypeIdempotencySweep = "ledger:idempotency_sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// EmailSender delivers a single email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewSendEmailHandler builds the handler for TaskTypeSendEmail.
func NewSendEmailHandler(sender EmailSender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.To == "" {
			return asynq.SkipRetry
		}
		return sender.Send(ctx, payload.To, payload.Subject, payload.Body)
	}
}

// ThresholdAlertPayload carries a threshold crossing to the worker.
type ThresholdAlertPayload struct {
	EventID  string `json:"event_id"`
	ItemID   int64  `json:"item_id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Class    string `json:"class"`
	Quantity int    `json:"quantity"`
	MinStock int    `json:"min_stock"`
}

// NewThresholdAlertTask constructs an Asynq task.
func NewThresholdAlertTask(payload ThresholdAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeThresholdAlert, data), nil
}

// ThresholdNotifier fans a threshold alert out to its recipients.
type ThresholdNotifier interface {
	FanOutThresholdAlert(ctx context.Context, payload ThresholdAlertPayload) error
}

// NewThresholdAlertHandler builds the handler for TaskTypeThresholdAlert.
func NewThresholdAlertHandler(notifier ThresholdNotifier) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ThresholdAlertPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return notifier.FanOutThresholdAlert(ctx, payload)
	}
}

// NotificationsPurgePayload configures the retention sweep.
type NotificationsPurgePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewNotificationsPurgeTask constructs an Asynq task.
func NewNotificationsPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(NotificationsPurgePayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotificationsPurge, data), nil
}

// NotificationPurger removes read notifications older than the retention window.
type NotificationPurger interface {
	PurgeRead(ctx context.Context, olderThan time.Duration) error
}

// NewNotificationsPurgeHandler builds the handler for TaskTypeNotificationsPurge.
func NewNotificationsPurgeHandler(purger NotificationPurger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotificationsPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := time.Duration(payload.RetentionHours) * time.Hour
		if retention <= 0 {
			retention = 30 * 24 * time.Hour
		}
		return purger.PurgeRead(ctx, retention)
	}
}

// IdempotencySweepPayload configures the idempotency key sweep.
type IdempotencySweepPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencySweepTask constructs an Asynq task.
func NewIdempotencySweepTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencySweepPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencySweep, data), nil
}

// IdempotencySweeper removes idempotency keys older than the retention window.
type IdempotencySweeper interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencySweepHandler builds the handler for TaskTypeIdempotencySweep.
func NewIdempotencySweepHandler(sweeper IdempotencySweeper) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencySweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := time.Duration(payload.RetentionHours) * time.Hour
		if retention <= 0 {
			retention = 7 * 24 * time.Hour
		}
		return sweeper.Cleanup(ctx, retention)
	}
}
