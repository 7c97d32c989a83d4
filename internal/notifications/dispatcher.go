package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stockpile-erp/stockpile-erp/jobs"
	"github.com/stockpile-erp/stockpile-erp/internal/stock"
)

// Enqueuer is the slice of the asynq client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher hands threshold crossings to the background worker. The ledger
// only sees the narrow Notify contract; recipient fan-out, retries and
// queueing live on the worker side.
type Dispatcher struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(enqueuer Enqueuer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{enqueuer: enqueuer, logger: logger}
}

var _ stock.Notifier = (*Dispatcher)(nil)

// Notify enqueues the threshold alert task.
func (d *Dispatcher) Notify(ctx context.Context, evt stock.ThresholdEvent) error {
	task, err := jobs.NewThresholdAlertTask(jobs.ThresholdAlertPayload{
		EventID:  uuid.NewString(),
		ItemID:   evt.ItemID,
		SKU:      evt.SKU,
		Name:     evt.Name,
		Class:    string(evt.Class),
		Quantity: evt.Quantity,
		MinStock: evt.MinStock,
	})
	if err != nil {
		return fmt.Errorf("notifications: build threshold task: %w", err)
	}
	info, err := d.enqueuer.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("notifications: enqueue threshold task: %w", err)
	}
	d.logger.Info("threshold alert enqueued",
		slog.String("task_id", info.ID),
		slog.Int64("item_id", evt.ItemID),
		slog.String("class", string(evt.Class)))
	return nil
}
