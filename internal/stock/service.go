package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByItem(ctx context.Context, itemID int64, limit int) ([]Movement, error)
	ListByDateRange(ctx context.Context, from, to time.Time, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives business counters.
type MetricsPort interface {
	MovementPosted(kind string)
	ThresholdEventEmitted(class string)
}

// IdempotencyPort claims and releases request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyScope = "stock"

// Service is the single authority over item balances. Every balance change
// goes through RecordMovement; the movement log is append-only.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	idem     IdempotencyPort
	notifier Notifier
	metrics  MetricsPort
	logger   *slog.Logger
}

// NewService builds Service. idem may be nil; duplicate submission guarding
// is then disabled.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, notifier Notifier, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idem: idem, notifier: notifier, metrics: metrics, logger: logger}
}

// RecordMovement validates and applies a stock movement against the current
// balance. The movement insert and the balance update commit atomically; the
// item row is locked for the duration of the read-modify-write so concurrent
// movements on the same item serialize. Threshold evaluation and notification
// dispatch happen after commit and never fail the operation.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if input.ActorID == 0 {
		return Movement{}, fmt.Errorf("recording a movement requires an acting user: %w", shared.ErrUnauthorized)
	}
	if input.ItemID <= 0 {
		return Movement{}, fmt.Errorf("item %d: %w", input.ItemID, shared.ErrNotFound)
	}
	if !input.Kind.Valid() {
		return Movement{}, fmt.Errorf("%w: %q", ErrInvalidMovementKind, input.Kind)
	}
	// An adjustment sets the absolute balance and may legitimately be zero.
	if input.Quantity < 0 || (input.Quantity == 0 && input.Kind != MovementAdjustment) {
		return Movement{}, ErrInvalidQuantity
	}
	// External references are correlation ids from upstream systems.
	if input.Reference != "" {
		if _, err := uuid.Parse(input.Reference); err != nil {
			return Movement{}, fmt.Errorf("%w: reference must be a UUID", shared.ErrValidation)
		}
	}

	if s.idem != nil && input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyScope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Movement{}, fmt.Errorf("movement %q: %w", input.IdempotencyKey, shared.ErrDuplicate)
			}
			return Movement{}, err
		}
	}

	var (
		movement Movement
		item     ItemState
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		previous := item.Quantity
		newStock, err := computeNewStock(previous, input.Kind, input.Quantity)
		if err != nil {
			return err
		}
		if newStock < 0 {
			return ErrInsufficientStock
		}
		movement, err = tx.InsertMovement(ctx, Movement{
			ItemID:        input.ItemID,
			Kind:          input.Kind,
			Quantity:      input.Quantity,
			PreviousStock: previous,
			NewStock:      newStock,
			Reason:        input.Reason,
			Reference:     input.Reference,
			UserID:        input.ActorID,
		})
		if err != nil {
			return err
		}
		return tx.UpdateItemQuantity(ctx, input.ItemID, newStock)
	})
	if err != nil {
		// Release the key so a corrected retry is not locked out.
		if s.idem != nil && input.IdempotencyKey != "" {
			if derr := s.idem.Delete(ctx, input.IdempotencyKey); derr != nil {
				s.logger.Warn("release idempotency key failed",
					slog.String("key", input.IdempotencyKey),
					slog.Any("error", derr))
			}
		}
		return Movement{}, err
	}

	if s.metrics != nil {
		s.metrics.MovementPosted(string(movement.Kind))
	}
	s.afterCommit(ctx, item, movement)
	return movement, nil
}

// afterCommit runs the best-effort post-commit steps. The committed movement
// is the source of truth; failures here are logged, never propagated.
func (s *Service) afterCommit(ctx context.Context, item ItemState, movement Movement) {
	if class, fired := EvaluateThreshold(movement.PreviousStock, movement.NewStock, item.MinStock); fired && s.notifier != nil {
		evt := ThresholdEvent{
			ItemID:   item.ID,
			SKU:      item.SKU,
			Name:     item.Name,
			Class:    class,
			Quantity: movement.NewStock,
			MinStock: item.MinStock,
		}
		if err := s.notifier.Notify(ctx, evt); err != nil {
			s.logger.Error("dispatch threshold alert failed",
				slog.Int64("item_id", item.ID),
				slog.String("class", string(class)),
				slog.Any("error", err))
		} else if s.metrics != nil {
			s.metrics.ThresholdEventEmitted(string(class))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  movement.UserID,
			Action:   fmt.Sprintf("stock:%s", movement.Kind),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"item_id":        movement.ItemID,
				"quantity":       movement.Quantity,
				"previous_stock": movement.PreviousStock,
				"new_stock":      movement.NewStock,
			},
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
}

// MovementsByItem lists an item's movements, most recent first.
func (s *Service) MovementsByItem(ctx context.Context, itemID int64) ([]Movement, error) {
	if itemID <= 0 {
		return nil, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	return s.repo.ListByItem(ctx, itemID, 0)
}

// MovementsByDateRange lists movements inside the inclusive range, most recent first.
func (s *Service) MovementsByDateRange(ctx context.Context, from, to time.Time) ([]Movement, error) {
	if from.After(to) {
		return nil, errors.New("stock: date range start is after end")
	}
	return s.repo.ListByDateRange(ctx, from, to, 0)
}

func computeNewStock(previous int, kind MovementKind, quantity int) (int, error) {
	switch kind {
	case MovementIn:
		return previous + quantity, nil
	case MovementOut:
		return previous - quantity, nil
	case MovementAdjustment:
		return quantity, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMovementKind, kind)
}
