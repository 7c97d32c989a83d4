package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-erp/stockpile-erp/internal/platform/db"
	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, itemID int64) (ItemState, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction. A
// serialization abort re-runs the callback against the committed state, so a
// movement racing a concurrent commit re-reads the new balance instead of
// surfacing a storage error.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListByItem returns movements for an item, most recent first.
func (r *Repository) ListByItem(ctx context.Context, itemID int64, limit int) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("stock repository not initialised")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, kind, quantity, previous_stock, new_stock, COALESCE(reason,''), COALESCE(reference,''), user_id, created_at
FROM stock_movements
WHERE item_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListByDateRange returns movements inside the inclusive range, most recent first.
func (r *Repository) ListByDateRange(ctx context.Context, from, to time.Time, limit int) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("stock repository not initialised")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, kind, quantity, previous_stock, new_stock, COALESCE(reason,''), COALESCE(reference,''), user_id, created_at
FROM stock_movements
WHERE created_at BETWEEN $1 AND $2
ORDER BY created_at DESC, id DESC
LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Kind, &m.Quantity, &m.PreviousStock, &m.NewStock, &m.Reason, &m.Reference, &m.UserID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (ItemState, error) {
	var item ItemState
	err := r.tx.QueryRow(ctx, `SELECT id, sku, name, quantity, min_stock FROM items WHERE id=$1 AND is_active FOR UPDATE`, itemID).
		Scan(&item.ID, &item.SKU, &item.Name, &item.Quantity, &item.MinStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ItemState{}, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
		}
		return ItemState{}, err
	}
	return item, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (item_id, kind, quantity, previous_stock, new_stock, reason, reference, user_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id, created_at`,
		m.ItemID, string(m.Kind), m.Quantity, m.PreviousStock, m.NewStock, nullString(m.Reason), nullString(m.Reference), m.UserID).
		Scan(&m.ID, &m.CreatedAt)
	return m, err
}

func (r *txRepository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE items SET quantity=$2, updated_at=NOW() WHERE id=$1`, itemID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	return nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
