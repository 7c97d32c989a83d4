package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, user_id, item_id, type, title, message, is_read, read_at, created_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.ItemID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.ReadAt, &n.CreatedAt)
	return n, err
}

// Insert stores one notification row.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO notifications (user_id, item_id, type, title, message, is_read, created_at)
VALUES ($1,$2,$3,$4,$5,FALSE,NOW()) RETURNING `+notificationColumns,
		n.UserID, n.ItemID, n.Type, n.Title, n.Message)
	return scanNotification(row)
}

// ListByUser returns a user's notifications, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListUnreadByUser returns a user's unread notifications, newest first.
func (r *Repository) ListUnreadByUser(ctx context.Context, userID int64) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
WHERE user_id=$1 AND NOT is_read ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// CountUnread returns the number of unread notifications for a user.
func (r *Repository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&count)
	return count, err
}

// MarkRead marks one notification as read. The user scope keeps one user
// from acknowledging another's alerts.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=TRUE, read_at=NOW()
WHERE id=$1 AND user_id=$2 AND NOT is_read`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// MarkAllRead marks all of a user's unread notifications as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=TRUE, read_at=NOW()
WHERE user_id=$1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteReadBefore removes read notifications created before the cutoff.
func (r *Repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE is_read AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collect(rows pgx.Rows) ([]Notification, error) {
	var list []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
