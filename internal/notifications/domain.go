package notifications

import "time"

// Type classifies a notification.
type Type string

const (
	// TypeLowStock marks a balance that fell below its minimum.
	TypeLowStock Type = "LOW_STOCK"
	// TypeOutOfStock marks an exhausted balance.
	TypeOutOfStock Type = "OUT_OF_STOCK"
)

// Notification is a per-recipient alert row.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	ItemID    int64      `json:"item_id"`
	Type      Type       `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
