package stock

import (
	"errors"
	"time"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementIn represents an inbound receipt.
	MovementIn MovementKind = "IN"
	// MovementOut represents an outbound issue.
	MovementOut MovementKind = "OUT"
	// MovementAdjustment overrides the balance with an absolute value.
	MovementAdjustment MovementKind = "ADJUSTMENT"
)

// Valid reports whether the kind is one of the supported movements.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// Movement is the immutable audit record of a single balance change.
type Movement struct {
	ID            int64        `json:"id"`
	ItemID        int64        `json:"item_id"`
	Kind          MovementKind `json:"kind"`
	Quantity      int          `json:"quantity"`
	PreviousStock int          `json:"previous_stock"`
	NewStock      int          `json:"new_stock"`
	Reason        string       `json:"reason,omitempty"`
	Reference     string       `json:"reference,omitempty"`
	UserID        int64        `json:"user_id"`
	CreatedAt     time.Time    `json:"created_at"`
}

// MovementInput describes a proposed movement.
type MovementInput struct {
	ItemID    int64
	Kind      MovementKind
	Quantity  int
	Reason    string
	Reference string
	ActorID   int64

	// IdempotencyKey, when set, guards against double submission. A repeated
	// key is rejected with shared.ErrDuplicate.
	IdempotencyKey string
}

// ItemState is the slice of the item row the ledger reads and writes.
type ItemState struct {
	ID       int64
	SKU      string
	Name     string
	Quantity int
	MinStock int
}

// ErrInsufficientStock triggered when an issue would drive the balance negative.
var ErrInsufficientStock = errors.New("stock: insufficient stock for this operation")

// ErrInvalidMovementKind indicates an unknown movement kind.
var ErrInvalidMovementKind = errors.New("stock: invalid movement kind")

// ErrInvalidQuantity indicates an invalid movement quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be positive")
