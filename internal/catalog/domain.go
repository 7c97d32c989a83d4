package catalog

import (
	"errors"
	"time"
)

// Item is a trackable inventory item. Quantity is the cached running balance
// owned by the stock ledger; the low/out-of-stock flags are always derived
// from it, never stored.
type Item struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryID  int64     `json:"category_id"`
	UnitPrice   float64   `json:"unit_price"`
	Cost        *float64  `json:"cost,omitempty"`
	Quantity    int       `json:"quantity"`
	MinStock    int       `json:"min_stock"`
	MaxStock    *int      `json:"max_stock,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsLowStock reports whether the balance sits below the configured minimum.
func (i Item) IsLowStock() bool {
	return i.Quantity < i.MinStock
}

// IsOutOfStock reports whether the balance is exhausted.
func (i Item) IsOutOfStock() bool {
	return i.Quantity == 0
}

// Category groups items.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateItemInput describes an item to provision. A nil MinStock takes the
// default of 5.
type CreateItemInput struct {
	SKU         string
	Name        string
	Description string
	CategoryID  int64
	UnitPrice   float64
	Cost        *float64
	Quantity    int
	MinStock    *int
	MaxStock    *int
	ActorID     int64
}

// UpdateItemInput describes a direct item edit. Quantity edits bypass the
// ledger by design parity with the provisioning surface; threshold evaluation
// still runs on the transition.
type UpdateItemInput struct {
	Name        string
	Description string
	CategoryID  int64
	UnitPrice   float64
	Cost        *float64
	Quantity    int
	MinStock    int
	MaxStock    *int
	IsActive    bool
	ActorID     int64
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	Search       string
	CategoryID   *int64
	IsActive     *bool
	LowStockOnly bool
	Page         int
	PerPage      int
}

// Summary aggregates the registry for the dashboard endpoint.
type Summary struct {
	TotalItems        int     `json:"total_items"`
	LowStockItems     int     `json:"low_stock_items"`
	OutOfStockItems   int     `json:"out_of_stock_items"`
	TotalValue        float64 `json:"total_value"`
	TotalValueDisplay string  `json:"total_value_display"`
}

// DefaultMinStock applies when item provisioning omits the threshold.
const DefaultMinStock = 5

// ErrInvalidThresholds indicates maxStock not greater than minStock.
var ErrInvalidThresholds = errors.New("catalog: max stock must be greater than min stock")

// ErrNegativeQuantity indicates a negative initial or edited quantity.
var ErrNegativeQuantity = errors.New("catalog: quantity cannot be negative")
