package stock

import "context"

// ThresholdClass classifies a balance that crossed its configured minimum.
type ThresholdClass string

const (
	// ThresholdLowStock marks a balance below the minimum but not exhausted.
	ThresholdLowStock ThresholdClass = "LOW_STOCK"
	// ThresholdOutOfStock marks an exhausted balance.
	ThresholdOutOfStock ThresholdClass = "OUT_OF_STOCK"
)

// ThresholdEvent is handed to the notification dispatcher after a committed
// movement crosses the item's minimum. It carries no retained state.
type ThresholdEvent struct {
	ItemID   int64
	SKU      string
	Name     string
	Class    ThresholdClass
	Quantity int
	MinStock int
}

// Notifier is the narrow dispatcher contract the ledger depends on.
// Fan-out, retries and queueing are the dispatcher's concern.
type Notifier interface {
	Notify(ctx context.Context, evt ThresholdEvent) error
}

// EvaluateThreshold classifies a balance transition against the configured
// minimum. It fires only on the crossing itself: a balance that was already
// below the minimum produces no further events however many movements keep it
// there, and a balance recovering above the minimum produces none either.
func EvaluateThreshold(previous, current, minStock int) (ThresholdClass, bool) {
	if current >= minStock || previous < minStock {
		return "", false
	}
	if current == 0 {
		return ThresholdOutOfStock, true
	}
	return ThresholdLowStock, true
}
