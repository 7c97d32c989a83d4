package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockpile-erp/stockpile-erp/internal/stock"
	"github.com/stockpile-erp/stockpile-erp/jobs"
)

func TestDispatcherEnqueuesThresholdTask(t *testing.T) {
	enq := &recordingEnqueuer{}
	d := NewDispatcher(enq, nil)

	err := d.Notify(context.Background(), stock.ThresholdEvent{
		ItemID:   7,
		SKU:      "WID-1",
		Name:     "Widget",
		Class:    stock.ThresholdLowStock,
		Quantity: 3,
		MinStock: 5,
	})
	require.NoError(t, err)

	tasks := enq.ofType(jobs.TaskTypeThresholdAlert)
	require.Len(t, tasks, 1)

	var payload jobs.ThresholdAlertPayload
	require.NoError(t, json.Unmarshal(tasks[0].Payload(), &payload))
	require.NotEmpty(t, payload.EventID)
	require.EqualValues(t, 7, payload.ItemID)
	require.Equal(t, string(stock.ThresholdLowStock), payload.Class)
	require.Equal(t, 3, payload.Quantity)
}

func TestDispatcherPropagatesEnqueueFailure(t *testing.T) {
	enq := &recordingEnqueuer{err: errors.New("redis down")}
	d := NewDispatcher(enq, nil)

	err := d.Notify(context.Background(), stock.ThresholdEvent{ItemID: 7, Class: stock.ThresholdLowStock})
	require.Error(t, err)
}
