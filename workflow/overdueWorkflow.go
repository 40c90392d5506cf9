package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/models"
	"github.com/stocklinkhq/stocklink_backend/utils"
)

const overdueTopicName = "order.overdue"

// OverdueOrderEvent is the payload published for each order found past its
// forecast date.
type OverdueOrderEvent struct {
	OrderId    int        `json:"order_id"`
	SupplierId int        `json:"supplier_id"`
	Status     string     `json:"status"`
	Forecast   *time.Time `json:"forecast"`
	DetectedAt time.Time  `json:"detected_at"`
}

// OverdueScanResult summarizes one scan run.
type OverdueScanResult struct {
	Scanned   int
	Published int
	Marked    int
}

// ScanOverdueOrders finds orders whose forecast date has passed before any
// receipt and publishes an event per order. When mark is set the orders are
// also transitioned to Overdue. Per-order failures are logged and the scan
// keeps going.
func ScanOverdueOrders(ctx context.Context, mark bool) (*OverdueScanResult, error) {
	logger := config.GetLogger()
	result := &OverdueScanResult{}

	overdue := true
	orders, err := models.GetOrders(ctx, &models.OrderFilter{Overdue: &overdue})
	if err != nil {
		return nil, err
	}
	result.Scanned = len(orders)

	now := time.Now().UTC()
	for _, order := range orders {
		event := OverdueOrderEvent{
			OrderId:    order.ID,
			SupplierId: order.SupplierId,
			Status:     string(order.Status),
			Forecast:   order.Forecast,
			DetectedAt: now,
		}
		if err := config.PublishEvent(ctx, overdueTopicName, event); err != nil {
			config.LogError(logger, "overdueWorkflow.go", "ScanOverdueOrders", "publish event",
				map[string]any{"order_id": order.ID}, err)
		} else {
			result.Published++
		}

		if !mark || order.Status == models.OrderStatusOverdue {
			continue
		}
		if _, err := models.MarkOrderOverdue(ctx, order.ID); err != nil {
			var transitionErr *utils.InvalidTransitionError
			if errors.As(err, &transitionErr) {
				// Raced with a receipt or cancellation; nothing to do.
				continue
			}
			config.LogError(logger, "overdueWorkflow.go", "ScanOverdueOrders", "mark overdue",
				map[string]any{"order_id": order.ID}, err)
			continue
		}
		result.Marked++
	}
	return result, nil
}
