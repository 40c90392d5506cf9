package models

import (
	"context"
	"time"

	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
)

// allowedTransitions is the user-driven status graph. Overdue is reachable
// only through MarkOrderOverdue; terminal statuses have no outgoing edges.
//
// Created -> Received is deliberately absent: receiving an order that was
// never fulfilled is rewritten as a two-step Created -> Fulfilled -> Received
// so downstream stock logic always sees receipt after fulfillment.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {
		OrderStatusPartiallyFulfilled,
		OrderStatusFulfilled,
		OrderStatusCancelled,
	},
	OrderStatusPartiallyFulfilled: {
		OrderStatusFulfilled,
		OrderStatusPartiallyReceived,
		OrderStatusReceived,
		OrderStatusCancelled,
	},
	OrderStatusFulfilled: {
		OrderStatusPartiallyReceived,
		OrderStatusReceived,
		OrderStatusCancelled,
	},
	OrderStatusPartiallyReceived: {
		OrderStatusReceived,
		OrderStatusCancelled,
	},
	OrderStatusOverdue: {
		OrderStatusPartiallyFulfilled,
		OrderStatusFulfilled,
		OrderStatusPartiallyReceived,
		OrderStatusReceived,
		OrderStatusCancelled,
	},
}

func CanTransition(from OrderStatus, to OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UpdateOrderStatus applies a user-requested status transition with its side
// effects: fulfillment timestamps on entering the fulfilled states, receipt
// reconciliation of every line on entering Received, and the forced two-step
// for Created -> Received.
func UpdateOrderStatus(ctx context.Context, id int, requested OrderStatus) (*Order, error) {
	db := config.GetDB()

	if !requested.IsValid() {
		return nil, utils.Invalidf("invalid order status %q", string(requested))
	}
	if requested == OrderStatusOverdue {
		return nil, utils.Invalidf("orders cannot be marked Overdue manually")
	}

	order, err := utils.FetchModel[Order](ctx, id, "Items")
	if err != nil {
		return nil, err
	}
	if requested == order.Status {
		return order, nil
	}

	tx := db.Begin().WithContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if order.Status == OrderStatusCreated && requested == OrderStatusReceived {
		// Receiving an unfulfilled order: insert a synthetic fulfillment step
		// backdated to the order's creation, then receive.
		fulfillTime := order.CreatedAt
		if err := transitionOrderStatusTx(tx, order, OrderStatusFulfilled, TriggeredBySystem,
			&fulfillTime, "synthetic fulfillment inserted before receipt"); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := transitionOrderStatusTx(tx, order, OrderStatusReceived, TriggeredByUser, nil, ""); err != nil {
			tx.Rollback()
			return nil, err
		}
	} else {
		if !CanTransition(order.Status, requested) {
			tx.Rollback()
			return nil, &utils.InvalidTransitionError{From: string(order.Status), To: string(requested)}
		}
		if err := transitionOrderStatusTx(tx, order, requested, TriggeredByUser, nil, ""); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return order, nil
}

// MarkOrderOverdue is the system-only transition used by the overdue scan. An
// order past its forecast that has not started receiving is flagged Overdue.
func MarkOrderOverdue(ctx context.Context, id int) (*Order, error) {
	db := config.GetDB()

	order, err := utils.FetchModel[Order](ctx, id, "Items")
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() ||
		order.Status == OrderStatusPartiallyReceived ||
		order.Status == OrderStatusOverdue {
		return nil, &utils.InvalidTransitionError{From: string(order.Status), To: string(OrderStatusOverdue)}
	}
	if order.Forecast == nil || !order.Forecast.Before(time.Now()) {
		return nil, utils.Invalidf("order %d is not past its forecast date", id)
	}

	tx := db.Begin().WithContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := transitionOrderStatusTx(tx, order, OrderStatusOverdue, TriggeredBySystem, nil,
		"forecast date passed without receipt"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return order, nil
}

// transitionOrderStatusTx writes one status hop and applies its side effects
// inside the caller's transaction. fulfillTime overrides the timestamp stamped
// on line items when entering Fulfilled (used by the synthetic two-step).
func transitionOrderStatusTx(tx *gorm.DB, order *Order, next OrderStatus,
	triggeredBy TriggeredBy, fulfillTime *time.Time, description string) error {
	old := order.Status

	switch next {
	case OrderStatusFulfilled:
		stampAt := time.Now().UTC()
		if fulfillTime != nil {
			stampAt = *fulfillTime
		}
		if err := stampFulfilledAt(tx, order, stampAt); err != nil {
			return err
		}
	case OrderStatusReceived:
		// Receipt implies fulfillment: stamp any stragglers, then drive every
		// line to its ordered quantity through the reconciliation engine.
		if err := stampFulfilledAt(tx, order, time.Now().UTC()); err != nil {
			return err
		}
		for i := range order.Items {
			item := &order.Items[i]
			if err := ReconcileOrderItemReceipt(tx, item, item.OrderedQuantity); err != nil {
				return err
			}
		}
	}

	if err := tx.Model(order).Updates(map[string]interface{}{
		"Status":      next,
		"StatusOrder": next.Rank(),
	}).Error; err != nil {
		return err
	}
	order.Status = next
	order.StatusOrder = next.Rank()

	if err := saveStatusTransition(tx, order.ID, old, next, triggeredBy, description); err != nil {
		return err
	}

	if next == OrderStatusReceived {
		fireOrderRecurrence(tx, order)
	}
	return nil
}

// stampFulfilledAt sets FulfilledAt on every line item that does not have one.
func stampFulfilledAt(tx *gorm.DB, order *Order, at time.Time) error {
	for i := range order.Items {
		item := &order.Items[i]
		if item.FulfilledAt != nil {
			continue
		}
		if err := tx.Model(item).Update("FulfilledAt", &at).Error; err != nil {
			return err
		}
		item.FulfilledAt = utils.TimePtr(at)
	}
	return nil
}
