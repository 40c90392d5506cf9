package models

import (
	"errors"

	"gorm.io/gorm"
)

// lineItemCounts is the aggregate the derivation rules run on.
type lineItemCounts struct {
	Total             int
	Fulfilled         int
	FullyReceived     int
	PartiallyReceived int
}

func countLineItems(items []OrderItem) lineItemCounts {
	counts := lineItemCounts{Total: len(items)}
	for _, item := range items {
		if item.IsFulfilled() {
			counts.Fulfilled++
		}
		if item.IsFullyReceived() {
			counts.FullyReceived++
		} else if item.IsPartiallyReceived() {
			counts.PartiallyReceived++
		}
	}
	return counts
}

// deriveFulfillmentStatus computes the fulfillment-side status from line-item
// state. It never moves an order that has progressed to the receiving phase,
// and never touches terminal or empty orders.
func deriveFulfillmentStatus(current OrderStatus, counts lineItemCounts) (OrderStatus, bool) {
	if current.IsTerminal() || counts.Total == 0 {
		return current, false
	}
	if current == OrderStatusPartiallyReceived {
		return current, false
	}

	switch {
	case counts.Fulfilled == counts.Total:
		if current != OrderStatusFulfilled {
			return OrderStatusFulfilled, true
		}
	case counts.Fulfilled > 0:
		if current != OrderStatusPartiallyFulfilled {
			return OrderStatusPartiallyFulfilled, true
		}
	default:
		// Nothing fulfilled: only fall back to Created from a fulfillment
		// state. Overdue stays Overdue.
		if current == OrderStatusPartiallyFulfilled || current == OrderStatusFulfilled {
			return OrderStatusCreated, true
		}
	}
	return current, false
}

// deriveReceiptStatus computes the receipt-side status. Full receipt of every
// line promotes to Received; any receipt promotes to Partially Received; when
// the last receipt is reversed the order falls back to whatever the
// fulfillment counts say.
func deriveReceiptStatus(current OrderStatus, counts lineItemCounts) (OrderStatus, bool) {
	if current.IsTerminal() || counts.Total == 0 {
		return current, false
	}

	switch {
	case counts.FullyReceived == counts.Total:
		return OrderStatusReceived, true
	case counts.FullyReceived > 0 || counts.PartiallyReceived > 0:
		if current != OrderStatusPartiallyReceived {
			return OrderStatusPartiallyReceived, true
		}
	case current == OrderStatusPartiallyReceived:
		// Receipts fully reversed: recompute from fulfillment state.
		switch {
		case counts.Fulfilled == counts.Total:
			return OrderStatusFulfilled, true
		case counts.Fulfilled > 0:
			return OrderStatusPartiallyFulfilled, true
		default:
			return OrderStatusCreated, true
		}
	}
	return current, false
}

// DeriveOrderStatus reloads the order's line items and applies the derivation
// rules, writing a System-triggered transition for each status hop. Derivation
// runs after any line-item mutation; it is not run for direct user status
// transitions, which state exactly what the user asked for.
func DeriveOrderStatus(tx *gorm.DB, order *Order) error {
	if tx == nil {
		return errors.New("tx is nil")
	}
	if order.Status.IsTerminal() {
		return nil
	}

	var items []OrderItem
	if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return err
	}
	counts := countLineItems(items)

	if next, changed := deriveFulfillmentStatus(order.Status, counts); changed {
		if err := writeDerivedStatus(tx, order, next); err != nil {
			return err
		}
	}
	if next, changed := deriveReceiptStatus(order.Status, counts); changed {
		if err := writeDerivedStatus(tx, order, next); err != nil {
			return err
		}
	}
	return nil
}

func writeDerivedStatus(tx *gorm.DB, order *Order, next OrderStatus) error {
	old := order.Status
	if err := tx.Model(order).Updates(map[string]interface{}{
		"Status":      next,
		"StatusOrder": next.Rank(),
	}).Error; err != nil {
		return err
	}
	order.Status = next
	order.StatusOrder = next.Rank()
	if err := saveStatusTransition(tx, order.ID, old, next, TriggeredBySystem, "derived from line items"); err != nil {
		return err
	}
	if next == OrderStatusReceived {
		fireOrderRecurrence(tx, order)
	}
	return nil
}
