package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconcileOrderItemReceipt drives the recorded received quantity of a line
// item to target by emitting the minimal compensating ledger entry.
//
// The delta is always re-derived from the ledger (never incremented blindly),
// so calling this twice with the same target is a no-op the second time. Every
// receipt path funnels through here: direct line-item update, batch update,
// and the order-level RECEIVED transition.
//
// The caller is responsible for the upper bound (target <= orderedQuantity);
// this engine only rejects negative targets.
func ReconcileOrderItemReceipt(tx *gorm.DB, orderItem *OrderItem, target decimal.Decimal) error {
	if tx == nil {
		return errors.New("tx is nil")
	}
	if orderItem == nil {
		return errors.New("order item is nil")
	}
	if target.IsNegative() {
		return utils.Invalidf("received quantity cannot be negative")
	}

	ctx := tx.Statement.Context

	// Line items referencing a catalog item move real stock. Free-text
	// temporary items have no catalog row, so only the received counters
	// change for them.
	if orderItem.ItemId > 0 {
		release, err := utils.ObtainStockLock(ctx, orderItem.ItemId, "reconcile.go", "ReconcileOrderItemReceipt")
		if err != nil {
			return err
		}
		defer release()

		// Serialize concurrent reconciles on the same line item; re-read the
		// received counters under the lock.
		if config.StrictReceiptRowLocks() {
			var locked OrderItem
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, orderItem.ID).Error; err != nil {
				return utils.ErrorRecordNotFound
			}
			orderItem.ReceivedQuantity = locked.ReceivedQuantity
			orderItem.ReceivedAt = locked.ReceivedAt
		}

		activities, err := FindReceiptActivities(tx, orderItem)
		if err != nil {
			return err
		}
		alreadyProcessed := SumActivityEffects(activities)

		delta := target.Sub(alreadyProcessed)
		if !delta.IsZero() {
			operation := ActivityOperationInbound
			if delta.IsNegative() {
				operation = ActivityOperationOutbound
			}
			activity := Activity{
				ItemId:      orderItem.ItemId,
				OrderId:     utils.IntPtr(orderItem.OrderId),
				OrderItemId: utils.IntPtr(orderItem.ID),
				Quantity:    delta.Abs(),
				Operation:   operation,
				Reason:      ActivityReasonOrderReceived,
			}
			if err := appendActivity(tx, &activity); err != nil {
				return err
			}
			if err := AdjustItemQuantity(tx, orderItem.ItemId, delta); err != nil {
				return err
			}
		}
	}

	return updateReceivedCounters(tx, orderItem, target)
}

// updateReceivedCounters sets receivedQuantity to target and keeps receivedAt
// in sync: set on first receipt, cleared when everything is un-received.
func updateReceivedCounters(tx *gorm.DB, orderItem *OrderItem, target decimal.Decimal) error {
	updates := map[string]interface{}{
		"ReceivedQuantity": target,
	}

	var receivedAt *time.Time
	switch {
	case target.IsZero():
		receivedAt = nil
		updates["ReceivedAt"] = nil
	case orderItem.ReceivedAt == nil:
		now := time.Now().UTC()
		receivedAt = &now
		updates["ReceivedAt"] = &now
	default:
		receivedAt = orderItem.ReceivedAt
	}

	if err := tx.Model(orderItem).Updates(updates).Error; err != nil {
		return err
	}
	orderItem.ReceivedQuantity = target
	orderItem.ReceivedAt = receivedAt
	return nil
}
