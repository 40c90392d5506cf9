package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
)

// Activity is one append-only stock movement record. Quantity is always a
// positive magnitude; direction comes from Operation.
//
// OrderId/OrderItemId are nullable: legacy rows imported before line items
// were tracked carry item+order references only. Reconciliation must match
// those rows too (see FindReceiptActivities).
type Activity struct {
	ID          int               `gorm:"primary_key" json:"id"`
	ItemId      int               `gorm:"index;not null" json:"item_id"`
	OrderId     *int              `gorm:"index" json:"order_id"`
	OrderItemId *int              `gorm:"index" json:"order_item_id"`
	Quantity    decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Operation   ActivityOperation `gorm:"type:enum('INBOUND','OUTBOUND');not null" json:"operation"`
	Reason      ActivityReason    `gorm:"type:enum('ORDER_RECEIVED','OPENING_STOCK','MANUAL_ADJUSTMENT');not null;index" json:"reason"`
	UserId      int               `gorm:"index" json:"user_id"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// SignedQuantity is +quantity for INBOUND, -quantity for OUTBOUND.
func (a Activity) SignedQuantity() decimal.Decimal {
	if a.Operation == ActivityOperationOutbound {
		return a.Quantity.Neg()
	}
	return a.Quantity
}

// SumActivityEffects folds the signed effects of a set of activities.
func SumActivityEffects(activities []*Activity) decimal.Decimal {
	total := decimal.Zero
	for _, a := range activities {
		if a == nil {
			continue
		}
		total = total.Add(a.SignedQuantity())
	}
	return total
}

// BeforeSave enforces ledger invariants: positive magnitude, known operation.
func (a *Activity) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if a == nil {
		return nil
	}
	if !a.Quantity.IsPositive() {
		return errors.New("activity quantity must be a positive magnitude")
	}
	if a.Operation != ActivityOperationInbound && a.Operation != ActivityOperationOutbound {
		return errors.New("invalid activity operation")
	}
	return nil
}

// The ledger is append-only: corrections are new compensating rows.
func (a *Activity) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("activities are append-only and cannot be updated")
}

func (a *Activity) BeforeDelete(tx *gorm.DB) error {
	return errors.New("activities are append-only and cannot be deleted")
}

func appendActivity(tx *gorm.DB, activity *Activity) error {
	if tx == nil {
		return errors.New("tx is nil")
	}
	if userId, ok := utils.GetUserIdFromContext(tx.Statement.Context); ok {
		activity.UserId = userId
	}
	return tx.Create(activity).Error
}

// FindReceiptActivities returns every ORDER_RECEIVED activity attributable to
// the line item: the union of directly linked rows and legacy rows matched by
// catalog item + order with no line-item reference. Reads go through tx so
// uncommitted rows from the same request are visible.
func FindReceiptActivities(tx *gorm.DB, orderItem *OrderItem) ([]*Activity, error) {
	if tx == nil {
		return nil, errors.New("tx is nil")
	}
	var activities []*Activity
	err := tx.Model(&Activity{}).
		Where("reason = ?", ActivityReasonOrderReceived).
		Where("order_item_id = ? OR (order_item_id IS NULL AND item_id = ? AND order_id = ?)",
			orderItem.ID, orderItem.ItemId, orderItem.OrderId).
		Order("id").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

func GetActivities(ctx context.Context, itemId *int, orderId *int, reason *ActivityReason) ([]*Activity, error) {
	db := config.GetDB()
	var results []*Activity

	dbCtx := db.WithContext(ctx)
	if itemId != nil && *itemId > 0 {
		dbCtx = dbCtx.Where("item_id = ?", *itemId)
	}
	if orderId != nil && *orderId > 0 {
		dbCtx = dbCtx.Where("order_id = ?", *orderId)
	}
	if reason != nil && *reason != "" {
		dbCtx = dbCtx.Where("reason = ?", *reason)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
