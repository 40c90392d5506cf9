package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
)

// OrderItem is one line of an order. It either references a catalog item
// (ItemId > 0) or carries a free-text TemporaryItemDescription for goods not
// yet in the catalog; temporary lines never touch stock.
type OrderItem struct {
	ID                       int             `gorm:"primary_key" json:"id"`
	OrderId                  int             `gorm:"index;not null" json:"order_id"`
	ItemId                   int             `gorm:"index" json:"item_id"`
	TemporaryItemDescription string          `gorm:"size:255" json:"temporary_item_description"`
	OrderedQuantity          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"ordered_quantity"`
	ReceivedQuantity         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"received_quantity"`
	Price                    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Icms                     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"icms"`
	Ipi                      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"ipi"`
	FulfilledAt              *time.Time      `json:"fulfilled_at"`
	ReceivedAt               *time.Time      `json:"received_at"`
	CreatedAt                time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Item                     *Item           `json:"item,omitempty"`
}

// IsFulfilled and receipt helpers back status derivation.
func (oi OrderItem) IsFulfilled() bool {
	return oi.FulfilledAt != nil
}

func (oi OrderItem) IsFullyReceived() bool {
	return oi.ReceivedAt != nil &&
		oi.OrderedQuantity.IsPositive() &&
		oi.ReceivedQuantity.GreaterThanOrEqual(oi.OrderedQuantity)
}

func (oi OrderItem) IsPartiallyReceived() bool {
	return oi.ReceivedQuantity.IsPositive() && !oi.IsFullyReceived()
}

// TotalAmount is ordered quantity times price plus tax percentages.
func (oi OrderItem) TotalAmount() decimal.Decimal {
	base := oi.OrderedQuantity.Mul(oi.Price)
	taxRate := oi.Icms.Add(oi.Ipi).Div(decimal.NewFromInt(100))
	return base.Add(base.Mul(taxRate))
}

type NewOrderItem struct {
	ItemId                   int             `json:"item_id"`
	TemporaryItemDescription string          `json:"temporary_item_description"`
	OrderedQuantity          decimal.Decimal `json:"ordered_quantity" binding:"required"`
	Price                    decimal.Decimal `json:"price"`
	Icms                     decimal.Decimal `json:"icms"`
	Ipi                      decimal.Decimal `json:"ipi"`
}

func (input *NewOrderItem) validate(ctx context.Context) error {
	if input.ItemId <= 0 && input.TemporaryItemDescription == "" {
		return utils.Invalidf("line item needs an item or a temporary item description")
	}
	if input.ItemId > 0 && input.TemporaryItemDescription != "" {
		return utils.Invalidf("line item cannot have both an item and a temporary item description")
	}
	if !input.OrderedQuantity.IsPositive() {
		return utils.Invalidf("ordered quantity must be positive")
	}
	if input.Price.IsNegative() || input.Icms.IsNegative() || input.Ipi.IsNegative() {
		return utils.Invalidf("price and tax percentages cannot be negative")
	}
	if input.ItemId > 0 {
		if err := utils.ValidateResourceId[Item](ctx, input.ItemId); err != nil {
			return err
		}
	}
	return nil
}

func createOrderItemTx(tx *gorm.DB, order *Order, input *NewOrderItem) (*OrderItem, error) {
	if err := input.validate(tx.Statement.Context); err != nil {
		return nil, err
	}

	orderItem := OrderItem{
		OrderId:                  order.ID,
		ItemId:                   input.ItemId,
		TemporaryItemDescription: input.TemporaryItemDescription,
		OrderedQuantity:          input.OrderedQuantity,
		ReceivedQuantity:         decimal.Zero,
		Price:                    input.Price,
		Icms:                     input.Icms,
		Ipi:                      input.Ipi,
	}
	if err := tx.Create(&orderItem).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx, HistoryActionCreate, orderItem.ID, ReferenceTypeOrderItem,
		"", nil, &orderItem, TriggeredByUser, ""); err != nil {
		return nil, err
	}
	return &orderItem, nil
}

// deleteOrderItemTx removes a line item. Any received stock is reversed
// through the ledger first so the item's cached quantity stays explainable.
func deleteOrderItemTx(tx *gorm.DB, orderItem *OrderItem) error {
	if orderItem.ReceivedQuantity.IsPositive() {
		if err := ReconcileOrderItemReceipt(tx, orderItem, decimal.Zero); err != nil {
			return err
		}
	}
	if err := tx.Delete(&OrderItem{}, orderItem.ID).Error; err != nil {
		return err
	}
	return createHistory(tx, HistoryActionDelete, orderItem.ID, ReferenceTypeOrderItem,
		"", orderItem, nil, TriggeredByUser, "")
}

// UpdateOrderItemInput is a partial update; nil fields are left untouched.
// FulfilledAt can be set while unset and cleared with ClearFulfilledAt as long
// as nothing has been received yet.
type UpdateOrderItemInput struct {
	OrderedQuantity  *decimal.Decimal `json:"ordered_quantity"`
	ReceivedQuantity *decimal.Decimal `json:"received_quantity"`
	Price            *decimal.Decimal `json:"price"`
	Icms             *decimal.Decimal `json:"icms"`
	Ipi              *decimal.Decimal `json:"ipi"`
	FulfilledAt      *time.Time       `json:"fulfilled_at"`
	ClearFulfilledAt bool             `json:"clear_fulfilled_at"`
}

type fieldChange struct {
	Field  string
	Before interface{}
	After  interface{}
}

// applyOrderItemChangesTx validates and applies a partial line-item update.
// Receipt changes go through the reconciliation engine; everything else is a
// plain column update. Returns the audited field changes.
func applyOrderItemChangesTx(tx *gorm.DB, orderItem *OrderItem, input *UpdateOrderItemInput) ([]fieldChange, error) {
	orderedQuantity := orderItem.OrderedQuantity
	if input.OrderedQuantity != nil {
		orderedQuantity = *input.OrderedQuantity
		if !orderedQuantity.IsPositive() {
			return nil, utils.Invalidf("ordered quantity must be positive")
		}
	}

	receivedQuantity := orderItem.ReceivedQuantity
	if input.ReceivedQuantity != nil {
		receivedQuantity = *input.ReceivedQuantity
		if receivedQuantity.IsNegative() {
			return nil, utils.Invalidf("received quantity cannot be negative")
		}
	}
	if receivedQuantity.GreaterThan(orderedQuantity) {
		return nil, utils.Invalidf("received quantity cannot exceed ordered quantity")
	}

	if input.FulfilledAt != nil && input.ClearFulfilledAt {
		return nil, utils.Invalidf("cannot set and clear fulfilled_at in the same update")
	}
	if input.ClearFulfilledAt && receivedQuantity.IsPositive() {
		return nil, utils.Invalidf("cannot clear fulfilled_at while quantity has been received")
	}

	var changes []fieldChange
	updates := map[string]interface{}{}

	if input.OrderedQuantity != nil && !orderedQuantity.Equal(orderItem.OrderedQuantity) {
		changes = append(changes, fieldChange{"ordered_quantity", orderItem.OrderedQuantity, orderedQuantity})
		updates["OrderedQuantity"] = orderedQuantity
	}
	if input.Price != nil && !input.Price.Equal(orderItem.Price) {
		if input.Price.IsNegative() {
			return nil, utils.Invalidf("price cannot be negative")
		}
		changes = append(changes, fieldChange{"price", orderItem.Price, *input.Price})
		updates["Price"] = *input.Price
	}
	if input.Icms != nil && !input.Icms.Equal(orderItem.Icms) {
		if input.Icms.IsNegative() {
			return nil, utils.Invalidf("icms cannot be negative")
		}
		changes = append(changes, fieldChange{"icms", orderItem.Icms, *input.Icms})
		updates["Icms"] = *input.Icms
	}
	if input.Ipi != nil && !input.Ipi.Equal(orderItem.Ipi) {
		if input.Ipi.IsNegative() {
			return nil, utils.Invalidf("ipi cannot be negative")
		}
		changes = append(changes, fieldChange{"ipi", orderItem.Ipi, *input.Ipi})
		updates["Ipi"] = *input.Ipi
	}
	if input.FulfilledAt != nil && orderItem.FulfilledAt == nil {
		changes = append(changes, fieldChange{"fulfilled_at", nil, *input.FulfilledAt})
		updates["FulfilledAt"] = input.FulfilledAt
	}
	if input.ClearFulfilledAt && orderItem.FulfilledAt != nil {
		changes = append(changes, fieldChange{"fulfilled_at", *orderItem.FulfilledAt, nil})
		updates["FulfilledAt"] = nil
	}

	if len(updates) > 0 {
		if err := tx.Model(orderItem).Updates(updates).Error; err != nil {
			return nil, err
		}
		orderItem.OrderedQuantity = orderedQuantity
		if input.Price != nil {
			orderItem.Price = *input.Price
		}
		if input.Icms != nil {
			orderItem.Icms = *input.Icms
		}
		if input.Ipi != nil {
			orderItem.Ipi = *input.Ipi
		}
		if input.FulfilledAt != nil && orderItem.FulfilledAt == nil {
			orderItem.FulfilledAt = input.FulfilledAt
		}
		if input.ClearFulfilledAt {
			orderItem.FulfilledAt = nil
		}
	}

	if input.ReceivedQuantity != nil && !receivedQuantity.Equal(orderItem.ReceivedQuantity) {
		before := orderItem.ReceivedQuantity
		if err := ReconcileOrderItemReceipt(tx, orderItem, receivedQuantity); err != nil {
			return nil, err
		}
		changes = append(changes, fieldChange{"received_quantity", before, receivedQuantity})
	}

	for _, change := range changes {
		if err := createHistory(tx, HistoryActionUpdate, orderItem.ID, ReferenceTypeOrderItem,
			change.Field, change.Before, change.After, TriggeredByUser, ""); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

func GetOrderItem(ctx context.Context, id int) (*OrderItem, error) {
	return utils.FetchModel[OrderItem](ctx, id, "Item")
}

// UpdateOrderItem applies a partial update to one line item and re-derives the
// parent order's status from the new line-item state.
func UpdateOrderItem(ctx context.Context, id int, input *UpdateOrderItemInput) (*OrderItem, error) {
	db := config.GetDB()

	orderItem, err := utils.FetchModel[OrderItem](ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := utils.FetchModel[Order](ctx, orderItem.OrderId)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, utils.Invalidf("cannot modify line items of a %s order", order.Status)
	}

	tx := db.Begin().WithContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if _, err := applyOrderItemChangesTx(tx, orderItem, input); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := DeriveOrderStatus(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return orderItem, nil
}
