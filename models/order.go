package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
)

// Order is a purchase order against a supplier. Status and StatusOrder are
// kept in lockstep; StatusOrder exists so listings can sort by lifecycle
// progress.
type Order struct {
	ID              int         `gorm:"primary_key" json:"id"`
	Status          OrderStatus `gorm:"type:enum('Created','Partially Fulfilled','Fulfilled','Partially Received','Received','Overdue','Cancelled');not null;default:'Created'" json:"status"`
	StatusOrder     int         `gorm:"index;not null;default:1" json:"status_order"`
	SupplierId      int         `gorm:"index;not null" json:"supplier_id"`
	Forecast        *time.Time  `gorm:"index" json:"forecast"`
	OrderScheduleId *int        `gorm:"index" json:"order_schedule_id"`
	Description     string      `gorm:"type:text" json:"description"`
	Items           []OrderItem `gorm:"foreignKey:OrderId" json:"order_items"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TotalAmount sums the line totals.
func (o Order) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalAmount())
	}
	return total
}

type NewOrder struct {
	SupplierId      int            `json:"supplier_id" binding:"required"`
	Forecast        *time.Time     `json:"forecast"`
	OrderScheduleId *int           `json:"order_schedule_id"`
	Description     string         `json:"description"`
	Status          OrderStatus    `json:"status"`
	Items           []NewOrderItem `json:"order_items" binding:"required,dive"`
}

// CreateOrder creates an order in Created and, when the input asks for a
// further status, walks the transition machinery inside the same transaction.
// This keeps a single code path for all status side effects.
func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	db := config.GetDB()

	if len(input.Items) == 0 {
		return nil, utils.Invalidf("order needs at least one line item")
	}
	requested := input.Status
	if requested == "" {
		requested = OrderStatusCreated
	}
	if !requested.IsValid() {
		return nil, utils.Invalidf("invalid order status %q", string(requested))
	}
	if requested == OrderStatusOverdue {
		return nil, utils.Invalidf("orders cannot be created as Overdue")
	}
	if input.OrderScheduleId != nil {
		if err := utils.ValidateResourceId[OrderSchedule](ctx, *input.OrderScheduleId); err != nil {
			return nil, err
		}
	}

	order := Order{
		Status:          OrderStatusCreated,
		StatusOrder:     OrderStatusCreated.Rank(),
		SupplierId:      input.SupplierId,
		Forecast:        input.Forecast,
		OrderScheduleId: input.OrderScheduleId,
		Description:     input.Description,
	}

	tx := db.Begin().WithContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if _, err := createOrderTx(tx, &order, input.Items); err != nil {
		tx.Rollback()
		return nil, err
	}

	if requested != OrderStatusCreated {
		if requested == OrderStatusReceived {
			fulfillTime := order.CreatedAt
			if err := transitionOrderStatusTx(tx, &order, OrderStatusFulfilled, TriggeredBySystem,
				&fulfillTime, "synthetic fulfillment inserted before receipt"); err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := transitionOrderStatusTx(tx, &order, OrderStatusReceived, TriggeredByUser, nil, ""); err != nil {
				tx.Rollback()
				return nil, err
			}
		} else {
			if !CanTransition(OrderStatusCreated, requested) {
				tx.Rollback()
				return nil, &utils.InvalidTransitionError{From: string(OrderStatusCreated), To: string(requested)}
			}
			if err := transitionOrderStatusTx(tx, &order, requested, TriggeredByUser, nil, ""); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// createOrderTx inserts the order header and its lines. Shared by CreateOrder
// and the recurrence trigger.
func createOrderTx(tx *gorm.DB, order *Order, items []NewOrderItem) (*Order, error) {
	if err := tx.Create(order).Error; err != nil {
		return nil, err
	}
	for i := range items {
		orderItem, err := createOrderItemTx(tx, order, &items[i])
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *orderItem)
	}
	if err := createHistory(tx, HistoryActionCreate, order.ID, ReferenceTypeOrder,
		"", nil, order, TriggeredByUser, ""); err != nil {
		return nil, err
	}
	return order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	return utils.FetchModel[Order](ctx, id, "Items", "Items.Item")
}

type OrderFilter struct {
	SupplierId *int
	Status     *OrderStatus
	Overdue    *bool
}

func GetOrders(ctx context.Context, filter *OrderFilter) ([]*Order, error) {
	db := config.GetDB()
	var results []*Order

	dbCtx := db.WithContext(ctx).Preload("Items")
	if filter != nil {
		if filter.SupplierId != nil && *filter.SupplierId > 0 {
			dbCtx = dbCtx.Where("supplier_id = ?", *filter.SupplierId)
		}
		if filter.Status != nil && *filter.Status != "" {
			dbCtx = dbCtx.Where("status = ?", *filter.Status)
		}
		if filter.Overdue != nil && *filter.Overdue {
			dbCtx = dbCtx.Where("forecast < ?", time.Now()).
				Where("status NOT IN ?", []OrderStatus{
					OrderStatusPartiallyReceived, OrderStatusReceived, OrderStatusCancelled,
				})
		}
	}
	if err := dbCtx.Order("status_order, created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateOrderItemPatch is one line entry of an order update: DetailId selects
// an existing line (absent for new lines), IsDeletedItem marks removal.
type UpdateOrderItemPatch struct {
	DetailId      *int                  `json:"detail_id"`
	IsDeletedItem bool                  `json:"is_deleted_item"`
	New           *NewOrderItem         `json:"new"`
	Changes       *UpdateOrderItemInput `json:"changes"`
}

type UpdateOrderInput struct {
	SupplierId  *int                   `json:"supplier_id"`
	Forecast    *time.Time             `json:"forecast"`
	Description *string                `json:"description"`
	Items       []UpdateOrderItemPatch `json:"order_items"`
}

// UpdateOrder edits the header and line set of a non-terminal order, then
// re-derives status from the resulting line-item state.
func UpdateOrder(ctx context.Context, id int, input *UpdateOrderInput) (*Order, error) {
	db := config.GetDB()

	order, err := utils.FetchModel[Order](ctx, id, "Items")
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, utils.Invalidf("cannot modify a %s order", order.Status)
	}

	tx := db.Begin().WithContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	headerUpdates := map[string]interface{}{}
	if input.SupplierId != nil && *input.SupplierId != order.SupplierId {
		if *input.SupplierId <= 0 {
			tx.Rollback()
			return nil, utils.Invalidf("supplier id must be positive")
		}
		headerUpdates["SupplierId"] = *input.SupplierId
	}
	if input.Forecast != nil {
		headerUpdates["Forecast"] = input.Forecast
	}
	if input.Description != nil {
		headerUpdates["Description"] = *input.Description
	}
	if len(headerUpdates) > 0 {
		if err := tx.Model(order).Updates(headerUpdates).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	for i := range input.Items {
		patch := &input.Items[i]
		switch {
		case patch.DetailId == nil:
			if patch.New == nil {
				tx.Rollback()
				return nil, utils.Invalidf("new line item entry is missing its fields")
			}
			if _, err := createOrderItemTx(tx, order, patch.New); err != nil {
				tx.Rollback()
				return nil, err
			}
		default:
			orderItem, err := findOrderLine(order, *patch.DetailId)
			if err != nil {
				tx.Rollback()
				return nil, err
			}
			if patch.IsDeletedItem {
				if err := deleteOrderItemTx(tx, orderItem); err != nil {
					tx.Rollback()
					return nil, err
				}
				continue
			}
			if patch.Changes == nil {
				continue
			}
			if _, err := applyOrderItemChangesTx(tx, orderItem, patch.Changes); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := DeriveOrderStatus(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetOrder(ctx, id)
}

func findOrderLine(order *Order, detailId int) (*OrderItem, error) {
	for i := range order.Items {
		if order.Items[i].ID == detailId {
			return &order.Items[i], nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

// DeleteOrder removes an order. Received orders are immutable; any partial
// receipts on other orders are reversed through the ledger first so catalog
// stock stays explainable.
func DeleteOrder(ctx context.Context, id int) error {
	db := config.GetDB()

	order, err := utils.FetchModel[Order](ctx, id, "Items")
	if err != nil {
		return err
	}
	if order.Status == OrderStatusReceived {
		return utils.Invalidf("cannot delete a Received order")
	}

	tx := db.Begin().WithContext(ctx)
	for i := range order.Items {
		if err := deleteOrderItemTx(tx, &order.Items[i]); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Delete(&Order{}, order.ID).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := createHistory(tx, HistoryActionDelete, order.ID, ReferenceTypeOrder,
		"", order, nil, TriggeredByUser, ""); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
