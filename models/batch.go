package models

import (
	"context"
	"fmt"

	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
)

// BatchOperationError records one failed entry of a batch by input position.
type BatchOperationError struct {
	Index   int             `json:"index"`
	Code    utils.ErrorKind `json:"code"`
	Message string          `json:"message"`
}

// BatchResult reports a batch with per-entry outcomes. Successes commit even
// when siblings fail; each entry is isolated in its own savepoint.
type BatchResult[T any] struct {
	Items          []*T                  `json:"items"`
	Errors         []BatchOperationError `json:"errors"`
	TotalProcessed int                   `json:"total_processed"`
	SuccessCount   int                   `json:"success_count"`
	FailureCount   int                   `json:"failure_count"`
}

func (r *BatchResult[T]) recordSuccess(item *T) {
	r.Items = append(r.Items, item)
	r.SuccessCount++
}

func (r *BatchResult[T]) recordFailure(index int, err error) {
	r.Errors = append(r.Errors, BatchOperationError{
		Index:   index,
		Code:    utils.ClassifyError(err),
		Message: err.Error(),
	})
	r.FailureCount++
}

// runBatch executes fn once per entry inside a shared transaction, wrapping
// each entry in a savepoint so one failure rolls back only its own writes.
// The transaction itself commits as long as the savepoint machinery holds up.
func runBatch[T any](ctx context.Context, total int, fn func(tx *gorm.DB, index int) (*T, error)) (*BatchResult[T], error) {
	db := config.GetDB()
	result := &BatchResult[T]{TotalProcessed: total}

	tx := db.Begin().WithContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	for i := 0; i < total; i++ {
		savepoint := fmt.Sprintf("batch_entry_%d", i)
		if err := tx.SavePoint(savepoint).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		item, err := fn(tx, i)
		if err != nil {
			if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
				tx.Rollback()
				return nil, rbErr
			}
			result.recordFailure(i, err)
			continue
		}
		result.recordSuccess(item)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

// BatchCreateItems creates catalog items, reporting per-entry failures.
func BatchCreateItems(ctx context.Context, inputs []*NewItem) (*BatchResult[Item], error) {
	return runBatch(ctx, len(inputs), func(tx *gorm.DB, i int) (*Item, error) {
		input := inputs[i]
		if input == nil {
			return nil, utils.Invalidf("entry is empty")
		}
		if input.Name == "" {
			return nil, utils.Invalidf("item name is required")
		}
		if input.Quantity.IsNegative() {
			return nil, utils.Invalidf("item quantity cannot be negative")
		}

		item := Item{Name: input.Name, Sku: input.Sku, Quantity: input.Quantity}
		if err := tx.Create(&item).Error; err != nil {
			return nil, err
		}
		if input.Quantity.IsPositive() {
			activity := Activity{
				ItemId:    item.ID,
				Quantity:  input.Quantity,
				Operation: ActivityOperationInbound,
				Reason:    ActivityReasonOpeningStock,
			}
			if err := appendActivity(tx, &activity); err != nil {
				return nil, err
			}
		}
		return &item, nil
	})
}

// BatchUpdateOrderItemInput targets one line item by id.
type BatchUpdateOrderItemInput struct {
	OrderItemId int                  `json:"order_item_id" binding:"required"`
	Changes     UpdateOrderItemInput `json:"changes"`
}

// BatchUpdateOrderItems applies independent line-item updates. Each entry
// runs its own derivation inside its savepoint, so a failed entry rolls back
// its derivation along with its writes and never disturbs the siblings.
func BatchUpdateOrderItems(ctx context.Context, inputs []*BatchUpdateOrderItemInput) (*BatchResult[OrderItem], error) {
	return runBatch(ctx, len(inputs), func(tx *gorm.DB, i int) (*OrderItem, error) {
		input := inputs[i]
		if input == nil {
			return nil, utils.Invalidf("entry is empty")
		}

		var orderItem OrderItem
		if err := tx.First(&orderItem, input.OrderItemId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		var order Order
		if err := tx.First(&order, orderItem.OrderId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		if order.Status.IsTerminal() {
			return nil, utils.Invalidf("cannot modify line items of a %s order", order.Status)
		}

		if _, err := applyOrderItemChangesTx(tx, &orderItem, &input.Changes); err != nil {
			return nil, err
		}

		if err := DeriveOrderStatus(tx, &order); err != nil {
			return nil, err
		}
		return &orderItem, nil
	})
}
