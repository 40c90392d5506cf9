package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Item is a catalog item. Quantity is a cached projection of the activity
// ledger: initial value plus the sum of signed effects of all activities
// referencing the item.
type Item struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Sku       string          `gorm:"size:100;index" json:"sku"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItem struct {
	Name     string          `json:"name" binding:"required"`
	Sku      string          `json:"sku"`
	Quantity decimal.Decimal `json:"quantity"`
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {
	db := config.GetDB()

	if input.Quantity.IsNegative() {
		return nil, utils.Invalidf("item quantity cannot be negative")
	}

	item := Item{
		Name:     input.Name,
		Sku:      input.Sku,
		Quantity: input.Quantity,
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Opening stock goes through the ledger so the cached quantity stays
	// explainable from activities alone.
	if input.Quantity.IsPositive() {
		activity := Activity{
			ItemId:    item.ID,
			Quantity:  input.Quantity,
			Operation: ActivityOperationInbound,
			Reason:    ActivityReasonOpeningStock,
		}
		if err := appendActivity(tx.WithContext(ctx), &activity); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func GetItem(ctx context.Context, id int) (*Item, error) {
	return utils.FetchModel[Item](ctx, id)
}

func GetItems(ctx context.Context, name *string) ([]*Item, error) {
	db := config.GetDB()
	var results []*Item

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// AdjustItemQuantity applies a signed ledger delta to the cached stock
// counter. The counter is clamped at a floor of zero: this is a defensive
// clamp against bad legacy data, not a ledger correction, and clamping is
// logged because it means the cache has drifted from the ledger sum.
func AdjustItemQuantity(tx *gorm.DB, itemId int, delta decimal.Decimal) error {
	if tx == nil {
		return errors.New("tx is nil")
	}
	if delta.IsZero() {
		return nil
	}

	dbCtx := tx
	if config.StrictReceiptRowLocks() {
		dbCtx = dbCtx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var item Item
	if err := dbCtx.First(&item, itemId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	newQty := item.Quantity.Add(delta)
	if newQty.IsNegative() {
		config.LogWarn(config.GetLogger(), "item.go", "AdjustItemQuantity",
			"stock clamped at zero; cached quantity no longer matches ledger sum",
			map[string]any{"item_id": itemId, "delta": delta.String(), "quantity": item.Quantity.String()})
		newQty = decimal.Zero
	}

	if err := tx.Model(&item).UpdateColumn("Quantity", newQty).Error; err != nil {
		return err
	}
	return nil
}
