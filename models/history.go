package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
)

// History is the audit trail. Every status transition and field change is
// recorded with who (or what) triggered it; derivation and other automatic
// writes carry TriggeredBy=System so operators can separate user intent from
// engine behavior.
type History struct {
	ID            int         `gorm:"primary_key" json:"id"`
	ActionType    string      `gorm:"size:10;not null" json:"action_type"`
	Field         string      `gorm:"size:100" json:"field"`
	Before        string      `gorm:"type:text" json:"before"`
	After         string      `gorm:"type:text" json:"after"`
	Description   string      `gorm:"type:text" json:"description"`
	ReferenceID   int         `gorm:"index;not null" json:"reference_id"`
	ReferenceType string      `gorm:"size:255;not null" json:"reference_type"`
	TriggeredBy   TriggeredBy `gorm:"type:enum('User','System');not null;default:User" json:"triggered_by"`
	UserId        int         `gorm:"index" json:"user_id"`
	UserName      string      `gorm:"size:100" json:"user_name"`
	CorrelationId string      `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

const (
	HistoryActionCreate = "CREATE"
	HistoryActionUpdate = "UPDATE"
	HistoryActionDelete = "DELETE"

	HistoryFieldStatusTransition = "status_transition"

	ReferenceTypeOrder     = "Order"
	ReferenceTypeOrderItem = "OrderItem"
)

func marshalHistoryValue(value interface{}) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	if s, ok := value.(fmt.Stringer); ok {
		return s.String()
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}

// createHistory writes one audit row inside the caller's transaction. User
// identity is taken from the transaction context when present; System rows may
// legitimately have none.
func createHistory(tx *gorm.DB, actionType string, referenceId int, referenceType string,
	field string, before interface{}, after interface{}, triggeredBy TriggeredBy, description string) error {
	if tx == nil {
		return errors.New("tx is nil")
	}

	ctx := tx.Statement.Context
	history := History{
		ActionType:    actionType,
		Field:         field,
		Before:        marshalHistoryValue(before),
		After:         marshalHistoryValue(after),
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		TriggeredBy:   triggeredBy,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		history.UserId = userId
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		history.UserName = userName
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		history.CorrelationId = correlationId
	}

	return tx.Create(&history).Error
}

// saveStatusTransition is the audit entry point for order status changes, both
// user-requested and derived.
func saveStatusTransition(tx *gorm.DB, orderId int, oldStatus OrderStatus, newStatus OrderStatus,
	triggeredBy TriggeredBy, description string) error {
	return createHistory(tx, HistoryActionUpdate, orderId, ReferenceTypeOrder,
		HistoryFieldStatusTransition, string(oldStatus), string(newStatus), triggeredBy, description)
}

func GetHistories(ctx context.Context, referenceId int, referenceType string) ([]*History, error) {
	db := config.GetDB()
	var results []*History

	dbCtx := db.WithContext(ctx).Where("reference_id = ?", referenceId)
	if referenceType != "" {
		dbCtx = dbCtx.Where("reference_type = ?", referenceType)
	}
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
