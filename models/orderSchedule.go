package models

import (
	"context"
	"time"

	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"gorm.io/gorm"
)

// OrderSchedule is a recurring-order definition. Orders created from a
// schedule carry its id; when such an order is fully received the next order
// in the series is created automatically.
type OrderSchedule struct {
	ID             int            `gorm:"primary_key" json:"id"`
	SupplierId     int            `gorm:"index;not null" json:"supplier_id"`
	Frequency      RecurringTerms `gorm:"type:enum('D','W','M','Y');not null" json:"frequency"`
	FrequencyCount int            `gorm:"not null;default:1" json:"frequency_count"`
	IsActive       *bool          `gorm:"not null;default:true" json:"is_active"`
	NextRun        *time.Time     `json:"next_run"`
	LastRun        *time.Time     `json:"last_run"`
	LastRunId      *int           `gorm:"index" json:"last_run_id"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s OrderSchedule) Active() bool {
	return s.IsActive == nil || *s.IsActive
}

type NewOrderSchedule struct {
	SupplierId     int            `json:"supplier_id" binding:"required"`
	Frequency      RecurringTerms `json:"frequency" binding:"required"`
	FrequencyCount int            `json:"frequency_count"`
}

func CreateOrderSchedule(ctx context.Context, input *NewOrderSchedule) (*OrderSchedule, error) {
	db := config.GetDB()

	if !input.Frequency.IsValid() {
		return nil, utils.Invalidf("invalid recurring frequency %q", string(input.Frequency))
	}
	frequencyCount := input.FrequencyCount
	if frequencyCount <= 0 {
		frequencyCount = 1
	}

	schedule := OrderSchedule{
		SupplierId:     input.SupplierId,
		Frequency:      input.Frequency,
		FrequencyCount: frequencyCount,
		IsActive:       utils.BoolPtr(true),
	}
	if err := db.WithContext(ctx).Create(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func GetOrderSchedule(ctx context.Context, id int) (*OrderSchedule, error) {
	return utils.FetchModel[OrderSchedule](ctx, id)
}

func GetOrderSchedules(ctx context.Context, activeOnly bool) ([]*OrderSchedule, error) {
	db := config.GetDB()
	var results []*OrderSchedule

	dbCtx := db.WithContext(ctx)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func SetOrderScheduleActive(ctx context.Context, id int, active bool) (*OrderSchedule, error) {
	db := config.GetDB()

	schedule, err := utils.FetchModel[OrderSchedule](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(schedule).Update("IsActive", active).Error; err != nil {
		return nil, err
	}
	schedule.IsActive = utils.BoolPtr(active)
	return schedule, nil
}

// NextOrderCalculator builds the draft for the next order in a recurring
// series from the order that just completed. A nil draft with nil error means
// the series should pause without failing.
type NextOrderCalculator interface {
	ComputeNextOrder(ctx context.Context, schedule *OrderSchedule, received *Order) (*NewOrder, error)
}

var nextOrderCalculator NextOrderCalculator

// SetNextOrderCalculator installs the recurrence policy. Wired at startup;
// the models package stays free of a dependency on workflow.
func SetNextOrderCalculator(calculator NextOrderCalculator) {
	nextOrderCalculator = calculator
}

// NextRunFrom steps from one run time to the next by the schedule's
// frequency.
func (s OrderSchedule) NextRunFrom(from time.Time) time.Time {
	count := s.FrequencyCount
	if count <= 0 {
		count = 1
	}
	switch s.Frequency {
	case RecurringTermsDaily:
		return from.AddDate(0, 0, count)
	case RecurringTermsWeekly:
		return from.AddDate(0, 0, 7*count)
	case RecurringTermsMonthly:
		return from.AddDate(0, count, 0)
	case RecurringTermsYearly:
		return from.AddDate(count, 0, 0)
	}
	return from
}

// fireOrderRecurrence creates the next order of a recurring series after the
// triggering order reached Received. Failures are logged and swallowed: a
// broken recurrence must never roll back a completed receipt.
func fireOrderRecurrence(tx *gorm.DB, order *Order) {
	logger := config.GetLogger()

	if order.OrderScheduleId == nil {
		return
	}
	ctx := tx.Statement.Context

	var schedule OrderSchedule
	if err := tx.First(&schedule, *order.OrderScheduleId).Error; err != nil {
		config.LogError(logger, "orderSchedule.go", "fireOrderRecurrence", "fetch schedule",
			map[string]any{"order_id": order.ID, "order_schedule_id": *order.OrderScheduleId}, err)
		return
	}
	if !schedule.Active() {
		return
	}

	calculator := nextOrderCalculator
	if calculator == nil {
		config.LogWarn(logger, "orderSchedule.go", "fireOrderRecurrence",
			"no next-order calculator installed; recurrence skipped",
			map[string]any{"order_id": order.ID, "schedule_id": schedule.ID})
		return
	}

	draft, err := calculator.ComputeNextOrder(ctx, &schedule, order)
	if err != nil {
		config.LogError(logger, "orderSchedule.go", "fireOrderRecurrence", "compute next order",
			map[string]any{"order_id": order.ID, "schedule_id": schedule.ID}, err)
		return
	}
	if draft == nil {
		return
	}
	draft.OrderScheduleId = &schedule.ID

	// The recurrence writes several rows (header, lines, bookkeeping). Fence
	// them behind a savepoint so a mid-way failure is rolled back whole and
	// the receipt commits without a half-created auto-reorder.
	const savepoint = "order_recurrence"
	if err := tx.SavePoint(savepoint).Error; err != nil {
		config.LogError(logger, "orderSchedule.go", "fireOrderRecurrence", "create savepoint",
			map[string]any{"order_id": order.ID, "schedule_id": schedule.ID}, err)
		return
	}

	next := Order{
		Status:          OrderStatusCreated,
		StatusOrder:     OrderStatusCreated.Rank(),
		SupplierId:      draft.SupplierId,
		Forecast:        draft.Forecast,
		OrderScheduleId: draft.OrderScheduleId,
		Description:     draft.Description,
	}
	if _, err := createOrderTx(tx, &next, draft.Items); err != nil {
		if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
			config.LogError(logger, "orderSchedule.go", "fireOrderRecurrence", "rollback to savepoint",
				map[string]any{"order_id": order.ID, "schedule_id": schedule.ID}, rbErr)
		}
		config.LogError(logger, "orderSchedule.go", "fireOrderRecurrence", "create next order",
			map[string]any{"order_id": order.ID, "schedule_id": schedule.ID}, err)
		return
	}

	now := time.Now().UTC()
	nextRun := schedule.NextRunFrom(now)
	if err := tx.Model(&schedule).Updates(map[string]interface{}{
		"LastRun":   &now,
		"LastRunId": &next.ID,
		"NextRun":   &nextRun,
	}).Error; err != nil {
		if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
			config.LogError(logger, "orderSchedule.go", "fireOrderRecurrence", "rollback to savepoint",
				map[string]any{"schedule_id": schedule.ID, "next_order_id": next.ID}, rbErr)
		}
		config.LogError(logger, "orderSchedule.go", "fireOrderRecurrence", "update schedule bookkeeping",
			map[string]any{"schedule_id": schedule.ID, "next_order_id": next.ID}, err)
	}
}
