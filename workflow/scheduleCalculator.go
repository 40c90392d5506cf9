package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/stocklinkhq/stocklink_backend/models"
)

// StandingOrderCalculator is the default recurrence policy: the next order is
// a copy of the one that just completed, with the forecast pushed out by the
// schedule's frequency.
type StandingOrderCalculator struct{}

func (StandingOrderCalculator) ComputeNextOrder(ctx context.Context, schedule *models.OrderSchedule, received *models.Order) (*models.NewOrder, error) {
	if schedule == nil || received == nil {
		return nil, fmt.Errorf("schedule and received order are required")
	}
	if len(received.Items) == 0 {
		// Nothing to reorder; pause the series without failing it.
		return nil, nil
	}

	forecast := schedule.NextRunFrom(time.Now().UTC())
	draft := models.NewOrder{
		SupplierId:  schedule.SupplierId,
		Forecast:    &forecast,
		Description: fmt.Sprintf("Auto-reorder after order #%d", received.ID),
	}
	for _, item := range received.Items {
		draft.Items = append(draft.Items, models.NewOrderItem{
			ItemId:                   item.ItemId,
			TemporaryItemDescription: item.TemporaryItemDescription,
			OrderedQuantity:          item.OrderedQuantity,
			Price:                    item.Price,
			Icms:                     item.Icms,
			Ipi:                      item.Ipi,
		})
	}
	return &draft, nil
}

// InstallDefaultCalculator wires the standing-order policy into the models
// package. Called once at startup.
func InstallDefaultCalculator() {
	models.SetNextOrderCalculator(StandingOrderCalculator{})
}
