package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklinkhq/stocklink_backend/models"
)

func TestStandingOrderCalculatorCopiesLines(t *testing.T) {
	schedule := &models.OrderSchedule{
		ID:             3,
		SupplierId:     42,
		Frequency:      models.RecurringTermsWeekly,
		FrequencyCount: 2,
	}
	received := &models.Order{
		ID:         17,
		SupplierId: 42,
		Items: []models.OrderItem{
			{ItemId: 1, OrderedQuantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(5)},
			{TemporaryItemDescription: "sample goods", OrderedQuantity: decimal.NewFromInt(2)},
		},
	}

	draft, err := StandingOrderCalculator{}.ComputeNextOrder(context.Background(), schedule, received)
	if err != nil {
		t.Fatalf("ComputeNextOrder: %v", err)
	}
	if draft == nil {
		t.Fatal("expected a draft order")
	}
	if draft.SupplierId != 42 {
		t.Errorf("supplier = %d, want 42", draft.SupplierId)
	}
	if len(draft.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(draft.Items))
	}
	if draft.Items[0].ItemId != 1 || !draft.Items[0].OrderedQuantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("first line not copied: %+v", draft.Items[0])
	}
	if draft.Items[1].TemporaryItemDescription != "sample goods" {
		t.Errorf("temporary line not copied: %+v", draft.Items[1])
	}
	if draft.Forecast == nil || !draft.Forecast.After(time.Now()) {
		t.Error("forecast should be pushed into the future")
	}
}

func TestStandingOrderCalculatorPausesOnEmptyOrder(t *testing.T) {
	schedule := &models.OrderSchedule{ID: 1, SupplierId: 1, Frequency: models.RecurringTermsDaily}
	draft, err := StandingOrderCalculator{}.ComputeNextOrder(context.Background(), schedule, &models.Order{ID: 9})
	if err != nil {
		t.Fatalf("ComputeNextOrder: %v", err)
	}
	if draft != nil {
		t.Fatal("empty order should pause the series, not produce a draft")
	}
}

func TestStandingOrderCalculatorRequiresInputs(t *testing.T) {
	if _, err := (StandingOrderCalculator{}).ComputeNextOrder(context.Background(), nil, nil); err == nil {
		t.Fatal("nil inputs should error")
	}
}
