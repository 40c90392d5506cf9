package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func fulfilledItem() OrderItem {
	now := time.Now()
	return OrderItem{
		OrderedQuantity: decimal.NewFromInt(10),
		FulfilledAt:     &now,
	}
}

func receivedItem(ordered, received int64) OrderItem {
	now := time.Now()
	item := OrderItem{
		OrderedQuantity:  decimal.NewFromInt(ordered),
		ReceivedQuantity: decimal.NewFromInt(received),
		FulfilledAt:      &now,
	}
	if received > 0 {
		item.ReceivedAt = &now
	}
	return item
}

func pendingItem() OrderItem {
	return OrderItem{OrderedQuantity: decimal.NewFromInt(10)}
}

func TestDeriveFulfillmentStatus(t *testing.T) {
	cases := []struct {
		name    string
		current OrderStatus
		items   []OrderItem
		want    OrderStatus
		changed bool
	}{
		{"all fulfilled promotes", OrderStatusCreated, []OrderItem{fulfilledItem(), fulfilledItem()}, OrderStatusFulfilled, true},
		{"some fulfilled promotes to partial", OrderStatusCreated, []OrderItem{fulfilledItem(), pendingItem()}, OrderStatusPartiallyFulfilled, true},
		{"none fulfilled keeps created", OrderStatusCreated, []OrderItem{pendingItem()}, OrderStatusCreated, false},
		{"fallback to created after unfulfill", OrderStatusFulfilled, []OrderItem{pendingItem(), pendingItem()}, OrderStatusCreated, true},
		{"partial fallback to created", OrderStatusPartiallyFulfilled, []OrderItem{pendingItem()}, OrderStatusCreated, true},
		{"overdue is sticky when nothing fulfilled", OrderStatusOverdue, []OrderItem{pendingItem()}, OrderStatusOverdue, false},
		{"overdue promotes when fulfilled", OrderStatusOverdue, []OrderItem{fulfilledItem()}, OrderStatusFulfilled, true},
		{"receiving phase is untouched", OrderStatusPartiallyReceived, []OrderItem{pendingItem()}, OrderStatusPartiallyReceived, false},
		{"terminal received untouched", OrderStatusReceived, []OrderItem{pendingItem()}, OrderStatusReceived, false},
		{"terminal cancelled untouched", OrderStatusCancelled, []OrderItem{fulfilledItem()}, OrderStatusCancelled, false},
		{"no items no change", OrderStatusCreated, nil, OrderStatusCreated, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := deriveFulfillmentStatus(tc.current, countLineItems(tc.items))
			if got != tc.want || changed != tc.changed {
				t.Fatalf("deriveFulfillmentStatus(%s) = (%s, %v), want (%s, %v)", tc.current, got, changed, tc.want, tc.changed)
			}
		})
	}
}

func TestDeriveReceiptStatus(t *testing.T) {
	cases := []struct {
		name    string
		current OrderStatus
		items   []OrderItem
		want    OrderStatus
		changed bool
	}{
		{"all received promotes", OrderStatusFulfilled, []OrderItem{receivedItem(10, 10), receivedItem(5, 5)}, OrderStatusReceived, true},
		{"over-received still counts as full", OrderStatusFulfilled, []OrderItem{receivedItem(10, 10)}, OrderStatusReceived, true},
		{"partial receipt promotes", OrderStatusFulfilled, []OrderItem{receivedItem(10, 4), pendingItem()}, OrderStatusPartiallyReceived, true},
		{"one full one pending is partial", OrderStatusFulfilled, []OrderItem{receivedItem(10, 10), pendingItem()}, OrderStatusPartiallyReceived, true},
		{"reversal falls back to fulfilled", OrderStatusPartiallyReceived, []OrderItem{fulfilledItem(), fulfilledItem()}, OrderStatusFulfilled, true},
		{"reversal falls back to partially fulfilled", OrderStatusPartiallyReceived, []OrderItem{fulfilledItem(), pendingItem()}, OrderStatusPartiallyFulfilled, true},
		{"reversal falls back to created", OrderStatusPartiallyReceived, []OrderItem{pendingItem()}, OrderStatusCreated, true},
		{"no receipts no change", OrderStatusFulfilled, []OrderItem{fulfilledItem()}, OrderStatusFulfilled, false},
		{"terminal cancelled untouched", OrderStatusCancelled, []OrderItem{receivedItem(10, 10)}, OrderStatusCancelled, false},
		{"no items no change", OrderStatusCreated, nil, OrderStatusCreated, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := deriveReceiptStatus(tc.current, countLineItems(tc.items))
			if got != tc.want || changed != tc.changed {
				t.Fatalf("deriveReceiptStatus(%s) = (%s, %v), want (%s, %v)", tc.current, got, changed, tc.want, tc.changed)
			}
		})
	}
}

func TestDerivationIsMonotonicWithinCall(t *testing.T) {
	// A single line-item change can promote fulfillment and receipt in the
	// same pass, but neither derivation may move the status backwards past
	// what the other produced.
	items := []OrderItem{receivedItem(10, 10)}
	counts := countLineItems(items)

	status := OrderStatusCreated
	if next, changed := deriveFulfillmentStatus(status, counts); changed {
		if next.Rank() < status.Rank() {
			t.Fatalf("fulfillment derivation moved backwards: %s -> %s", status, next)
		}
		status = next
	}
	if next, changed := deriveReceiptStatus(status, counts); changed {
		if next.Rank() < status.Rank() {
			t.Fatalf("receipt derivation moved backwards: %s -> %s", status, next)
		}
		status = next
	}
	if status != OrderStatusReceived {
		t.Fatalf("expected Received after both passes, got %s", status)
	}
}

func TestCanTransitionGraph(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{OrderStatusCreated, OrderStatusPartiallyFulfilled},
		{OrderStatusCreated, OrderStatusFulfilled},
		{OrderStatusCreated, OrderStatusCancelled},
		{OrderStatusPartiallyFulfilled, OrderStatusFulfilled},
		{OrderStatusPartiallyFulfilled, OrderStatusReceived},
		{OrderStatusFulfilled, OrderStatusPartiallyReceived},
		{OrderStatusFulfilled, OrderStatusReceived},
		{OrderStatusPartiallyReceived, OrderStatusReceived},
		{OrderStatusOverdue, OrderStatusReceived},
		{OrderStatusOverdue, OrderStatusCancelled},
	}
	for _, edge := range allowed {
		if !CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be allowed", edge.from, edge.to)
		}
	}

	denied := []struct{ from, to OrderStatus }{
		// Created -> Received is rewritten as a two-step, never a direct edge.
		{OrderStatusCreated, OrderStatusReceived},
		{OrderStatusReceived, OrderStatusCreated},
		{OrderStatusReceived, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusCreated},
		{OrderStatusFulfilled, OrderStatusCreated},
		{OrderStatusCreated, OrderStatusOverdue},
		{OrderStatusFulfilled, OrderStatusOverdue},
	}
	for _, edge := range denied {
		if CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be denied", edge.from, edge.to)
		}
	}
}

func TestStatusRanksFollowLifecycle(t *testing.T) {
	order := []OrderStatus{
		OrderStatusCreated,
		OrderStatusOverdue,
		OrderStatusPartiallyFulfilled,
		OrderStatusFulfilled,
		OrderStatusPartiallyReceived,
		OrderStatusReceived,
		OrderStatusCancelled,
	}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("rank of %s (%d) should exceed %s (%d)", order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}
	if OrderStatus("Bogus").IsValid() {
		t.Error("unknown status should not be valid")
	}
	if !OrderStatusReceived.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Error("Received and Cancelled are terminal")
	}
	if OrderStatusOverdue.IsTerminal() {
		t.Error("Overdue is not terminal")
	}
}
