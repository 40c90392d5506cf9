package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSignedQuantity(t *testing.T) {
	inbound := Activity{Quantity: decimal.NewFromInt(7), Operation: ActivityOperationInbound}
	if !inbound.SignedQuantity().Equal(decimal.NewFromInt(7)) {
		t.Fatalf("inbound signed quantity = %s, want 7", inbound.SignedQuantity())
	}
	outbound := Activity{Quantity: decimal.NewFromInt(7), Operation: ActivityOperationOutbound}
	if !outbound.SignedQuantity().Equal(decimal.NewFromInt(-7)) {
		t.Fatalf("outbound signed quantity = %s, want -7", outbound.SignedQuantity())
	}
}

func TestSumActivityEffects(t *testing.T) {
	activities := []*Activity{
		{Quantity: decimal.NewFromInt(20), Operation: ActivityOperationInbound},
		{Quantity: decimal.NewFromInt(10), Operation: ActivityOperationOutbound},
		nil,
		{Quantity: decimal.NewFromInt(6), Operation: ActivityOperationOutbound},
	}
	if got := SumActivityEffects(activities); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("sum = %s, want 4", got)
	}
	if got := SumActivityEffects(nil); !got.IsZero() {
		t.Fatalf("empty sum = %s, want 0", got)
	}
}

// Walks the receipt ledger through a sequence of targets and checks that the
// delta written at each step leaves the ledger sum equal to the last target.
// Repeating a target must produce no entry at all.
func TestReceiptDeltaSequence(t *testing.T) {
	targets := []int64{20, 10, 10, 4, 0, 15}
	wantEntries := []bool{true, true, false, true, true, true}

	var ledger []*Activity
	for i, raw := range targets {
		target := decimal.NewFromInt(raw)
		delta := target.Sub(SumActivityEffects(ledger))

		if delta.IsZero() {
			if wantEntries[i] {
				t.Fatalf("step %d: expected a ledger entry for target %s", i, target)
			}
			continue
		}
		if !wantEntries[i] {
			t.Fatalf("step %d: unexpected ledger entry with delta %s", i, delta)
		}

		operation := ActivityOperationInbound
		if delta.IsNegative() {
			operation = ActivityOperationOutbound
		}
		ledger = append(ledger, &Activity{
			Quantity:  delta.Abs(),
			Operation: operation,
			Reason:    ActivityReasonOrderReceived,
		})

		if got := SumActivityEffects(ledger); !got.Equal(target) {
			t.Fatalf("step %d: ledger sum = %s, want %s", i, got, target)
		}
	}
}

func TestActivityBeforeSaveRejectsBadRows(t *testing.T) {
	zero := Activity{Quantity: decimal.Zero, Operation: ActivityOperationInbound}
	if err := zero.BeforeSave(nil); err == nil {
		t.Error("zero quantity should be rejected")
	}
	negative := Activity{Quantity: decimal.NewFromInt(-3), Operation: ActivityOperationInbound}
	if err := negative.BeforeSave(nil); err == nil {
		t.Error("negative quantity should be rejected")
	}
	badOp := Activity{Quantity: decimal.NewFromInt(3), Operation: "SIDEWAYS"}
	if err := badOp.BeforeSave(nil); err == nil {
		t.Error("unknown operation should be rejected")
	}
	ok := Activity{Quantity: decimal.NewFromInt(3), Operation: ActivityOperationOutbound}
	if err := ok.BeforeSave(nil); err != nil {
		t.Errorf("valid activity rejected: %v", err)
	}
}

func TestActivityIsAppendOnly(t *testing.T) {
	a := Activity{Quantity: decimal.NewFromInt(1), Operation: ActivityOperationInbound}
	if err := a.BeforeUpdate(nil); err == nil {
		t.Error("updates must be rejected")
	}
	if err := a.BeforeDelete(nil); err == nil {
		t.Error("deletes must be rejected")
	}
}

func TestOrderItemReceiptPredicates(t *testing.T) {
	full := receivedItem(10, 10)
	if !full.IsFullyReceived() || full.IsPartiallyReceived() {
		t.Error("10/10 should be fully received")
	}
	partial := receivedItem(10, 4)
	if partial.IsFullyReceived() || !partial.IsPartiallyReceived() {
		t.Error("4/10 should be partially received")
	}
	none := pendingItem()
	if none.IsFullyReceived() || none.IsPartiallyReceived() {
		t.Error("0/10 should be neither")
	}
}

func TestOrderItemTotalAmount(t *testing.T) {
	item := OrderItem{
		OrderedQuantity: decimal.NewFromInt(10),
		Price:           decimal.NewFromInt(100),
		Icms:            decimal.NewFromInt(10),
		Ipi:             decimal.NewFromInt(5),
	}
	// 10 * 100 * 1.15
	if got := item.TotalAmount(); !got.Equal(decimal.NewFromInt(1150)) {
		t.Fatalf("total = %s, want 1150", got)
	}
}
