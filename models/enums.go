package models

import "errors"

type OrderStatus string

const (
	OrderStatusCreated            OrderStatus = "Created"
	OrderStatusPartiallyFulfilled OrderStatus = "Partially Fulfilled"
	OrderStatusFulfilled          OrderStatus = "Fulfilled"
	OrderStatusPartiallyReceived  OrderStatus = "Partially Received"
	OrderStatusReceived           OrderStatus = "Received"
	OrderStatusOverdue            OrderStatus = "Overdue"
	OrderStatusCancelled          OrderStatus = "Cancelled"
)

// statusRanks mirrors the status as an integer so lists can sort by lifecycle
// progress without string comparison.
var statusRanks = map[OrderStatus]int{
	OrderStatusCreated:            1,
	OrderStatusOverdue:            2,
	OrderStatusPartiallyFulfilled: 3,
	OrderStatusFulfilled:          4,
	OrderStatusPartiallyReceived:  5,
	OrderStatusReceived:           6,
	OrderStatusCancelled:          7,
}

func (s OrderStatus) Rank() int {
	return statusRanks[s]
}

func (s OrderStatus) IsValid() bool {
	_, ok := statusRanks[s]
	return ok
}

// Received and Cancelled are terminal: no transition or derivation may leave
// them.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusReceived || s == OrderStatusCancelled
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.IsValid() {
		return "", errors.New("invalid order status")
	}
	return status, nil
}

type ActivityOperation string

const (
	ActivityOperationInbound  ActivityOperation = "INBOUND"
	ActivityOperationOutbound ActivityOperation = "OUTBOUND"
)

type ActivityReason string

const (
	ActivityReasonOrderReceived    ActivityReason = "ORDER_RECEIVED"
	ActivityReasonOpeningStock     ActivityReason = "OPENING_STOCK"
	ActivityReasonManualAdjustment ActivityReason = "MANUAL_ADJUSTMENT"
)

// TriggeredBy distinguishes user-driven writes from system-derived ones in the
// audit trail.
type TriggeredBy string

const (
	TriggeredByUser   TriggeredBy = "User"
	TriggeredBySystem TriggeredBy = "System"
)

type RecurringTerms string

const (
	RecurringTermsDaily   RecurringTerms = "D"
	RecurringTermsWeekly  RecurringTerms = "W"
	RecurringTermsMonthly RecurringTerms = "M"
	RecurringTermsYearly  RecurringTerms = "Y"
)

func (t RecurringTerms) IsValid() bool {
	switch t {
	case RecurringTermsDaily, RecurringTermsWeekly, RecurringTermsMonthly, RecurringTermsYearly:
		return true
	}
	return false
}
