package models

import (
	"testing"
	"time"
)

func TestNextRunFrom(t *testing.T) {
	from := time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		schedule OrderSchedule
		want     time.Time
	}{
		{"daily", OrderSchedule{Frequency: RecurringTermsDaily, FrequencyCount: 1}, from.AddDate(0, 0, 1)},
		{"every 3 days", OrderSchedule{Frequency: RecurringTermsDaily, FrequencyCount: 3}, from.AddDate(0, 0, 3)},
		{"weekly", OrderSchedule{Frequency: RecurringTermsWeekly, FrequencyCount: 1}, from.AddDate(0, 0, 7)},
		{"biweekly", OrderSchedule{Frequency: RecurringTermsWeekly, FrequencyCount: 2}, from.AddDate(0, 0, 14)},
		{"monthly rolls over end of month", OrderSchedule{Frequency: RecurringTermsMonthly, FrequencyCount: 1}, from.AddDate(0, 1, 0)},
		{"yearly", OrderSchedule{Frequency: RecurringTermsYearly, FrequencyCount: 1}, from.AddDate(1, 0, 0)},
		{"zero count defaults to one", OrderSchedule{Frequency: RecurringTermsDaily}, from.AddDate(0, 0, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.schedule.NextRunFrom(from); !got.Equal(tc.want) {
				t.Fatalf("NextRunFrom = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRecurringTermsValidity(t *testing.T) {
	for _, term := range []RecurringTerms{RecurringTermsDaily, RecurringTermsWeekly, RecurringTermsMonthly, RecurringTermsYearly} {
		if !term.IsValid() {
			t.Errorf("%q should be valid", term)
		}
	}
	if RecurringTerms("Q").IsValid() {
		t.Error("unknown term should be invalid")
	}
}

func TestScheduleActiveDefaultsTrue(t *testing.T) {
	var schedule OrderSchedule
	if !schedule.Active() {
		t.Error("schedule with unset IsActive should be active")
	}
}
