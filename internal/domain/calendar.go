package domain

import (
	"fmt"
	"time"
)

// CalendarKey aligns records of different years: (Month, Day) for daily
// series, Month alone (Day == 0) for monthly series.
type CalendarKey struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day,omitempty"`
}

// DailyKey returns the (Month, Day) key.
func DailyKey(month, day int) CalendarKey {
	return CalendarKey{Month: time.Month(month), Day: day}
}

// MonthlyKey returns the Month-only key.
func MonthlyKey(month int) CalendarKey {
	return CalendarKey{Month: time.Month(month)}
}

// IsMonthly reports whether the key has no day component.
func (k CalendarKey) IsMonthly() bool { return k.Day == 0 }

func (k CalendarKey) String() string {
	if k.IsMonthly() {
		return k.Month.String()
	}
	return fmt.Sprintf("%02d-%02d", int(k.Month), k.Day)
}

// groupBy maps each distinct key to the row indices holding it. Keys come back
// in first-seen order and each index list keeps row order.
func groupBy[K comparable](keys []K) ([]K, map[K][]int) {
	order := make([]K, 0)
	groups := make(map[K][]int)
	for i, k := range keys {
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	return order, groups
}
