package intent

import (
	"time"

	"finsight/internal/types"
)

// Anchor selects how relative date phrases resolve to concrete ranges.
type Anchor string

const (
	// AnchorCalendar resolves "last month" to the previous calendar month
	// and "this month" to month-to-date.
	AnchorCalendar Anchor = "calendar"
	// AnchorRolling resolves "last month" to the trailing 30 days.
	AnchorRolling Anchor = "rolling"
)

const isoDate = "2006-01-02"

// Clock supplies the current time; tests pin it.
type Clock func() time.Time

// lastMonth resolves "last month" under the given anchor.
func lastMonth(anchor Anchor, now time.Time) types.DateRange {
	if anchor == AnchorRolling {
		return types.DateRange{
			Start: now.AddDate(0, 0, -30).Format(isoDate),
			End:   now.Format(isoDate),
		}
	}
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	firstOfLast := firstOfThis.AddDate(0, -1, 0)
	lastOfLast := firstOfThis.AddDate(0, 0, -1)
	return types.DateRange{
		Start: firstOfLast.Format(isoDate),
		End:   lastOfLast.Format(isoDate),
	}
}

// thisMonth resolves "this month": month-to-date under either anchor.
func thisMonth(now time.Time) types.DateRange {
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return types.DateRange{
		Start: firstOfThis.Format(isoDate),
		End:   now.Format(isoDate),
	}
}
