package departure

import (
	"time"

	"github.com/rodonguyen/FavStop/internal/translink"
)

const clockLayout = "3:04 PM"

// FormatClock renders a UTC timestamp as a 12-hour clock time in loc.
// It returns "" when the timestamp cannot be parsed; unlike Classify it has
// no "on time" style fallback.
func FormatClock(utc string, loc *time.Location) string {
	t, ok := ParseTimestamp(utc)
	if !ok {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(clockLayout)
}

// ExpectedClock is FormatClock over a departure's realtime expected time,
// or "" for schedule-only departures.
func ExpectedClock(d translink.Departure, loc *time.Location) string {
	if d.Realtime == nil {
		return ""
	}
	return FormatClock(d.Realtime.ExpectedDepartureUTC, loc)
}
