// Package departure classifies departures by punctuality and renders their
// expected times for display.
package departure

import (
	"fmt"
	"math"
	"time"

	"github.com/rodonguyen/FavStop/internal/translink"
)

// Color is the display class of a status
type Color string

const (
	ColorSuccess   Color = "success"
	ColorWarning   Color = "warning"
	ColorError     Color = "error"
	ColorSecondary Color = "secondary"
)

// Status texts that do not carry a delay
const (
	StatusScheduled = "Scheduled"
	StatusCancelled = "Cancelled"
	StatusSkipped   = "Skipped"
	StatusOnTime    = "On time"
)

// Status is the punctuality classification of one departure
type Status struct {
	Text         string `json:"status"`
	IsLate       bool   `json:"isLate"`
	DelayMinutes int    `json:"delayMinutes"`
	Color        Color  `json:"color"`
}

// Classify derives a departure's status. Cancellation wins over skipping,
// and both win over any delay. Unparseable timestamps classify as on time.
func Classify(d translink.Departure) Status {
	rt := d.Realtime
	if rt == nil {
		return Status{Text: StatusScheduled, Color: ColorSecondary}
	}

	if rt.IsCancelled {
		return Status{Text: StatusCancelled, Color: ColorError}
	}
	if rt.IsSkipped {
		return Status{Text: StatusSkipped, Color: ColorError}
	}

	delay, ok := Delay(d)
	if !ok {
		return Status{Text: StatusOnTime, Color: ColorSuccess}
	}

	minutes := int(math.Round(delay.Seconds() / 60))
	switch {
	case minutes > 0:
		return Status{
			Text:         fmt.Sprintf("Late (%d min)", minutes),
			IsLate:       true,
			DelayMinutes: minutes,
			Color:        ColorError,
		}
	case minutes < 0:
		return Status{
			Text:         fmt.Sprintf("Early (%d min)", -minutes),
			DelayMinutes: minutes,
			Color:        ColorSuccess,
		}
	default:
		return Status{Text: StatusOnTime, Color: ColorSuccess}
	}
}

// Delay returns expected minus scheduled departure time. ok is false for
// schedule-only departures or when either timestamp cannot be parsed.
func Delay(d translink.Departure) (delay time.Duration, ok bool) {
	if d.Realtime == nil {
		return 0, false
	}

	scheduled, ok := ParseTimestamp(d.ScheduledDepartureUTC)
	if !ok {
		return 0, false
	}
	expected, ok := ParseTimestamp(d.Realtime.ExpectedDepartureUTC)
	if !ok {
		return 0, false
	}

	return expected.Sub(scheduled), true
}
