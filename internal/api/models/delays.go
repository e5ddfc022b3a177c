package models

import (
	"time"

	"github.com/rodonguyen/FavStop/internal/departure"
	"github.com/rodonguyen/FavStop/internal/translink"
)

// ServiceAlert is a service alert seen at a tracked stop
type ServiceAlert struct {
	AlertID     string  `json:"alertId"`
	StopID      string  `json:"stopId"`
	Message     string  `json:"message"`
	Kind        string  `json:"kind"` // "current" or "upcoming"
	IsActive    bool    `json:"isActive"`
	FirstSeenAt string  `json:"firstSeenAt"`
	LastSeenAt  string  `json:"lastSeenAt"`
	ResolvedAt  *string `json:"resolvedAt,omitempty"`
}

// DelaySummary is a live delay snapshot of the current collection
type DelaySummary struct {
	TotalDepartures    int     `json:"totalDepartures"`
	RealtimeDepartures int     `json:"realtimeDepartures"`
	LateDepartures     int     `json:"lateDepartures"`
	CancelledOrSkipped int     `json:"cancelledOrSkipped"`
	OnTimePercent      float64 `json:"onTimePercent"`
	AvgDelaySeconds    float64 `json:"avgDelaySeconds"`
	MaxDelaySeconds    int     `json:"maxDelaySeconds"`
	WorstRoute         string  `json:"worstRoute,omitempty"`
}

// DelayHourlyStat is the hourly delay data for a route
type DelayHourlyStat struct {
	RouteID          string  `json:"routeId"`
	HourBucket       string  `json:"hourBucket"`
	ObservationCount int     `json:"observationCount"`
	MeanDelaySeconds float64 `json:"meanDelaySeconds"`
	StdDevSeconds    float64 `json:"stdDevSeconds"`
	OnTimePercent    float64 `json:"onTimePercent"`
	MaxDelaySeconds  int     `json:"maxDelaySeconds"`
}

// DelayStatsResponse is the response for GET /api/delays/stats
type DelayStatsResponse struct {
	Summary     DelaySummary      `json:"summary"`
	HourlyStats []DelayHourlyStat `json:"hourlyStats"`
	LastChecked time.Time         `json:"lastChecked"`
}

// AlertsResponse is the response for GET /api/alerts
type AlertsResponse struct {
	Alerts      []ServiceAlert `json:"alerts"`
	Count       int            `json:"count"`
	LastChecked time.Time      `json:"lastChecked"`
}

// Summarize computes the live delay summary of stops. On-time means a
// running realtime departure with no rounded delay.
func Summarize(stops []translink.StopTimetable) DelaySummary {
	var s DelaySummary
	var measured, onTime int
	var total float64
	worstDelay := 0

	for _, stop := range stops {
		for _, d := range stop.Departures {
			s.TotalDepartures++
			if d.Realtime == nil {
				continue
			}
			s.RealtimeDepartures++

			status := departure.Classify(d)
			if status.Text == departure.StatusCancelled || status.Text == departure.StatusSkipped {
				s.CancelledOrSkipped++
				continue
			}
			if status.IsLate {
				s.LateDepartures++
			}

			delay, ok := departure.Delay(d)
			if !ok {
				continue
			}
			seconds := int(delay / time.Second)
			measured++
			total += float64(seconds)
			if status.DelayMinutes == 0 {
				onTime++
			}
			if seconds > s.MaxDelaySeconds {
				s.MaxDelaySeconds = seconds
			}
			if seconds > worstDelay {
				worstDelay = seconds
				s.WorstRoute = d.RouteID
			}
		}
	}

	if measured > 0 {
		s.AvgDelaySeconds = total / float64(measured)
		s.OnTimePercent = float64(onTime) / float64(measured) * 100
	}
	return s
}
