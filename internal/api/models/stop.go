package models

import (
	"time"

	"github.com/rodonguyen/FavStop/internal/departure"
	"github.com/rodonguyen/FavStop/internal/translink"
)

// DefaultDepartureLimit is how many departures a stop card shows
const DefaultDepartureLimit = 5

// NoDeparturesMessage is shown for a stop without upcoming departures
const NoDeparturesMessage = "No upcoming buses at this stop"

// Position is a stop coordinate
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteView is a route serving a stop
type RouteView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	HeadSign   string `json:"headSign"`
	Direction  string `json:"direction"`
	RegionName string `json:"regionName"`
}

// DepartureView is one classified departure ready for display
type DepartureView struct {
	ID           string          `json:"id"`
	RouteID      string          `json:"routeId"`
	Headsign     string          `json:"headsign"`
	Direction    string          `json:"direction"`
	Description  string          `json:"description"`
	ScheduledUTC string          `json:"scheduledUtc"`
	ExpectedTime string          `json:"expectedTime,omitempty"` // local clock time, e.g. "2:05 PM"
	IsRealtime   bool            `json:"isRealtime"`
	Status       string          `json:"status"`
	Color        departure.Color `json:"color"`
	DelayMinutes int             `json:"delayMinutes"`
	IsLate       bool            `json:"isLate"`
	IsExtra      bool            `json:"isExtra"`
}

// StopAlerts are the service alerts attached to a stop
type StopAlerts struct {
	At       string   `json:"at"`
	Current  []string `json:"current"`
	Upcoming []string `json:"upcoming"`
}

// StopView is one stop card
type StopView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Zone       string          `json:"zone"`
	Position   Position        `json:"position"`
	Routes     []RouteView     `json:"routes"`
	Departures []DepartureView `json:"departures"`
	Message    string          `json:"message,omitempty"`
	Alerts     StopAlerts      `json:"alerts"`
}

// StopsResponse is the response for GET /api/stops
type StopsResponse struct {
	Stops       []StopView `json:"stops"`
	Count       int        `json:"count"`
	Loading     bool       `json:"loading"`
	Error       string     `json:"error,omitempty"`
	State       string     `json:"state"`
	LastChecked time.Time  `json:"lastChecked"`
}

// NewDepartureView classifies d and renders its expected time in loc
func NewDepartureView(d translink.Departure, loc *time.Location) DepartureView {
	status := departure.Classify(d)

	v := DepartureView{
		ID:           d.ID,
		RouteID:      d.RouteID,
		Headsign:     d.Headsign,
		Direction:    d.Direction,
		Description:  d.DepartureDescription,
		ScheduledUTC: d.ScheduledDepartureUTC,
		ExpectedTime: departure.ExpectedClock(d, loc),
		IsRealtime:   d.IsRealtime(),
		Status:       status.Text,
		Color:        status.Color,
		DelayMinutes: status.DelayMinutes,
		IsLate:       status.IsLate,
	}
	if d.Realtime != nil {
		v.IsExtra = d.Realtime.IsExtra
	}
	return v
}

// NewStopView builds a stop card with at most limit departures, in server order.
// limit <= 0 uses DefaultDepartureLimit.
func NewStopView(st translink.StopTimetable, limit int, loc *time.Location) StopView {
	if limit <= 0 {
		limit = DefaultDepartureLimit
	}

	v := StopView{
		ID:         st.ID,
		Name:       st.Name,
		Zone:       st.Zone,
		Position:   Position{Lat: st.Position.Lat, Lng: st.Position.Lng},
		Routes:     make([]RouteView, 0, len(st.Routes)),
		Departures: make([]DepartureView, 0, min(limit, len(st.Departures))),
		Alerts: StopAlerts{
			At:       st.ServiceAlerts.At,
			Current:  nonNil(st.ServiceAlerts.Current),
			Upcoming: nonNil(st.ServiceAlerts.Upcoming),
		},
	}

	for _, r := range st.Routes {
		v.Routes = append(v.Routes, RouteView{
			ID:         r.ID,
			Name:       r.Name,
			HeadSign:   r.HeadSign,
			Direction:  r.Direction,
			RegionName: r.RegionName,
		})
	}

	for i, d := range st.Departures {
		if i >= limit {
			break
		}
		v.Departures = append(v.Departures, NewDepartureView(d, loc))
	}
	if len(v.Departures) == 0 {
		v.Message = NoDeparturesMessage
	}

	return v
}

// NewStopViews builds cards for every stop in collection order
func NewStopViews(stops []translink.StopTimetable, limit int, loc *time.Location) []StopView {
	views := make([]StopView, 0, len(stops))
	for _, st := range stops {
		views = append(views, NewStopView(st, limit, loc))
	}
	return views
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
