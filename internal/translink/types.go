package translink

// StopTimetable is the decoded body of GET /stop/timetable/{stopId}.
// Values are replaced wholesale on refresh and never mutated in place.
type StopTimetable struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Zone          string        `json:"zone"`
	Position      Position      `json:"position"`
	Routes        []Route       `json:"routes"`
	Departures    []Departure   `json:"departures"`
	ServiceAlerts ServiceAlerts `json:"serviceAlerts"`
}

// Position is a WGS84 coordinate
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Route describes a route serving the stop
type Route struct {
	RegionName string `json:"regionName"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	HeadSign   string `json:"headSign"`
	Direction  string `json:"direction"`
}

// Departure is one upcoming departure. Realtime is nil for schedule-only departures.
type Departure struct {
	ID                    string    `json:"id"`
	RouteID               string    `json:"routeId"`
	Headsign              string    `json:"headsign"`
	Direction             string    `json:"direction"`
	ScheduledDepartureUTC string    `json:"scheduledDepartureUtc"`
	DepartureDescription  string    `json:"departureDescription"`
	CanBoardDebark        string    `json:"canBoardDebark"`
	Realtime              *Realtime `json:"realtime,omitempty"`
}

// IsRealtime reports whether live tracking data is attached
func (d Departure) IsRealtime() bool {
	return d.Realtime != nil
}

// Realtime carries live tracking data. The flags are independent:
// a departure may be both skipped and cancelled.
type Realtime struct {
	ExpectedDepartureUTC string `json:"expectedDepartureUtc"`
	IsExtra              bool   `json:"isExtra"`
	IsSkipped            bool   `json:"isSkipped"`
	IsCancelled          bool   `json:"isCancelled"`
}

// ServiceAlerts is the alert snapshot attached to a stop
type ServiceAlerts struct {
	At       string   `json:"at"`
	Current  []string `json:"current"`
	Upcoming []string `json:"upcoming"`
}
