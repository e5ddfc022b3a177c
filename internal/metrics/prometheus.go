package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rodonguyen/FavStop/internal/departure"
	"github.com/rodonguyen/FavStop/internal/translink"
)

// Metrics are the Prometheus collectors for timetable fetches and the
// current collection. Metrics implements translink.Observer.
type Metrics struct {
	FetchSeconds       *prometheus.HistogramVec
	FetchTotal         *prometheus.CounterVec
	TrackedStops       prometheus.Gauge
	DeparturesByStatus *prometheus.GaugeVec
	LastRefresh        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		FetchSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "favstop_timetable_fetch_seconds",
				Help:    "Duration of stop timetable requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "favstop_timetable_fetch_total",
				Help: "Stop timetable requests by stop and outcome",
			},
			[]string{"stop_id", "outcome"},
		),
		TrackedStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "favstop_tracked_stops",
			Help: "Stops in the current collection",
		}),
		DeparturesByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "favstop_departures",
				Help: "Departures in the current collection by display color",
			},
			[]string{"color"},
		),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "favstop_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful collection change",
		}),
	}

	registry.MustRegister(
		m.FetchSeconds,
		m.FetchTotal,
		m.TrackedStops,
		m.DeparturesByStatus,
		m.LastRefresh,
	)

	return m
}

// NewRegistry returns a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler serves the registry in the Prometheus exposition format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one finished timetable request
func (m *Metrics) ObserveFetch(stopID, outcome string, duration time.Duration) {
	m.FetchSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
	m.FetchTotal.WithLabelValues(stopID, outcome).Inc()
}

// ObserveCollection resets the collection gauges from stops
func (m *Metrics) ObserveCollection(stops []translink.StopTimetable, at time.Time) {
	m.TrackedStops.Set(float64(len(stops)))

	counts := map[departure.Color]int{
		departure.ColorSuccess:   0,
		departure.ColorWarning:   0,
		departure.ColorError:     0,
		departure.ColorSecondary: 0,
	}
	for _, stop := range stops {
		for _, d := range stop.Departures {
			counts[departure.Classify(d).Color]++
		}
	}
	for color, n := range counts {
		m.DeparturesByStatus.WithLabelValues(string(color)).Set(float64(n))
	}

	m.LastRefresh.Set(float64(at.Unix()))
}
