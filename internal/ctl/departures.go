package ctl

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodonguyen/FavStop/internal/api/models"
	"github.com/rodonguyen/FavStop/internal/stops"
	"github.com/rodonguyen/FavStop/internal/translink"
)

// NewDeparturesCmd prints the classified departures of stops
func NewDeparturesCmd(app *App) *cobra.Command {
	var bestEffort bool
	var limit int

	cmd := &cobra.Command{
		Use:   "departures [stop-id...]",
		Short: "Show upcoming departures (default stops when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.resolve()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.DepartureLimit
			}

			policy := stops.Policy(cfg.AggregatePolicy)
			if bestEffort {
				policy = stops.BestEffort
			}

			httpClient := app.HTTPClient
			if httpClient == nil {
				httpClient = translink.NewHTTPClient(cfg.HTTPTimeout)
			}

			manager := stops.NewManager(translink.NewClient(cfg.BaseURL, httpClient), cfg.DefaultStopIDs,
				stops.WithPolicy(policy),
				stops.WithLimit(cfg.MaxConcurrentFetches),
			)
			loadErr := manager.Load(cmd.Context(), args...)
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			snap := manager.Snapshot()
			if loadErr != nil && len(snap.Stops) == 0 {
				return loadErr
			}

			printStops(app.out(cmd), snap.Stops, limit, cfg.Location())
			if loadErr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), loadErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&bestEffort, "best-effort", false, "Show the stops that loaded even if others failed")
	cmd.Flags().IntVar(&limit, "limit", 0, "Departures per stop (default from DEPARTURE_LIMIT)")

	return cmd
}

func printStops(w io.Writer, timetables []translink.StopTimetable, limit int, loc *time.Location) {
	for i, st := range timetables {
		if i > 0 {
			fmt.Fprintln(w)
		}

		view := models.NewStopView(st, limit, loc)
		fmt.Fprintf(w, "%s (%s)\n", view.Name, view.ID)
		if view.Message != "" {
			fmt.Fprintln(w, view.Message)
			continue
		}

		routeNames := make(map[string]string, len(view.Routes))
		for _, r := range view.Routes {
			routeNames[r.ID] = r.Name
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ROUTE\tHEADSIGN\tDEPARTING IN\tEXPECTED\tSTATUS")
		for _, d := range view.Departures {
			route := routeNames[d.RouteID]
			if route == "" {
				route = d.RouteID
			}
			expected := d.ExpectedTime
			if expected == "" {
				expected = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", route, d.Headsign, d.Description, expected, d.Status)
		}
		tw.Flush()
	}
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
