// Package ctl implements the favstop-ctl command line tool.
package ctl

import (
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rodonguyen/FavStop/internal/config"
)

// App holds the flags shared by every subcommand
type App struct {
	BaseURL  string
	Timezone string
	Timeout  int

	// HTTPClient overrides the client built from Timeout
	HTTPClient *http.Client
}

// Execute runs the CLI with the process arguments
func Execute() error {
	return NewRootCmd(&App{}).Execute()
}

// NewRootCmd builds the command tree
func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "favstop-ctl",
		Short:         "Inspect live departures for TransLink stops",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&app.BaseURL, "base-url", "", "TransLink API root (default from TRANSLINK_BASE_URL)")
	cmd.PersistentFlags().StringVar(&app.Timezone, "timezone", "", "Display timezone (default from DISPLAY_TIMEZONE)")
	cmd.PersistentFlags().IntVar(&app.Timeout, "timeout", 0, "HTTP timeout in seconds (default from HTTP_TIMEOUT)")

	cmd.AddCommand(NewDeparturesCmd(app))

	return cmd
}

// resolve merges flags over the environment configuration
func (app *App) resolve() (*config.Config, error) {
	config.LoadDotEnv(".")
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if app.BaseURL != "" {
		cfg.BaseURL = app.BaseURL
	}
	if app.Timezone != "" {
		cfg.DisplayTimezone = app.Timezone
	}
	if app.Timeout > 0 {
		cfg.HTTPTimeout = secondsToDuration(app.Timeout)
	}
	return cfg, nil
}

func (app *App) out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
