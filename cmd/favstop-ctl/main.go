package main

import (
	"os"
	_ "time/tzdata"

	"github.com/rodonguyen/FavStop/internal/ctl"
)

func main() {
	if err := ctl.Execute(); err != nil {
		os.Exit(1)
	}
}
