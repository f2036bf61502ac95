package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/sqlagent/internal/infra/sqlite"
)

func (a *app) seedDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo <path>",
		Short: "Create a small demo vehicles database at path",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := sqlite.SeedDemo(args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(a.out, "seeded demo store at %s\n", args[0])
			return err
		},
	}
}
