package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFreshMigrateCmd() *cobra.Command {
	var (
		doSeed bool
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "fresh-migrate-with-tenancy",
		Short: "Fresh-migrate the central database and every tenant database (destructive)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println("WARNING: this drops and rebuilds the central database and every tenant database.")
			report, err := cli.svc.FreshMigrateWithTenancy(cmd.Context(), doSeed, force)
			if err != nil {
				return err
			}
			printReport(report)
			return report.Err()
		},
	}
	cmd.Flags().BoolVar(&doSeed, "seed", false, "seed every tenant after migrating")
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}
