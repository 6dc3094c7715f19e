package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Harshitk-cp/tenantctl/internal/migrate"
	"github.com/Harshitk-cp/tenantctl/internal/service"
	"github.com/spf13/cobra"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants and their databases",
	}
	cmd.AddCommand(
		newTenantCreateCmd(),
		newTenantDeleteCmd(),
		newTenantListCmd(),
		newTenantMigrateCmd(),
		newTenantSeedCmd(),
		newTenantRunCmd(),
	)
	return cmd
}

func newTenantCreateCmd() *cobra.Command {
	var (
		dbName     string
		systemName string
		doMigrate  bool
		doSeed     bool
	)
	cmd := &cobra.Command{
		Use:   "create <id> <domain>",
		Short: "Register a tenant, claim its domain and provision its database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := cli.svc.CreateTenant(cmd.Context(), service.CreateTenantOpts{
				ID:                 args[0],
				Domain:             args[1],
				DatabaseIdentifier: dbName,
				SystemName:         systemName,
				Migrate:            doMigrate,
				Seed:               doSeed,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Tenant %s created (database %s)\n", t.ID, t.Database())
			return nil
		},
	}
	cmd.Flags().StringVar(&dbName, "db", "", "database identifier (defaults to the tenant id)")
	cmd.Flags().StringVar(&systemName, "name", "", "display name")
	cmd.Flags().BoolVar(&doMigrate, "migrate", false, "run migrations after provisioning")
	cmd.Flags().BoolVar(&doSeed, "seed", false, "run the default seeders after provisioning")
	return cmd
}

func newTenantDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tenant, its domains and its database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := cli.svc.DeleteTenant(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			if res.DropErr != nil {
				fmt.Printf("Tenant %s deleted; WARNING: dropping the database failed: %v\n", res.TenantID, res.DropErr)
				return nil
			}
			fmt.Printf("Tenant %s deleted\n", res.TenantID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}

func newTenantListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenants, err := cli.svc.ListTenants(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(tenants)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDATABASE\tSTATE\tDOMAINS\tCREATED")
			for _, t := range tenants {
				var domains []string
				for _, d := range t.Domains {
					domains = append(domains, d.Domain)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.SystemName, t.Database(), t.ProvisioningState,
					strings.Join(domains, ","), t.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newTenantMigrateCmd() *cobra.Command {
	var (
		fresh  bool
		doSeed bool
		path   string
	)
	cmd := &cobra.Command{
		Use:   "migrate [<id>]",
		Short: "Migrate one tenant's database, or every tenant's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := migrate.Incremental
			if fresh {
				mode = migrate.Fresh
			}
			var source fs.FS
			if path != "" {
				source = os.DirFS(path)
			}

			if len(args) == 1 {
				id := args[0]
				if err := cli.svc.MigrateTenant(cmd.Context(), id, mode, source); err != nil {
					return err
				}
				fmt.Printf("Tenant %s migrated\n", id)
				if doSeed {
					if err := cli.svc.SeedTenant(cmd.Context(), id, ""); err != nil {
						return err
					}
					fmt.Printf("Tenant %s seeded\n", id)
				}
				return nil
			}

			report, err := cli.svc.MigrateAll(cmd.Context(), mode, source)
			if err != nil {
				return err
			}
			if doSeed {
				seedReport, err := cli.svc.SeedAll(cmd.Context(), "")
				if err != nil {
					return err
				}
				report = append(report, seedReport...)
			}
			printReport(report)
			return report.Err()
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "drop all objects and replay the full migration history (destructive)")
	cmd.Flags().BoolVar(&doSeed, "seed", false, "seed after migrating")
	cmd.Flags().StringVar(&path, "path", "", "load migration scripts from this directory instead of the embedded set")
	return cmd
}

func newTenantSeedCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "seed [<id>]",
		Short: "Seed one tenant's database, or every tenant's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := cli.svc.SeedTenant(cmd.Context(), args[0], class); err != nil {
					return err
				}
				fmt.Printf("Tenant %s seeded\n", args[0])
				return nil
			}
			report, err := cli.svc.SeedAll(cmd.Context(), class)
			if err != nil {
				return err
			}
			printReport(report)
			return report.Err()
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "run only this named seeder")
	return cmd
}

func newTenantRunCmd() *cobra.Command {
	var (
		options   []string
		arguments []string
	)
	cmd := &cobra.Command{
		Use:   "run <id> <operation>",
		Short: "Run a named operation inside a tenant's database context",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseKeyValues(options)
			if err != nil {
				return err
			}
			kvArgs, err := parseKeyValues(arguments)
			if err != nil {
				return err
			}
			if err := cli.svc.RunInTenant(cmd.Context(), args[0], args[1], service.RunParams{
				Options:   opts,
				Arguments: kvArgs,
			}); err != nil {
				return err
			}
			fmt.Printf("Operation %s completed for tenant %s\n", args[1], args[0])
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&options, "option", nil, "operation option as k=v (repeatable)")
	cmd.Flags().StringArrayVar(&arguments, "argument", nil, "operation argument as k=v (repeatable)")
	return cmd
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func printReport(report service.Report) {
	for _, res := range report {
		if res.Err != nil {
			fmt.Printf("  %s: %s (%v)\n", res.TenantID, res.Status, res.Err)
			continue
		}
		fmt.Printf("  %s: %s\n", res.TenantID, res.Status)
	}
}
