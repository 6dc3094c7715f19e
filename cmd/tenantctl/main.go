package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Harshitk-cp/tenantctl/internal/config"
	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/migrate"
	"github.com/Harshitk-cp/tenantctl/internal/provision"
	"github.com/Harshitk-cp/tenantctl/internal/service"
	"github.com/Harshitk-cp/tenantctl/internal/store"
	"github.com/Harshitk-cp/tenantctl/internal/tenantctx"
	"github.com/Harshitk-cp/tenantctl/internal/tenantdb"
	"github.com/Harshitk-cp/tenantctl/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds everything the commands need; built once in the root
// PersistentPreRunE and torn down in main.
type app struct {
	log  *zap.Logger
	pool *pgxpool.Pool
	svc  *service.LifecycleService
}

var cli app

func main() {
	root := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Tenant database lifecycle control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.init(cmd.Context())
		},
	}

	root.AddCommand(newTenantCmd())
	root.AddCommand(newFreshMigrateCmd())

	err := root.ExecuteContext(context.Background())
	cli.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) init(ctx context.Context) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = logger

	registryURL := config.RegistryURL()
	if registryURL == "" {
		return fmt.Errorf("REGISTRY_URL is required")
	}

	pool, err := pgxpool.New(ctx, registryURL)
	if err != nil {
		return fmt.Errorf("connect to registry: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping registry: %w", err)
	}
	a.pool = pool

	tenantStore := store.NewTenantStore(pool)
	domainStore := store.NewDomainStore(pool)

	driver := domain.Driver(config.TenantDriver())
	var provisioner domain.Provisioner
	switch driver {
	case domain.DriverPostgres:
		provisioner = provision.NewPostgresProvisioner(pool)
	case domain.DriverSQLite:
		provisioner = provision.NewSQLiteProvisioner(config.SQLiteDir())
	default:
		return fmt.Errorf("unsupported TENANT_DRIVER %q", driver)
	}

	connector := tenantdb.NewConnector(tenantdb.ConnectorOpts{
		Driver:      driver,
		URLTemplate: config.TenantURLTemplate(),
		RegistryURL: registryURL,
		SQLiteDir:   config.SQLiteDir(),
	})

	switcher := tenantctx.NewSwitcher(tenantStore, connector, logger)

	a.svc = service.NewLifecycleService(service.LifecycleOpts{
		Tenants:       tenantStore,
		Domains:       domainStore,
		Provisioner:   provisioner,
		Switcher:      switcher,
		Migrator:      migrate.NewMigrator(logger),
		Seeds:         migrate.NewSeedRunner(logger),
		RegistryDB:    tenantdb.NewPostgres(pool),
		CentralSource: migrations.Central(),
		TenantSource:  migrations.Tenant(),
		Confirmer:     &stdinConfirmer{},
		OpTimeout:     config.TenantOpTimeout(),
		BatchRate:     config.BatchRate(),
		Logger:        logger,
	})

	a.svc.RegisterOperation("ping", func(ctx context.Context, b *tenantctx.Binding, _ service.RunParams) error {
		return b.DB.Exec(ctx, "SELECT 1")
	})

	return nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// stdinConfirmer prompts the operator on the terminal. Anything but an
// explicit yes declines.
type stdinConfirmer struct{}

func (c *stdinConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
