package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/migrate"
	"github.com/Harshitk-cp/tenantctl/internal/store"
	"github.com/Harshitk-cp/tenantctl/internal/tenantctx"
	"github.com/Harshitk-cp/tenantctl/internal/tenantdb"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrTenantConflict       = errors.New("tenant with this id already exists")
	ErrDomainConflict       = errors.New("domain already claimed by a tenant")
	ErrConfirmationRequired = errors.New("destructive operation requires confirmation")
	ErrUnknownOperation     = errors.New("unknown operation")
)

// Confirmer gates destructive operations. Interactive callers prompt the
// operator; non-interactive callers must pass force instead.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// Operation is an ad hoc administrative task dispatched by RunInTenant inside
// an activated tenant context.
type Operation func(ctx context.Context, b *tenantctx.Binding, params RunParams) error

type RunParams struct {
	Options   map[string]string
	Arguments map[string]string
}

// LifecycleService composes the registry store, the provisioner, the context
// switch and the migration orchestrator into the operator-facing verbs.
type LifecycleService struct {
	tenants     domain.TenantStore
	domains     domain.DomainStore
	provisioner domain.Provisioner
	switcher    *tenantctx.Switcher
	migrator    *migrate.Migrator
	seeds       *migrate.SeedRunner

	registryDB    tenantdb.DB
	centralSource fs.FS
	tenantSource  fs.FS

	confirm   Confirmer
	opTimeout time.Duration
	limiter   *rate.Limiter
	locks     keyedMutex
	ops       map[string]Operation

	log *zap.Logger
}

type LifecycleOpts struct {
	Tenants     domain.TenantStore
	Domains     domain.DomainStore
	Provisioner domain.Provisioner
	Switcher    *tenantctx.Switcher
	Migrator    *migrate.Migrator
	Seeds       *migrate.SeedRunner

	// RegistryDB and CentralSource are only needed by FreshMigrateWithTenancy.
	RegistryDB    tenantdb.DB
	CentralSource fs.FS
	TenantSource  fs.FS

	Confirmer Confirmer
	OpTimeout time.Duration

	// BatchRate paces batch loops against the shared database server.
	// Zero means unpaced.
	BatchRate float64

	Logger *zap.Logger
}

func NewLifecycleService(opts LifecycleOpts) *LifecycleService {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Minute
	}
	var limiter *rate.Limiter
	if opts.BatchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.BatchRate), 1)
	}
	return &LifecycleService{
		tenants:       opts.Tenants,
		domains:       opts.Domains,
		provisioner:   opts.Provisioner,
		switcher:      opts.Switcher,
		migrator:      opts.Migrator,
		seeds:         opts.Seeds,
		registryDB:    opts.RegistryDB,
		centralSource: opts.CentralSource,
		tenantSource:  opts.TenantSource,
		confirm:       opts.Confirmer,
		opTimeout:     opts.OpTimeout,
		limiter:       limiter,
		locks:         keyedMutex{},
		ops:           make(map[string]Operation),
		log:           opts.Logger,
	}
}

type CreateTenantOpts struct {
	ID                 string
	Domain             string
	DatabaseIdentifier string
	SystemName         string
	Migrate            bool
	Seed               bool
}

// CreateTenant registers the tenant and its domain, then provisions the
// physical database. Conflicts are checked before any side effect. A failure
// after the registry rows were written leaves the tenant in a pending or
// failed provisioning state rather than rolling the rows back; the error
// carries enough detail for a compensating delete.
func (s *LifecycleService) CreateTenant(ctx context.Context, opts CreateTenantOpts) (*domain.Tenant, error) {
	if _, err := s.tenants.Get(ctx, opts.ID); err == nil {
		return nil, fmt.Errorf("create tenant %q: %w", opts.ID, ErrTenantConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("create tenant %q: %w", opts.ID, err)
	}
	if _, err := s.domains.GetByDomain(ctx, opts.Domain); err == nil {
		return nil, fmt.Errorf("create tenant %q: domain %q: %w", opts.ID, opts.Domain, ErrDomainConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("create tenant %q: %w", opts.ID, err)
	}

	t := &domain.Tenant{
		ID:                 opts.ID,
		DatabaseIdentifier: opts.DatabaseIdentifier,
		SystemName:         opts.SystemName,
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("create tenant %q: %w", opts.ID, ErrTenantConflict)
		}
		return nil, fmt.Errorf("create tenant %q: %w", opts.ID, err)
	}
	s.log.Info("tenant registered", zap.String("tenant_id", t.ID), zap.String("database", t.Database()))

	d := &domain.Domain{Domain: opts.Domain, TenantID: t.ID}
	if err := s.domains.Create(ctx, d); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("create tenant %q: domain %q: %w (tenant row kept, state pending; delete to reconcile)",
				opts.ID, opts.Domain, ErrDomainConflict)
		}
		return nil, fmt.Errorf("create tenant %q: create domain: %w (tenant row kept, state pending; delete to reconcile)", opts.ID, err)
	}
	t.Domains = []domain.Domain{*d}

	if err := s.provisioner.CreateDatabase(ctx, t.Database()); err != nil {
		if serr := s.tenants.SetProvisioningState(ctx, t.ID, domain.ProvisioningFailed); serr != nil {
			s.log.Warn("marking tenant provisioning failed", zap.String("tenant_id", t.ID), zap.Error(serr))
		}
		return nil, fmt.Errorf("create tenant %q: %w (registry rows kept, state failed; delete to reconcile)", opts.ID, err)
	}
	if err := s.tenants.SetProvisioningState(ctx, t.ID, domain.ProvisioningReady); err != nil {
		return nil, fmt.Errorf("create tenant %q: mark ready: %w", opts.ID, err)
	}
	t.ProvisioningState = domain.ProvisioningReady
	s.log.Info("tenant database provisioned", zap.String("tenant_id", t.ID), zap.String("database", t.Database()))

	if opts.Migrate {
		if err := s.MigrateTenant(ctx, t.ID, migrate.Incremental, nil); err != nil {
			return t, err
		}
	}
	if opts.Seed {
		if err := s.SeedTenant(ctx, t.ID, ""); err != nil {
			return t, err
		}
	}
	return t, nil
}

// DeleteResult reports a completed deletion. DropErr is set when the physical
// drop failed; registry rows are removed regardless.
type DeleteResult struct {
	TenantID string
	DropErr  error
}

// DeleteTenant removes the tenant's domains, drops its database best-effort
// and finally removes the tenant row. The drop failure degrades to a warning
// so flaky storage cannot strand registry state.
func (s *LifecycleService) DeleteTenant(ctx context.Context, id string, force bool) (*DeleteResult, error) {
	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("delete tenant %q: %w", id, ErrTenantNotFound)
		}
		return nil, fmt.Errorf("delete tenant %q: %w", id, err)
	}

	if !force {
		ok, err := s.confirmed(fmt.Sprintf("Delete tenant %q and drop database %q? This cannot be undone.", id, t.Database()))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("delete tenant %q: %w", id, ErrConfirmationRequired)
		}
	}

	if err := s.domains.DeleteByTenant(ctx, id); err != nil {
		return nil, fmt.Errorf("delete tenant %q: delete domains: %w", id, err)
	}

	res := &DeleteResult{TenantID: id}
	if err := s.provisioner.DropDatabase(ctx, t.Database()); err != nil {
		// best-effort: registry cleanup proceeds, the operator sees the warning
		s.log.Warn("dropping tenant database failed, registry rows will still be removed",
			zap.String("tenant_id", id), zap.String("database", t.Database()), zap.Error(err))
		res.DropErr = err
	}

	if err := s.tenants.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return res, fmt.Errorf("delete tenant %q: delete row: %w", id, err)
	}
	s.log.Info("tenant deleted", zap.String("tenant_id", id))
	return res, nil
}

// ListTenants returns every registered tenant with its domains. Read-only,
// no context switching involved.
func (s *LifecycleService) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	return s.tenants.List(ctx, true)
}

// RegisterOperation makes a named operation available to RunInTenant.
func (s *LifecycleService) RegisterOperation(name string, op Operation) {
	s.ops[name] = op
}

// RunInTenant activates the tenant context, dispatches the named operation
// and releases the context on every exit path.
func (s *LifecycleService) RunInTenant(ctx context.Context, tenantID, name string, params RunParams) error {
	op, ok := s.ops[name]
	if !ok {
		return fmt.Errorf("run %q: %w", name, ErrUnknownOperation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	unlock := s.locks.lock(tenantID)
	defer unlock()

	return s.switcher.WithTenant(ctx, tenantID, func(tctx context.Context, b *tenantctx.Binding) error {
		s.log.Info("running operation in tenant context",
			zap.String("tenant_id", tenantID), zap.String("operation", name))
		return op(tctx, b, params)
	})
}

func (s *LifecycleService) confirmed(prompt string) (bool, error) {
	if s.confirm == nil {
		return false, nil
	}
	return s.confirm.Confirm(prompt)
}
