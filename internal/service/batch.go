package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/migrate"
	"github.com/Harshitk-cp/tenantctl/internal/store"
	"github.com/Harshitk-cp/tenantctl/internal/tenantctx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Status is the terminal state of one tenant inside a batch run.
type Status string

const (
	StatusMigrated Status = "migrated"
	StatusSeeded   Status = "seeded"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

type TenantResult struct {
	TenantID string
	Status   Status
	Err      error
}

// Report aggregates per-tenant outcomes of a batch operation. A failed tenant
// never aborts the batch; it is recorded here instead.
type Report []TenantResult

func (r Report) Failed() []TenantResult {
	var out []TenantResult
	for _, res := range r {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Err combines every failure into one error, or nil when all tenants
// succeeded.
func (r Report) Err() error {
	var err error
	for _, res := range r {
		if res.Status == StatusFailed {
			err = multierr.Append(err, fmt.Errorf("tenant %s: %w", res.TenantID, res.Err))
		}
	}
	return err
}

// keyedMutex serializes operations per tenant so two concurrent callers can
// never run migrations against the same tenant database at once.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// MigrateTenant migrates one tenant's database. sourceOverride replaces the
// embedded migration scripts when non-nil. The run is bounded by the
// per-tenant operation timeout and serialized per tenant.
func (s *LifecycleService) MigrateTenant(ctx context.Context, tenantID string, mode migrate.Mode, sourceOverride fs.FS) error {
	source := s.tenantSource
	if sourceOverride != nil {
		source = sourceOverride
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	unlock := s.locks.lock(tenantID)
	defer unlock()

	err := s.switcher.WithTenant(ctx, tenantID, func(tctx context.Context, b *tenantctx.Binding) error {
		s.log.Info("migrating tenant",
			zap.String("tenant_id", tenantID), zap.String("mode", string(mode)))
		return s.migrator.Run(tctx, b.DB, source, mode)
	})
	if err != nil {
		if errors.Is(err, tenantctx.ErrTenantNotFound) {
			return fmt.Errorf("migrate: %w", ErrTenantNotFound)
		}
		return err
	}
	return nil
}

// SeedTenant runs the named seeder (or the default sequence) against one
// tenant's database.
func (s *LifecycleService) SeedTenant(ctx context.Context, tenantID, seederName string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	unlock := s.locks.lock(tenantID)
	defer unlock()

	err := s.switcher.WithTenant(ctx, tenantID, func(tctx context.Context, b *tenantctx.Binding) error {
		s.log.Info("seeding tenant",
			zap.String("tenant_id", tenantID), zap.String("seeder", seederName))
		return s.seeds.Seed(tctx, b.DB, seederName)
	})
	if err != nil {
		if errors.Is(err, tenantctx.ErrTenantNotFound) {
			return fmt.Errorf("seed: %w", ErrTenantNotFound)
		}
		return err
	}
	return nil
}

// MigrateAll migrates every registered tenant sequentially. One tenant's
// failure never aborts the loop; cancellation is honored between tenants so
// an in-flight migration always finishes or times out on its own.
func (s *LifecycleService) MigrateAll(ctx context.Context, mode migrate.Mode, sourceOverride fs.FS) (Report, error) {
	return s.forEachTenant(ctx, StatusMigrated, func(ctx context.Context, tenantID string) error {
		return s.MigrateTenant(ctx, tenantID, mode, sourceOverride)
	})
}

// SeedAll seeds every registered tenant with the same iterate-and-continue
// policy as MigrateAll.
func (s *LifecycleService) SeedAll(ctx context.Context, seederName string) (Report, error) {
	return s.forEachTenant(ctx, StatusSeeded, func(ctx context.Context, tenantID string) error {
		return s.SeedTenant(ctx, tenantID, seederName)
	})
}

func (s *LifecycleService) forEachTenant(ctx context.Context, okStatus Status, fn func(ctx context.Context, tenantID string) error) (Report, error) {
	tenants, err := s.tenants.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	var report Report
	for _, t := range tenants {
		// cooperative cancellation between tenants only; aborting a schema
		// migration mid-statement can corrupt the tenant's schema state
		if err := ctx.Err(); err != nil {
			report = append(report, TenantResult{TenantID: t.ID, Status: StatusSkipped, Err: err})
			continue
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				report = append(report, TenantResult{TenantID: t.ID, Status: StatusSkipped, Err: err})
				continue
			}
		}

		if err := fn(ctx, t.ID); err != nil {
			s.log.Warn("tenant operation failed, continuing batch",
				zap.String("tenant_id", t.ID), zap.Error(err))
			report = append(report, TenantResult{TenantID: t.ID, Status: StatusFailed, Err: err})
			continue
		}
		report = append(report, TenantResult{TenantID: t.ID, Status: okStatus})
	}
	return report, nil
}

// FreshMigrateWithTenancy fresh-migrates the central registry database, then
// fresh-migrates (and optionally seeds) every tenant database. Destructive;
// gated by confirmation unless force is set.
func (s *LifecycleService) FreshMigrateWithTenancy(ctx context.Context, seed, force bool) (Report, error) {
	if !force {
		ok, err := s.confirmed("Fresh-migrate the central database and EVERY tenant database? All data will be lost.")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConfirmationRequired
		}
	}

	// the central fresh wipes the tenants/domains tables along with the rest
	// of the schema, so snapshot the registry first and restore it after,
	// otherwise there would be no fleet left to iterate
	snapshot, err := s.tenants.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("snapshot registry: %w", err)
	}

	s.log.Info("fresh-migrating central database")
	if err := s.migrator.Run(ctx, s.registryDB, s.centralSource, migrate.Fresh); err != nil {
		return nil, fmt.Errorf("fresh-migrate central: %w", err)
	}

	for i := range snapshot {
		t := snapshot[i]
		restored := t
		restored.Domains = nil
		if err := s.tenants.Create(ctx, &restored); err != nil && !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("restore tenant %q: %w", t.ID, err)
		}
		for _, d := range t.Domains {
			dd := domain.Domain{Domain: d.Domain, TenantID: d.TenantID}
			if err := s.domains.Create(ctx, &dd); err != nil && !errors.Is(err, store.ErrConflict) {
				return nil, fmt.Errorf("restore domain %q: %w", d.Domain, err)
			}
		}
	}

	report, err := s.MigrateAll(ctx, migrate.Fresh, nil)
	if err != nil {
		return report, err
	}

	if seed {
		seedReport, err := s.SeedAll(ctx, "")
		if err != nil {
			return report, err
		}
		report = append(report, seedReport...)
	}
	return report, nil
}
