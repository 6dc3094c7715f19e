// Package tenantctx binds data operations to one tenant's physical database
// for the duration of a single logical operation. The binding travels on the
// context.Context of that operation, never in process-wide state, so
// concurrent operations against different tenants cannot observe or clobber
// each other.
package tenantctx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/store"
	"github.com/Harshitk-cp/tenantctl/internal/tenantdb"
	"go.uber.org/zap"
)

var (
	// ErrActiveTenant is returned when Activate is called while the operation
	// already has an active tenant. Nesting is a caller bug, never retried.
	ErrActiveTenant = errors.New("tenant context already active")

	// ErrNoActiveTenant is returned by DB when the operation has no binding.
	ErrNoActiveTenant = errors.New("no active tenant context")

	ErrTenantNotFound = errors.New("tenant not found")
)

// Binding is the transient reference held while a tenant is active. It owns
// the database handle for the operation's lifetime and nothing else.
type Binding struct {
	Tenant *domain.Tenant
	DB     tenantdb.DB
}

type ctxKey struct{}

// Opener opens the physical database behind a database identifier.
type Opener interface {
	Open(ctx context.Context, identifier string) (tenantdb.DB, error)
}

type Switcher struct {
	tenants domain.TenantStore
	opener  Opener
	log     *zap.Logger
}

func NewSwitcher(tenants domain.TenantStore, opener Opener, log *zap.Logger) *Switcher {
	return &Switcher{tenants: tenants, opener: opener, log: log}
}

// Activate resolves the tenant, opens its database and returns a derived
// context carrying the binding plus a release function. The release function
// must be called on every exit path and is safe to call more than once.
// Callers should prefer WithTenant, which guarantees the release.
func (s *Switcher) Activate(ctx context.Context, tenantID string) (context.Context, func(), error) {
	if _, ok := Current(ctx); ok {
		return ctx, nil, fmt.Errorf("activate %q: %w", tenantID, ErrActiveTenant)
	}

	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ctx, nil, fmt.Errorf("activate %q: %w", tenantID, ErrTenantNotFound)
		}
		return ctx, nil, fmt.Errorf("activate %q: %w", tenantID, err)
	}

	db, err := s.opener.Open(ctx, t.Database())
	if err != nil {
		return ctx, nil, fmt.Errorf("activate %q: open database: %w", tenantID, err)
	}

	s.log.Debug("tenant context activated", zap.String("tenant_id", tenantID))

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := db.Close(); err != nil {
				s.log.Warn("closing tenant database", zap.String("tenant_id", tenantID), zap.Error(err))
			}
			s.log.Debug("tenant context released", zap.String("tenant_id", tenantID))
		})
	}

	return context.WithValue(ctx, ctxKey{}, &Binding{Tenant: t, DB: db}), release, nil
}

// WithTenant runs fn with the tenant activated and releases the binding on
// every exit path, including panics and error returns.
func (s *Switcher) WithTenant(ctx context.Context, tenantID string, fn func(ctx context.Context, b *Binding) error) error {
	tctx, release, err := s.Activate(ctx, tenantID)
	if err != nil {
		return err
	}
	defer release()

	b, _ := Current(tctx)
	return fn(tctx, b)
}

// Current returns the operation's binding, if any.
func Current(ctx context.Context) (*Binding, bool) {
	b, ok := ctx.Value(ctxKey{}).(*Binding)
	return b, ok
}

// DB returns the active tenant's database handle.
func DB(ctx context.Context) (tenantdb.DB, error) {
	b, ok := Current(ctx)
	if !ok {
		return nil, ErrNoActiveTenant
	}
	return b.DB, nil
}
