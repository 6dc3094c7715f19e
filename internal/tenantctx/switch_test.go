package tenantctx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/store"
	"github.com/Harshitk-cp/tenantctl/internal/tenantdb"
	"go.uber.org/zap"
)

// mockTenantStore implements domain.TenantStore for testing.
type mockTenantStore struct {
	tenants map[string]*domain.Tenant
}

func newMockTenantStore(ids ...string) *mockTenantStore {
	m := &mockTenantStore{tenants: make(map[string]*domain.Tenant)}
	for _, id := range ids {
		m.tenants[id] = &domain.Tenant{ID: id, DatabaseIdentifier: id}
	}
	return m
}

func (m *mockTenantStore) Create(_ context.Context, t *domain.Tenant) error {
	if _, ok := m.tenants[t.ID]; ok {
		return store.ErrConflict
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *mockTenantStore) Get(_ context.Context, id string) (*domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (m *mockTenantStore) List(_ context.Context, _ bool) ([]domain.Tenant, error) {
	var out []domain.Tenant
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTenantStore) SetProvisioningState(_ context.Context, id string, state domain.ProvisioningState) error {
	t, ok := m.tenants[id]
	if !ok {
		return store.ErrNotFound
	}
	t.ProvisioningState = state
	return nil
}

func (m *mockTenantStore) Delete(_ context.Context, id string) error {
	if _, ok := m.tenants[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tenants, id)
	return nil
}

// noopDB implements tenantdb.DB and records whether it was closed.
type noopDB struct {
	identifier string
	mu         sync.Mutex
	closed     bool
}

func (d *noopDB) Driver() domain.Driver { return domain.DriverSQLite }

func (d *noopDB) Exec(context.Context, string, ...any) error { return nil }

func (d *noopDB) ExecScript(context.Context, string) error { return nil }

func (d *noopDB) QueryStrings(context.Context, string, ...any) ([]string, error) { return nil, nil }

func (d *noopDB) QueryInts(context.Context, string, ...any) ([]int, error) { return nil, nil }

func (d *noopDB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *noopDB) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type mockOpener struct {
	mu     sync.Mutex
	opened []*noopDB
}

func (o *mockOpener) Open(_ context.Context, identifier string) (tenantdb.DB, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	db := &noopDB{identifier: identifier}
	o.opened = append(o.opened, db)
	return db, nil
}

func newTestSwitcher(ids ...string) (*Switcher, *mockOpener) {
	opener := &mockOpener{}
	return NewSwitcher(newMockTenantStore(ids...), opener, zap.NewNop()), opener
}

func TestActivateBindsTenant(t *testing.T) {
	s, _ := newTestSwitcher("acme")
	ctx := context.Background()

	tctx, release, err := s.Activate(ctx, "acme")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer release()

	b, ok := Current(tctx)
	if !ok {
		t.Fatal("expected a binding on the derived context")
	}
	if b.Tenant.ID != "acme" {
		t.Fatalf("expected tenant acme, got %s", b.Tenant.ID)
	}

	// the original context must stay unbound
	if _, ok := Current(ctx); ok {
		t.Fatal("expected the parent context to have no binding")
	}
}

func TestActivateUnknownTenant(t *testing.T) {
	s, _ := newTestSwitcher()

	_, _, err := s.Activate(context.Background(), "ghost")
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestActivateRejectsNesting(t *testing.T) {
	s, _ := newTestSwitcher("acme", "globex")

	tctx, release, err := s.Activate(context.Background(), "acme")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer release()

	_, _, err = s.Activate(tctx, "globex")
	if !errors.Is(err, ErrActiveTenant) {
		t.Fatalf("expected ErrActiveTenant, got %v", err)
	}
}

func TestReleaseClosesDatabaseOnce(t *testing.T) {
	s, opener := newTestSwitcher("acme")

	_, release, err := s.Activate(context.Background(), "acme")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	release()
	release() // idempotent

	if len(opener.opened) != 1 || !opener.opened[0].isClosed() {
		t.Fatal("expected the tenant database to be closed exactly once")
	}
}

func TestWithTenantReleasesOnError(t *testing.T) {
	s, opener := newTestSwitcher("acme")
	boom := errors.New("boom")

	err := s.WithTenant(context.Background(), "acme", func(context.Context, *Binding) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}
	if !opener.opened[0].isClosed() {
		t.Fatal("expected the binding to be released on the error path")
	}
}

func TestWithTenantReleasesOnPanic(t *testing.T) {
	s, opener := newTestSwitcher("acme")

	func() {
		defer func() { _ = recover() }()
		_ = s.WithTenant(context.Background(), "acme", func(context.Context, *Binding) error {
			panic("boom")
		})
	}()

	if !opener.opened[0].isClosed() {
		t.Fatal("expected the binding to be released when the callback panics")
	}
}

func TestConcurrentActivationsAreIndependent(t *testing.T) {
	s, _ := newTestSwitcher("acme", "globex")

	var wg sync.WaitGroup
	for _, id := range []string{"acme", "globex"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				err := s.WithTenant(context.Background(), id, func(ctx context.Context, b *Binding) error {
					if b.Tenant.ID != id {
						t.Errorf("operation for %s observed binding for %s", id, b.Tenant.ID)
					}
					db, err := DB(ctx)
					if err != nil {
						return err
					}
					if db != b.DB {
						t.Errorf("DB(ctx) does not match the operation's binding")
					}
					return nil
				})
				if err != nil {
					t.Errorf("activation for %s failed: %v", id, err)
				}
			}
		}(id)
	}
	wg.Wait()
}

func TestDBWithoutActivation(t *testing.T) {
	if _, err := DB(context.Background()); !errors.Is(err, ErrNoActiveTenant) {
		t.Fatalf("expected ErrNoActiveTenant, got %v", err)
	}
}
