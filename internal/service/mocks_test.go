package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing/fstest"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/migrate"
	"github.com/Harshitk-cp/tenantctl/internal/store"
	"github.com/Harshitk-cp/tenantctl/internal/tenantctx"
	"github.com/Harshitk-cp/tenantctl/internal/tenantdb"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mockTenantStore implements domain.TenantStore for testing.
type mockTenantStore struct {
	mu      sync.Mutex
	tenants map[string]*domain.Tenant
	order   []string
}

func newMockTenantStore() *mockTenantStore {
	return &mockTenantStore{tenants: make(map[string]*domain.Tenant)}
}

func (m *mockTenantStore) Create(_ context.Context, t *domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; ok {
		return store.ErrConflict
	}
	if t.DatabaseIdentifier == "" {
		t.DatabaseIdentifier = t.ID
	}
	if t.ProvisioningState == "" {
		t.ProvisioningState = domain.ProvisioningPending
	}
	cp := *t
	m.tenants[t.ID] = &cp
	m.order = append(m.order, t.ID)
	return nil
}

func (m *mockTenantStore) Get(_ context.Context, id string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTenantStore) List(_ context.Context, _ bool) ([]domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Tenant
	for _, id := range m.order {
		if t, ok := m.tenants[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTenantStore) SetProvisioningState(_ context.Context, id string, state domain.ProvisioningState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return store.ErrNotFound
	}
	t.ProvisioningState = state
	return nil
}

func (m *mockTenantStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tenants, id)
	return nil
}

// mockDomainStore implements domain.DomainStore for testing.
type mockDomainStore struct {
	mu      sync.Mutex
	domains map[string]*domain.Domain
}

func newMockDomainStore() *mockDomainStore {
	return &mockDomainStore{domains: make(map[string]*domain.Domain)}
}

func (m *mockDomainStore) Create(_ context.Context, d *domain.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[d.Domain]; ok {
		return store.ErrConflict
	}
	d.ID = uuid.New()
	cp := *d
	m.domains[d.Domain] = &cp
	return nil
}

func (m *mockDomainStore) GetByDomain(_ context.Context, name string) (*domain.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.domains[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDomainStore) ListByTenant(_ context.Context, tenantID string) ([]domain.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Domain
	for _, d := range m.domains {
		if d.TenantID == tenantID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDomainStore) DeleteByTenant(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, d := range m.domains {
		if d.TenantID == tenantID {
			delete(m.domains, name)
		}
	}
	return nil
}

// mockProvisioner implements domain.Provisioner and records every call.
type mockProvisioner struct {
	mu         sync.Mutex
	created    map[string]bool
	dropped    []string
	failCreate error
	failDrop   error
}

func newMockProvisioner() *mockProvisioner {
	return &mockProvisioner{created: make(map[string]bool)}
}

func (m *mockProvisioner) CreateDatabase(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.created[identifier] = true
	return nil
}

func (m *mockProvisioner) DropDatabase(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDrop != nil {
		return m.failDrop
	}
	delete(m.created, identifier)
	m.dropped = append(m.dropped, identifier)
	return nil
}

func (m *mockProvisioner) exists(identifier string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created[identifier]
}

var versionRow = regexp.MustCompile(`INSERT INTO schema_migrations \(version, name\) VALUES \((\d+)`)

// fakeDB emulates a tenant database: a schema_migrations table and the list
// of executed scripts.
type fakeDB struct {
	mu      sync.Mutex
	applied []int
	scripts []string
	failOn  string
}

func (f *fakeDB) Driver() domain.Driver { return domain.DriverPostgres }

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, sql)
	return nil
}

func (f *fakeDB) ExecScript(_ context.Context, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(script, f.failOn) {
		return errors.New("syntax error")
	}
	if strings.Contains(script, "DROP SCHEMA public CASCADE") {
		f.applied = nil
	}
	if m := versionRow.FindStringSubmatch(script); m != nil {
		v, _ := strconv.Atoi(m[1])
		f.applied = append(f.applied, v)
	}
	f.scripts = append(f.scripts, script)
	return nil
}

func (f *fakeDB) QueryStrings(_ context.Context, _ string, _ ...any) ([]string, error) {
	return nil, nil
}

func (f *fakeDB) QueryInts(_ context.Context, sql string, _ ...any) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.Contains(sql, "MAX(version)") {
		max := 0
		for _, v := range f.applied {
			if v > max {
				max = v
			}
		}
		return []int{max}, nil
	}
	return nil, nil
}

func (f *fakeDB) Close() error { return nil }

// fakeOpener hands out one persistent fakeDB per database identifier, so
// repeated activations see the same simulated database state.
type fakeOpener struct {
	mu     sync.Mutex
	dbs    map[string]*fakeDB
	failOn map[string]string // identifier -> script fragment that fails
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{dbs: make(map[string]*fakeDB), failOn: make(map[string]string)}
}

func (o *fakeOpener) Open(_ context.Context, identifier string) (tenantdb.DB, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	db, ok := o.dbs[identifier]
	if !ok {
		db = &fakeDB{failOn: o.failOn[identifier]}
		o.dbs[identifier] = db
	}
	return db, nil
}

// stubConfirmer implements Confirmer with a fixed answer.
type stubConfirmer struct {
	answer  bool
	prompts []string
}

func (c *stubConfirmer) Confirm(prompt string) (bool, error) {
	c.prompts = append(c.prompts, prompt)
	return c.answer, nil
}

func tenantTestSource() fstest.MapFS {
	return fstest.MapFS{
		"0001_roles.sql": {Data: []byte("CREATE TABLE roles (id TEXT PRIMARY KEY, name TEXT NOT NULL);")},
		"0002_users.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY, email TEXT, role_id TEXT);")},
	}
}

func centralTestSource() fstest.MapFS {
	return fstest.MapFS{
		"0001_tenants.sql": {Data: []byte("CREATE TABLE tenants (id TEXT PRIMARY KEY);")},
		"0002_domains.sql": {Data: []byte("CREATE TABLE domains (id TEXT PRIMARY KEY);")},
	}
}

type testEnv struct {
	svc         *LifecycleService
	tenants     *mockTenantStore
	domains     *mockDomainStore
	provisioner *mockProvisioner
	opener      *fakeOpener
	registryDB  *fakeDB
	confirmer   *stubConfirmer
}

func newTestEnv() *testEnv {
	env := &testEnv{
		tenants:     newMockTenantStore(),
		domains:     newMockDomainStore(),
		provisioner: newMockProvisioner(),
		opener:      newFakeOpener(),
		registryDB:  &fakeDB{},
		confirmer:   &stubConfirmer{},
	}
	log := zap.NewNop()
	env.svc = NewLifecycleService(LifecycleOpts{
		Tenants:       env.tenants,
		Domains:       env.domains,
		Provisioner:   env.provisioner,
		Switcher:      tenantctx.NewSwitcher(env.tenants, env.opener, log),
		Migrator:      migrate.NewMigrator(log),
		Seeds:         migrate.NewSeedRunner(log),
		RegistryDB:    env.registryDB,
		CentralSource: centralTestSource(),
		TenantSource:  tenantTestSource(),
		Confirmer:     env.confirmer,
		Logger:        log,
	})
	return env
}

func (e *testEnv) mustCreate(ctx context.Context, id, dom string) *domain.Tenant {
	t, err := e.svc.CreateTenant(ctx, CreateTenantOpts{ID: id, Domain: dom})
	if err != nil {
		panic(err)
	}
	return t
}
