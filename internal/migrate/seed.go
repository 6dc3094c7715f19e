package migrate

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/tenantctl/internal/tenantdb"
	"go.uber.org/zap"
)

// Seeder loads one unit of baseline reference data into the active database.
type Seeder interface {
	Name() string
	Run(ctx context.Context, db tenantdb.DB) error
}

// sqlSeeder runs a fixed portable SQL script. Inserts use ON CONFLICT DO
// NOTHING so re-seeding an already seeded database is harmless.
type sqlSeeder struct {
	name   string
	script string
}

func (s *sqlSeeder) Name() string { return s.name }

func (s *sqlSeeder) Run(ctx context.Context, db tenantdb.DB) error {
	return db.ExecScript(ctx, s.script)
}

// SeedRunner holds the named seeders and the default sequence they run in
// when no class is requested.
type SeedRunner struct {
	log     *zap.Logger
	seeders map[string]Seeder
	order   []string
}

func NewSeedRunner(log *zap.Logger) *SeedRunner {
	r := &SeedRunner{
		log:     log,
		seeders: make(map[string]Seeder),
	}
	for _, s := range defaultSeeders() {
		r.Register(s)
	}
	return r
}

func (r *SeedRunner) Register(s Seeder) {
	if _, ok := r.seeders[s.Name()]; !ok {
		r.order = append(r.order, s.Name())
	}
	r.seeders[s.Name()] = s
}

// Seed runs the named seeder, or the whole default sequence when name is
// empty.
func (r *SeedRunner) Seed(ctx context.Context, db tenantdb.DB, name string) error {
	if name != "" {
		s, ok := r.seeders[name]
		if !ok {
			return fmt.Errorf("seed: unknown seeder %q", name)
		}
		return r.runOne(ctx, db, s)
	}
	for _, n := range r.order {
		if err := r.runOne(ctx, db, r.seeders[n]); err != nil {
			return err
		}
	}
	return nil
}

func (r *SeedRunner) runOne(ctx context.Context, db tenantdb.DB, s Seeder) error {
	r.log.Debug("running seeder", zap.String("seeder", s.Name()))
	if err := s.Run(ctx, db); err != nil {
		return fmt.Errorf("seed: %s: %w", s.Name(), err)
	}
	return nil
}

func defaultSeeders() []Seeder {
	return []Seeder{
		&sqlSeeder{name: "roles", script: `
INSERT INTO roles (id, name) VALUES
	('admin', 'Administrator'),
	('manager', 'Manager'),
	('employee', 'Employee')
ON CONFLICT (id) DO NOTHING;`},
		&sqlSeeder{name: "cost_centers", script: `
INSERT INTO cost_centers (id, name) VALUES
	('general', 'General'),
	('hr', 'Human Resources'),
	('it', 'Information Technology')
ON CONFLICT (id) DO NOTHING;`},
		&sqlSeeder{name: "admin", script: `
INSERT INTO users (id, email, role_id) VALUES
	('admin', 'admin@localhost', 'admin')
ON CONFLICT (id) DO NOTHING;`},
	}
}
