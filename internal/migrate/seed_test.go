package migrate

import (
	"context"
	"strings"
	"testing"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"go.uber.org/zap"
)

func TestSeedRunnerDefaultSequence(t *testing.T) {
	db := newFakeDB(domain.DriverPostgres)
	r := NewSeedRunner(zap.NewNop())

	if err := r.Seed(context.Background(), db, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// roles must come before the admin account that references them
	var rolesIdx, adminIdx int
	for i, s := range db.scripts {
		if strings.Contains(s, "INSERT INTO roles") {
			rolesIdx = i
		}
		if strings.Contains(s, "INSERT INTO users") {
			adminIdx = i
		}
	}
	if rolesIdx >= adminIdx {
		t.Fatalf("expected roles seeder to run before admin, got order %v", db.scripts)
	}
}

func TestSeedRunnerByName(t *testing.T) {
	db := newFakeDB(domain.DriverPostgres)
	r := NewSeedRunner(zap.NewNop())

	if err := r.Seed(context.Background(), db, "cost_centers"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(db.scripts) != 1 || !strings.Contains(db.scripts[0], "INSERT INTO cost_centers") {
		t.Fatalf("expected a single cost_centers script, got %v", db.scripts)
	}
}

func TestSeedRunnerUnknownName(t *testing.T) {
	db := newFakeDB(domain.DriverPostgres)
	r := NewSeedRunner(zap.NewNop())

	if err := r.Seed(context.Background(), db, "nope"); err == nil {
		t.Fatal("expected an error for an unknown seeder")
	}
}

func TestSeedRunnerCustomSeeder(t *testing.T) {
	db := newFakeDB(domain.DriverPostgres)
	r := NewSeedRunner(zap.NewNop())
	r.Register(&sqlSeeder{name: "demo", script: "INSERT INTO roles (id, name) VALUES ('demo', 'Demo');"})

	if err := r.Seed(context.Background(), db, "demo"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(db.scripts) != 1 {
		t.Fatalf("expected one script, got %d", len(db.scripts))
	}
}
