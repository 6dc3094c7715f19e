// Package migrate applies ordered SQL migrations and seed data to whichever
// database is currently active, so the same code path serves the central
// registry database and every tenant database.
package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/tenantdb"
	"go.uber.org/zap"
)

type Mode string

const (
	// Incremental applies only not-yet-applied scripts, in version order.
	// Re-running with nothing new is a no-op.
	Incremental Mode = "incremental"
	// Fresh drops every object in the database and replays the whole
	// migration history from empty. Destructive and irreversible.
	Fresh Mode = "fresh"
)

// Error wraps a schema application failure with the script that caused it.
type Error struct {
	Script string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("migrate: script %s: %v", e.Script, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Migrator struct {
	log *zap.Logger
}

func NewMigrator(log *zap.Logger) *Migrator {
	return &Migrator{log: log}
}

// Run applies the migration scripts in source to db according to mode.
// Scripts are named NNNN_description.sql and applied in version order;
// each script runs in its own transaction together with the bookkeeping row,
// so a failed script leaves no partial version record.
func (m *Migrator) Run(ctx context.Context, db tenantdb.DB, source fs.FS, mode Mode) error {
	if mode == Fresh {
		if err := m.dropAll(ctx, db); err != nil {
			return err
		}
	}
	return m.up(ctx, db, source)
}

func (m *Migrator) up(ctx context.Context, db tenantdb.DB, source fs.FS) error {
	list, err := fs.ReadDir(source, ".")
	if err != nil {
		return fmt.Errorf("migrate: read source: %w", err)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	if err := db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
	); err != nil {
		return fmt.Errorf("migrate: ensure version table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	pending := 0
	for _, f := range list {
		v, err := scriptVersion(f.Name())
		if err != nil {
			return err
		}
		if v > current {
			pending++
		}
	}
	if pending > 0 {
		m.log.Info("applying migrations", zap.Int("migration_count", pending))
	}

	for _, f := range list {
		n := f.Name()
		v, err := scriptVersion(n)
		if err != nil {
			return err
		}

		// re-read inside the loop so an out-of-order listing can never
		// apply an older script over a newer schema
		c, err := currentVersion(ctx, db)
		if err != nil {
			return err
		}
		if v <= c {
			continue
		}

		m.log.Debug("executing migration", zap.String("migration_name", n))
		body, err := fs.ReadFile(source, n)
		if err != nil {
			return &Error{Script: n, Err: err}
		}

		script := fmt.Sprintf("%s\nINSERT INTO schema_migrations (version, name) VALUES (%d, '%s');",
			string(body), v, strings.ReplaceAll(n, "'", "''"))
		if err := db.ExecScript(ctx, script); err != nil {
			return &Error{Script: n, Err: err}
		}
	}

	return nil
}

func (m *Migrator) dropAll(ctx context.Context, db tenantdb.DB) error {
	switch db.Driver() {
	case domain.DriverPostgres:
		return db.ExecScript(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`)
	case domain.DriverSQLite:
		tables, err := db.QueryStrings(ctx,
			`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'`,
		)
		if err != nil {
			return fmt.Errorf("migrate: list objects: %w", err)
		}
		for _, t := range tables {
			if err := db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, t)); err != nil {
				if err2 := db.Exec(ctx, fmt.Sprintf(`DROP VIEW IF EXISTS "%s"`, t)); err2 != nil {
					return fmt.Errorf("migrate: drop %q: %w", t, err)
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("migrate: unsupported driver %q", db.Driver())
	}
}

func currentVersion(ctx context.Context, db tenantdb.DB) (int, error) {
	versions, err := db.QueryInts(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("migrate: read version: %w", err)
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[0], nil
}

// scriptVersion extracts the version number from a file named like
// "0002_migration_name.sql".
func scriptVersion(filename string) (int, error) {
	v, err := strconv.Atoi(strings.Split(filename, "_")[0])
	if err != nil {
		return 0, fmt.Errorf("migrate: script %q has no numeric version prefix", filename)
	}
	return v, nil
}
