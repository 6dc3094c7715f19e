package provision

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// SQLiteProvisioner keeps one database file per tenant under a single
// directory. The file path is derived deterministically from the identifier.
type SQLiteProvisioner struct {
	dir string
}

func NewSQLiteProvisioner(dir string) *SQLiteProvisioner {
	return &SQLiteProvisioner{dir: dir}
}

func (p *SQLiteProvisioner) Path(identifier string) string {
	return filepath.Join(p.dir, identifier+".db")
}

func (p *SQLiteProvisioner) CreateDatabase(_ context.Context, identifier string) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return &Error{Op: "create", Identifier: identifier, Err: err}
	}
	f, err := os.OpenFile(p.Path(identifier), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Error{Op: "create", Identifier: identifier, Err: err}
	}
	return f.Close()
}

func (p *SQLiteProvisioner) DropDatabase(_ context.Context, identifier string) error {
	err := os.Remove(p.Path(identifier))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "drop", Identifier: identifier, Err: err}
	}
	return nil
}
