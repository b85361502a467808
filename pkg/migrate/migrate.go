package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Dialect-specific subdirectories of a migrations base directory.
const (
	postgresSubdir = "postgres"
	sqliteSubdir   = "sqlite"
)

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

// DirFor returns the migration directory under base for the goose dialect.
func DirFor(base, dialect string) string {
	if dialect == "sqlite3" || dialect == "sqlite" {
		return filepath.Join(base, sqliteSubdir)
	}
	return filepath.Join(base, postgresSubdir)
}

// Source is where migrations are read from: FS when set, the working tree otherwise.
type Source struct {
	FS   fs.FS
	Base string
}

// Disk reads migrations from base on the local filesystem.
func Disk(base string) Source {
	return Source{Base: base}
}

// Dir returns the dialect directory inside the source.
func (s Source) Dir(dialect string) string {
	return DirFor(s.Base, dialect)
}

func (s Source) with(dialect string, fn func(dir string) error) error {
	if dialect == "" {
		dialect = "postgres"
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(s.FS)
	defer goose.SetBaseFS(nil)
	return fn(s.Dir(dialect))
}

// Run executes a goose command such as up, down or status.
func (s Source) Run(ctx context.Context, db *sql.DB, dialect, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if s.Base == "" {
		return fmt.Errorf("dir is required")
	}
	return s.with(dialect, func(dir string) error {
		// RunContext prints status output to stdout (goose internal)
		if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateTo moves the schema up or down to targetVersion (YYYYMMDDHHMMSS).
func (s Source) MigrateTo(ctx context.Context, db *sql.DB, dialect, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	return s.with(dialect, func(dir string) error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == target:
			return nil
		case current < target:
			if err := goose.UpToContext(ctx, db, dir, target); err != nil {
				return fmt.Errorf("goose up-to %d: %w", target, err)
			}
		default:
			if err := goose.DownToContext(ctx, db, dir, target); err != nil {
				return fmt.Errorf("goose down-to %d: %w", target, err)
			}
		}
		return nil
	})
}
