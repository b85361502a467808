package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/ordersync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordersync-backend/pkg/migrate"
)

func readMigration(t *testing.T, dialect, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", dialect, "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration found for %s", suffix, dialect)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestOrderStateMigrationContainsConstraints(t *testing.T) {
	for _, dialect := range []string{"postgres", "sqlite"} {
		content := readMigration(t, dialect, "create_order_state_tables")
		checks := []string{
			"CREATE TABLE IF NOT EXISTS order_status (",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_order_status_serial ON order_status (serial)",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_order_status_by_department ON order_status_by_department (serial, department)",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_order_reads ON order_reads (serial, operator)",
			"CHECK (status IN ('nuovo', 'letto', 'in_preparazione', 'pronto'))",
			"DROP TABLE IF EXISTS partial_order_residues",
		}
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", dialect, sub)
			}
		}
	}
}

func TestOrderLineMigrationContainsTables(t *testing.T) {
	for _, dialect := range []string{"postgres", "sqlite"} {
		content := readMigration(t, dialect, "create_order_line_tables")
		checks := []string{
			"CREATE TABLE IF NOT EXISTS modified_order_lines",
			"CREATE TABLE IF NOT EXISTS order_edits",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_unavailable_lines ON unavailable_lines (serial, article_code, department)",
			"DROP TABLE IF EXISTS modified_order_lines",
		}
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", dialect, sub)
			}
		}
	}
}

func TestSQLiteMigrationsAvoidPostgresTypes(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "sqlite", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		for _, banned := range []string{"BIGSERIAL", "TIMESTAMPTZ", "now()"} {
			if strings.Contains(string(data), banned) {
				t.Errorf("%s contains postgres-only %q", filepath.Base(path), banned)
			}
		}
	}
}

func TestValidateDialectsAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDialects("migrations"); err != nil {
		t.Fatalf("validate shipped migrations: %v", err)
	}
	names, err := migrate.ValidateDir(migrate.DirFor("migrations", "postgres"))
	if err != nil {
		t.Fatalf("validate postgres: %v", err)
	}
	if len(names) != 3 || !strings.HasSuffix(names[0], "_create_order_state_tables.sql") {
		t.Fatalf("unexpected migration order %v", names)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to be rejected")
	}
}

func TestValidateDirRejectsDownBeforeUp(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x (id int);\n"
	if err := os.WriteFile(filepath.Join(dir, "20250101000000_swap.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected reversed markers to be rejected")
	}
}

func TestCreateSQLMigrationsWritesEveryDialect(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2025, 10, 2, 8, 30, 0, 0, time.UTC)
	paths, err := migrate.CreateSQLMigrations(base, "Add Pickup Index!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected one file per dialect, got %v", paths)
	}
	for _, path := range paths {
		if filepath.Base(path) != "20251002083000_add_pickup_index.sql" {
			t.Fatalf("unexpected path %s", path)
		}
	}
	if err := migrate.ValidateDialects(base); err != nil {
		t.Fatalf("generated migrations should validate: %v", err)
	}

	if _, err := migrate.CreateSQLMigrations(base, "add pickup index", now); err == nil {
		t.Fatal("expected duplicate version to be rejected")
	}
	if _, err := migrate.CreateSQLMigrations(base, " !! ", now); err == nil {
		t.Fatal("expected empty sanitized name to be rejected")
	}
}

func TestValidateDialectsDetectsDrift(t *testing.T) {
	base := t.TempDir()
	if _, err := migrate.CreateSQLMigrations(base, "first", time.Date(2025, 10, 2, 8, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("create: %v", err)
	}
	extra := filepath.Join(migrate.DirFor(base, "postgres"), "20251003000000_postgres_only.sql")
	if err := os.WriteFile(extra, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := migrate.ValidateDialects(base)
	if err == nil || !strings.Contains(err.Error(), "postgres_only") {
		t.Fatalf("expected drift error naming the file, got %v", err)
	}
}

func TestEmbeddedMigrateToVersionOnSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	ctx := context.Background()
	source := migrate.Embedded()

	if err := source.MigrateTo(ctx, sqlDB, "sqlite3", "20251001090500"); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if conn.Migrator().HasTable("article_departments") {
		t.Fatal("article_departments should be dropped below its version")
	}
	if !conn.Migrator().HasTable("order_edits") {
		t.Fatal("earlier tables must survive")
	}

	if err := source.MigrateTo(ctx, sqlDB, "sqlite3", "20251001091000"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if !conn.Migrator().HasTable("article_departments") {
		t.Fatal("article_departments should be back")
	}
	if err := source.MigrateTo(ctx, sqlDB, "sqlite3", "not-a-version"); err == nil {
		t.Fatal("expected malformed version to fail")
	}
}
