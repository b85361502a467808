package migrate

import (
	"context"
	"database/sql"
	"embed"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary, so tooling and tests do not
// depend on the working directory.
func Embedded() Source {
	return Source{FS: embedded, Base: "migrations"}
}

// RunEmbedded runs a goose command against the embedded migrations.
func RunEmbedded(ctx context.Context, db *sql.DB, dialect string, command string, args ...string) error {
	return Embedded().Run(ctx, db, dialect, command, args...)
}
