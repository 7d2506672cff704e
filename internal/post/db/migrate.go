package postdb

import (
	"context"
	"database/sql"
	"embed"

	"github.com/nao1215/postapi/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrateSQLite はSQLite用のマイグレーションを適用する。
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	return migration.Run(ctx, db, migrationsFS, "migrations/sqlite", migration.SQLite)
}

// MigratePostgres はPostgreSQL用のマイグレーションを適用する。
func MigratePostgres(ctx context.Context, db *sql.DB) error {
	return migration.Run(ctx, db, migrationsFS, "migrations/postgres", migration.Postgres)
}
