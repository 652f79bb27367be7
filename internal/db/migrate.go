package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Every migration uses IF NOT EXISTS, so running them again is harmless.

func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	return runMigrations("migrations/postgres", func(name, body string) error {
		_, err := pool.Exec(ctx, body)
		return err
	})
}

func MigrateSQLite(ctx context.Context, sqlDB *sql.DB) error {
	return runMigrations("migrations/sqlite", func(name, body string) error {
		_, err := sqlDB.ExecContext(ctx, body)
		return err
	})
}

// MigrationFiles lists the .up.sql files for a dialect in the order they run.
func MigrationFiles(dialect string) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func runMigrations(dir string, exec func(name, body string) error) error {
	files, err := MigrationFiles(strings.TrimPrefix(dir, "migrations/"))
	if err != nil {
		return err
	}

	for _, file := range files {
		body, err := migrationsFS.ReadFile(dir + "/" + file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := exec(file, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
