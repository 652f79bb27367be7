package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	for _, dialect := range []string{"postgres", "sqlite"} {
		t.Run(dialect, func(t *testing.T) {
			files, err := MigrationFiles(dialect)
			require.NoError(t, err)
			assert.Equal(t, []string{"0001_init.up.sql"}, files)
		})
	}
}

func TestMigrateSQLite_InMemory(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := OpenSQLite(ctx, MemoryDSN)
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, MigrateSQLite(ctx, sqlDB))
	// second run is a no-op
	require.NoError(t, MigrateSQLite(ctx, sqlDB))

	for _, table := range []string{"doctors", "patients", "appointments", "event_logs"} {
		var name string
		err := sqlDB.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpenSQLite_FileCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "clinic.db")

	sqlDB, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, MigrateSQLite(ctx, sqlDB))
	assert.FileExists(t, path)
}
