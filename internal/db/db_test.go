package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	db := setupTestDB(t)

	latest, err := LatestMigrationVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, latest, version)

	for _, table := range []string{"rig_sessions", "spawns"} {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp(Migrations()))
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.MigrateDown(Migrations()))
	version, _, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name='spawns'`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp(Migrations()))
	version, _, err = db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestMigrateVersion_Fresh(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestLatestMigrationVersion(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		want    uint
		wantErr bool
	}{
		{
			name: "picks highest",
			fsys: fstest.MapFS{
				"000001_a.up.sql":   {},
				"000001_a.down.sql": {},
				"000007_b.up.sql":   {},
				"000003_c.up.sql":   {},
			},
			want: 7,
		},
		{
			name:    "empty",
			fsys:    fstest.MapFS{},
			wantErr: true,
		},
		{
			name:    "unparseable names",
			fsys:    fstest.MapFS{"init.up.sql": {}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LatestMigrationVersion(tt.fsys)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
