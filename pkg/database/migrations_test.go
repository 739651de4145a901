package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations_Ordering(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":     {Data: []byte("SELECT 1;")},
		"002_second.sql":    {Data: []byte("SELECT 1;")},
		"001_first_one.sql": {Data: []byte("SELECT 1;")},
		"README.md":         {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first_one", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, 10, migrations[2].Version)
}

func TestLoadMigrations_Errors(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "duplicate")
}

func TestMigrator_RunEmbeddedTwice(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	fsys, err := EmbeddedMigrations(DriverSQLite)
	require.NoError(t, err)

	m := NewMigrator(db, zap.NewNop())
	require.NoError(t, m.Run(ctx, fsys))
	require.NoError(t, m.Run(ctx, fsys))

	applied, err := m.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.True(t, applied[1])
	assert.True(t, applied[2])

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM approval_queue"))
	assert.Zero(t, count)
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	err := m.Run(ctx, fstest.MapFS{"001_broken.sql": {Data: []byte("CREATE TABLE (")}})
	require.Error(t, err)

	applied, err := m.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.False(t, applied[1])
}

func TestNormalizeDriver(t *testing.T) {
	assert.Equal(t, DriverSQLite, NormalizeDriver(""))
	assert.Equal(t, DriverSQLite, NormalizeDriver("SQLite"))
	assert.Equal(t, DriverPostgres, NormalizeDriver("postgres"))
	assert.Equal(t, DriverPostgres, NormalizeDriver("pgx"))
}

func TestNew_PostgresRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "postgres"}, zap.NewNop())
	assert.Error(t, err)
}
