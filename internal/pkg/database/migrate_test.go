package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return url
}

func TestRunMigrations_UpIsIdempotent(t *testing.T) {
	url := testDatabaseURL(t)

	require.NoError(t, RunMigrations(url))
	require.NoError(t, RunMigrations(url))

	db, err := NewPostgreSQLDB(context.Background(), url, PoolConfig{})
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "attendance_sessions", "attendance_breaks", "leave_requests"} {
		var exists bool
		err := db.QueryRow(context.Background(),
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
			table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}

func TestNewMigrator_EmbeddedSource(t *testing.T) {
	url := testDatabaseURL(t)

	m, err := NewMigrator(url)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, RunMigrations(url))
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}
