package testdb

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskexport/internal/platform/logger"
	"github.com/phrazzld/taskexport/internal/platform/postgres"
)

// EnvDatabaseURL names the environment variable holding the test database URL.
const EnvDatabaseURL = "EXPORTD_TEST_DATABASE_URL"

// TestTimeout bounds setup operations against the test database.
const TestTimeout = 10 * time.Second

// DatabaseURL returns the configured test database URL, skipping the test
// when none is set.
func DatabaseURL(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv(EnvDatabaseURL)
	if dbURL == "" {
		t.Skipf("Skipping integration test - %s environment variable required", EnvDatabaseURL)
	}
	return dbURL
}

// Open connects to the test database and applies all migrations.
// The connection is closed when the test finishes.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", DatabaseURL(t))
	require.NoError(t, err, "Failed to open database connection")

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Minute)

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	migrateLogger, _ := logger.GetTestLogger(t)
	require.NoError(t, db.PingContext(ctx), "Database ping failed")
	require.NoError(t, postgres.Migrate(ctx, db, "up", migrateLogger), "Failed to run migrations")

	return db
}
