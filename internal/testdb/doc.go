// Package testdb provides helpers for integration tests that need a real
// PostgreSQL database.
//
// Tests call DatabaseURL or Open, both of which skip the calling test when
// EXPORTD_TEST_DATABASE_URL is not set. Open returns a *sql.DB with the
// step-history schema migrated to the latest version and registers cleanup
// on the test.
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.Open(t)
//	    s := postgres.NewStepStore(db)
//	    ...
//	}
package testdb
