//go:build integration

// Package testdb provides utilities for database integration tests.
//
// Each test runs in its own transaction, which is rolled back when the test
// completes, so tests may run in parallel against one database without
// cleanup between them:
//
//	func TestMyFeature(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        s := postgres.NewPostgresFileStore(tx, nil)
//	        // ...
//	    })
//	}
//
// Tests are skipped when DATABASE_URL is not set.
package testdb
