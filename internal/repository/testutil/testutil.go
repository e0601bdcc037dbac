// Package testutil builds throwaway file-backed SQLite databases for
// repository and coordinator tests.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"transhub/internal/db"
	"transhub/internal/snowflake"
)

func init() {
	if err := snowflake.Init(1); err != nil {
		panic("testutil: init snowflake: " + err.Error())
	}
}

// NewTestDB opens a fresh file-backed SQLite database under t.TempDir
// and runs migrations against it. File-backed (not :memory:) so the
// WAL pragma and db.WriteMutex discipline behave the same as
// production.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := t.TempDir() + "/transhub-test.db"
	conn, err := db.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
