package store

import (
	"context"
	"database/sql"
	"testing"
)

// ExecRaw runs an arbitrary statement against the store for tests that check
// schema-level guarantees.
func ExecRaw(t *testing.T, s *Store, query string, args ...any) (sql.Result, error) {
	t.Helper()
	return s.db.ExecContext(context.Background(), query, args...)
}
