// Package repository is Trans-Hub's Persistence Handler: the sole
// component allowed to touch SQL (spec §4.2). Every other component
// talks to the Store type, never to database/sql directly.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// dbtx abstracts over *sql.DB and *sql.Tx so repositories work
// identically inside and outside an explicit transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableStringFromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

// deleteByIDColumn deletes every row of table whose column matches one
// of ids, batching the IN clause by hand the way the teacher's
// feedRepository.DeleteBatch does.
func deleteByIDColumn(ctx context.Context, db dbtx, table, column string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	result, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, table, column, placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return result.RowsAffected()
}
