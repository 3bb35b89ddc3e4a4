// Package pgxutil runs pgx queries over a database/sql pool.
package pgxutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// withConn borrows a pooled connection and hands fn its underlying *pgx.Conn.
func withConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer conn.Close() //nolint:errcheck // returning a conn to the pool only fails if it is already closed

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T; expected *stdlib.Conn", dc)
		}
		return fn(std.Conn())
	})
}

// CollectOne runs query and maps its single row onto T by column name.
// It returns pgx.ErrNoRows when the query yields nothing and
// pgx.ErrTooManyRows when it yields more than one row.
func CollectOne[T any](ctx context.Context, db *sql.DB, query string, args ...any) (T, error) {
	var out T
	err := withConn(ctx, db, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
		return err
	})
	return out, err
}
