// Package sqlerr specifically handles database driver errors.
//
// It parses cryptic error codes from the database drivers (pgx for
// PostgreSQL, modernc for SQLite) and converts them into
// errs.ExecutionError values with machine-friendly codes and
// user-friendly messages (e.g. turning a NOT NULL violation on
// queries.keywords into QUERY_REQUIRED / "The Keywords is required").
package sqlerr
