package core

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/deppfellow/countstore/internal/database"
	"github.com/deppfellow/countstore/internal/errs"
	"github.com/deppfellow/countstore/internal/sqlerr"
)

// Row is one stored row, values in the table's column order.
// Integer columns hold int64, string columns hold string, NULL is nil.
type Row struct {
	columns []string
	values  []any
}

// NewRow pairs column names with values. Used by tests and mappings.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

// Columns returns the column names.
func (r Row) Columns() []string { return r.columns }

// Values returns the values in column order.
func (r Row) Values() []any { return r.values }

// Get returns the value of the named column, or nil.
func (r Row) Get(name string) any {
	for i, c := range r.columns {
		if c == name {
			return r.values[i]
		}
	}
	return nil
}

// Int64 returns an integer column value.
func (r Row) Int64(name string) (int64, bool) {
	v, ok := r.Get(name).(int64)
	return v, ok
}

// Text returns a string column value.
func (r Row) Text(name string) (string, bool) {
	v, ok := r.Get(name).(string)
	return v, ok
}

// String formats the row as a tuple, e.g. (1, "Trump", 5).
func (r Row) String() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		switch v := v.(type) {
		case nil:
			parts[i] = "NULL"
		case string:
			parts[i] = strconv.Quote(v)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Result is the outcome of Execute.
//
// For an insert it carries the stored row and its primary key. For a select
// it wraps the open cursor: iterate it once with Rows (or All) and Close it.
type Result struct {
	table    *Table
	inserted *Row
	rows     *sql.Rows
	consumed bool
}

// Execute runs stmt on conn.
//
// It fails with *errs.ExecutionError when conn is nil or closed, when the
// statement does not render (unknown column, bad predicate) and when the
// engine rejects it (e.g. NOT NULL on a required column). A rejected insert
// changes nothing.
func Execute(ctx context.Context, conn database.Conn, stmt Statement) (*Result, error) {
	if conn == nil {
		return nil, errs.NewExecutionError("CONNECTION_CLOSED", "no connection", nil)
	}
	if stmt == nil || stmt.Table() == nil {
		return nil, errs.NewExecutionError("INVALID_STATEMENT", "statement has no table", nil)
	}

	query, args, err := stmt.SQL(conn.Dialect())
	if err != nil {
		return nil, sqlerr.HandleContextError(ctx, err)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlerr.HandleContextError(ctx, err)
	}

	res := &Result{table: stmt.Table()}

	if _, ok := stmt.(*InsertStatement); !ok {
		res.rows = rows
		return res, nil
	}

	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, sqlerr.HandleContextError(ctx, err)
		}
		return nil, errs.NewExecutionError("INSERT_FAILED", "insert returned no row", nil)
	}
	row, err := scanRow(res.table, rows)
	if err != nil {
		return nil, sqlerr.HandleContextError(ctx, err)
	}
	if err := rows.Close(); err != nil {
		return nil, sqlerr.HandleContextError(ctx, err)
	}
	res.inserted = &row
	res.consumed = true
	return res, nil
}

// InsertedPrimaryKey returns the primary key the engine assigned, or 0 when
// the result is not an insert or the table has no primary key.
func (r *Result) InsertedPrimaryKey() int64 {
	if r.inserted == nil {
		return 0
	}
	pk, ok := r.table.PrimaryKey()
	if !ok {
		return 0
	}
	id, _ := r.inserted.Int64(pk.Name)
	return id
}

// Row returns the stored row of an insert.
func (r *Result) Row() (Row, bool) {
	if r.inserted == nil {
		return Row{}, false
	}
	return *r.inserted, true
}

// Rows lazily yields selected rows. The cursor is closed when iteration
// finishes or the loop breaks; a Result can be iterated once.
func (r *Result) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if r.rows == nil || r.consumed {
			return
		}
		r.consumed = true
		defer r.rows.Close()

		for r.rows.Next() {
			row, err := scanRow(r.table, r.rows)
			if err != nil {
				yield(Row{}, sqlerr.HandleError(err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := r.rows.Err(); err != nil {
			yield(Row{}, sqlerr.HandleError(err))
		}
	}
}

// All drains the result into a slice.
func (r *Result) All() ([]Row, error) {
	var out []Row
	for row, err := range r.Rows() {
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Close releases the cursor of an unconsumed select.
func (r *Result) Close() error {
	if r.rows == nil {
		return nil
	}
	r.consumed = true
	return r.rows.Close()
}

func scanRow(t *Table, rows *sql.Rows) (Row, error) {
	holders := make([]any, len(t.columns))
	for i, c := range t.columns {
		if c.Type.Kind == KindInteger {
			holders[i] = new(sql.NullInt64)
		} else {
			holders[i] = new(sql.NullString)
		}
	}

	if err := rows.Scan(holders...); err != nil {
		return Row{}, err
	}

	values := make([]any, len(holders))
	for i, h := range holders {
		switch h := h.(type) {
		case *sql.NullInt64:
			if h.Valid {
				values[i] = h.Int64
			}
		case *sql.NullString:
			if h.Valid {
				values[i] = h.String
			}
		}
	}

	return Row{columns: t.ColumnNames(), values: values}, nil
}
