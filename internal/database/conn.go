package database

import (
	"context"
	"database/sql"

	"github.com/deppfellow/countstore/internal/errs"
)

// Conn is what statement execution needs: a dialect to render SQL and a
// place to run it. *Engine, *Connection and *Tx all satisfy it.
type Conn interface {
	Dialect() Dialect
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	_ Conn = (*Engine)(nil)
	_ Conn = (*Connection)(nil)
	_ Conn = (*Tx)(nil)
)

// Connection is one connection pinned out of the engine's pool.
//
// The opener must Close it on every exit path. After Close every call
// fails with errs.ErrConnectionClosed.
type Connection struct {
	engine *Engine
	conn   *sql.Conn
	closed bool
}

// Connect pins a connection from the pool.
func (e *Engine) Connect(ctx context.Context) (*Connection, error) {
	conn, err := e.DB.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Connection{engine: e, conn: conn}, nil
}

// Dialect reports the dialect of the owning engine.
func (c *Connection) Dialect() Dialect {
	return c.engine.dialect
}

// Engine returns the engine the connection was pinned from.
func (c *Connection) Engine() *Engine {
	return c.engine
}

// Closed reports whether Close was called.
func (c *Connection) Closed() bool {
	return c.closed
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.closed {
		return nil, errs.ErrConnectionClosed
	}
	c.engine.logStatement(query, args)
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c.closed {
		return nil, errs.ErrConnectionClosed
	}
	c.engine.logStatement(query, args)
	return c.conn.QueryContext(ctx, query, args...)
}

// Begin starts a transaction on this connection.
func (c *Connection) Begin(ctx context.Context) (*Tx, error) {
	if c.closed {
		return nil, errs.ErrConnectionClosed
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{conn: c, tx: tx}, nil
}

// Close returns the connection to the pool. It is safe to call twice.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Tx is a transaction on a pinned Connection.
type Tx struct {
	conn *Connection
	tx   *sql.Tx
	done bool
}

func (t *Tx) Dialect() Dialect {
	return t.conn.Dialect()
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if t.done {
		return nil, errs.ErrConnectionClosed
	}
	t.conn.engine.logStatement(query, args)
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if t.done {
		return nil, errs.ErrConnectionClosed
	}
	t.conn.engine.logStatement(query, args)
	return t.tx.QueryContext(ctx, query, args...)
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	err := t.tx.Commit()
	if err != nil && t.conn.Dialect() == SQLite {
		// A COMMIT refused with SQLITE_BUSY leaves the transaction open on
		// the pinned connection. database/sql already considers it done.
		_, _ = t.conn.conn.ExecContext(context.Background(), "ROLLBACK")
	}
	return err
}

// Rollback aborts the transaction. Calling it after Commit is a no-op.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}
