package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

// ErrStoreUnavailable is returned by every store operation when the
// connection has not been opened or was already closed.
var ErrStoreUnavailable = errors.New("store unavailable")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the entity accessors. It is embedded by DB for reads outside
// a batch and by Tx for everything done inside one.
type Queries struct {
	conn querier
	db   *DB
}

// DB represents the database connection
type DB struct {
	*Queries

	conn   *sql.DB
	closed atomic.Bool
	// writeSem admits one write transaction at a time across the process.
	writeSem chan struct{}
}

// New opens the SQLite database at dbPath. The connection runs in WAL mode so
// readers see the last committed state while a batch holds the write lock.
func New(dbPath string) (*DB, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	dsn := dbPath + sep + "_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=0"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn:     conn,
		writeSem: make(chan struct{}, 1),
	}
	db.Queries = &Queries{conn: conn, db: db}
	return db, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	if err := db.ready(); err != nil {
		return err
	}
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db == nil || !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.conn.Close()
}

// Begin opens a write transaction. Only one write transaction is open at a
// time; Begin blocks until the previous one finishes or ctx is done.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}

	select {
	case db.writeSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		<-db.writeSem
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	t := &Tx{tx: tx, release: func() { <-db.writeSem }}
	t.Queries = &Queries{conn: tx, db: db}
	return t, nil
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Tx is a write transaction.
type Tx struct {
	*Queries

	tx      *sql.Tx
	release func()
	done    bool
}

// Commit commits the transaction and releases the write lock.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	defer t.release()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Calling it after Commit or a previous
// Rollback is a no-op.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.release()
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// Savepoint marks a point inside the transaction that RollbackTo can return
// to without discarding earlier work.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.exec(ctx, "SAVEPOINT "+quoteIdent(name))
	return err
}

// RollbackTo discards everything written since the named savepoint.
func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	if _, err := t.exec(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdent(name)); err != nil {
		return err
	}
	return t.ReleaseSavepoint(ctx, name)
}

// ReleaseSavepoint keeps the work done since the named savepoint.
func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := t.exec(ctx, "RELEASE SAVEPOINT "+quoteIdent(name))
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (q *Queries) ready() error {
	if q == nil || q.db == nil || q.db.closed.Load() {
		return ErrStoreUnavailable
	}
	return nil
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	return q.conn.ExecContext(ctx, query, args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	return q.conn.QueryContext(ctx, query, args...)
}

// row defers the availability error to Scan so single-row lookups read like
// plain QueryRow calls.
type row struct {
	row *sql.Row
	err error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *row {
	if err := q.ready(); err != nil {
		return &row{err: err}
	}
	return &row{row: q.conn.QueryRowContext(ctx, query, args...)}
}

type scanner interface {
	Scan(dest ...any) error
}

// getOne runs a single-row query and maps sql.ErrNoRows to (nil, nil).
func getOne[T any](ctx context.Context, q *Queries, scan func(scanner) (*T, error), query string, args ...any) (*T, error) {
	v, err := scan(q.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// getAll runs a multi-row query and scans every row.
func getAll[T any](ctx context.Context, q *Queries, scan func(scanner) (*T, error), query string, args ...any) ([]*T, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// deleteWhere runs a DELETE and returns the number of removed rows.
func (q *Queries) deleteWhere(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insertID runs an INSERT and returns the new surrogate id.
func (q *Queries) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
