package corrpop

import (
	"context"
	"database/sql"
	"math/rand"

	"github.com/gobuffalo/pop/v6"
	"github.com/jmoiron/sqlx"
	"github.com/rambhatt-msft/correlate-go/wrappers/corrsqlx"
)

// DB implements the store pop uses to talk to its datastore, delegating
// every call to a wrapped corrsqlx handle so each one emits an event.
type DB struct {
	DB *corrsqlx.DB

	tx *corrsqlx.Tx
}

func (m *DB) Select(dest interface{}, query string, args ...interface{}) error {
	return m.DB.Select(dest, query, args...)
}

func (m *DB) Get(dest interface{}, query string, args ...interface{}) error {
	return m.DB.Get(dest, query, args...)
}

func (m *DB) NamedExec(query string, arg interface{}) (sql.Result, error) {
	return m.DB.NamedExec(query, arg)
}

func (m *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.DB.Exec(query, args...)
}

func (m *DB) PrepareNamed(query string) (*sqlx.NamedStmt, error) {
	stmt, err := m.DB.PrepareNamed(query)
	if err != nil {
		return nil, err
	}
	return stmt.GetWrappedNamedStmt(), nil
}

func (m *DB) Transaction() (*pop.Tx, error) {
	tx, err := m.DB.Beginx()
	if err != nil {
		return nil, err
	}
	t := &pop.Tx{
		ID: rand.Int(),
	}
	t.Tx = tx.GetWrappedTx()
	m.tx = tx
	return t, nil
}

// Rollback and Commit act on the transaction most recently started through
// this store, going through the wrapper so they emit events too.

func (m *DB) Rollback() error {
	return m.tx.Rollback()
}

func (m *DB) Commit() error {
	return m.tx.Commit()
}

func (m *DB) Close() error {
	return m.DB.Close()
}

func (m *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return m.DB.SelectContext(ctx, dest, query, args...)
}

func (m *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return m.DB.GetContext(ctx, dest, query, args...)
}

func (m *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return m.DB.NamedExecContext(ctx, query, arg)
}

func (m *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return m.DB.ExecContext(ctx, query, args...)
}

func (m *DB) PrepareNamedContext(ctx context.Context, query string) (*sqlx.NamedStmt, error) {
	p, err := m.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return p.GetWrappedNamedStmt(), nil
}

func (m *DB) TransactionContext(ctx context.Context) (*pop.Tx, error) {
	return m.TransactionContextOptions(ctx, nil)
}

func (m *DB) TransactionContextOptions(ctx context.Context, opts *sql.TxOptions) (*pop.Tx, error) {
	tx, err := m.DB.BeginTxx(ctx, opts)
	if err != nil {
		return nil, err
	}
	t := &pop.Tx{
		ID: rand.Int(),
	}
	t.Tx = tx.GetWrappedTx()
	m.tx = tx
	return t, nil
}
