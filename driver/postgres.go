// Package driver holds connection helpers for the storage, messaging and HTTP backends.
package driver

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPool is an interface that represents a connection pool to a driver.
type PostgresPool interface {
	// BeginTx starts a new transaction and returns a Tx.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)

	// Exec executes an SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)

	// QueryRow executes an SQL query and returns a single row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// Close closes the pool and all its connections.
	Close()
}

var _ PostgresPool = (*pgxpool.Pool)(nil)

// maxOpenDbConn defines the maximum number of open driver connections.
// A single cart session never needs more than a couple.
const maxOpenDbConn = 4

// maxDbLifetime is the maximum lifetime of a driver connection in the pool.
// When a connection reaches its maximum lifetime, it will be closed and a new connection will be created.
const maxDbLifetime = 5 * time.Minute

// ConnectSQL parses the dsn, opens a pgx pool with the limits above and
// verifies that a connection can be acquired.
func ConnectSQL(ctx context.Context, dsn string) (*pgxpool.Pool, error) {

	// parse the config
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConns = int32(maxOpenDbConn)
	config.MaxConnLifetime = maxDbLifetime

	// create the pool
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err = testDB(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// testDB acquires and releases a connection from the pool
func testDB(ctx context.Context, p *pgxpool.Pool) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return nil
}
