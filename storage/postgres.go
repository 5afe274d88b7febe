package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/cartstore/driver"
)

var _ Storage = (*Postgres)(nil)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS cart_storage (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectValueSQL = `SELECT value FROM cart_storage WHERE key = $1`
	upsertValueSQL = `INSERT INTO cart_storage (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

// Postgres keeps values in the cart_storage table. Values must be JSON documents.
type Postgres struct {
	conn               driver.PostgresPool
	transactionManager *driver.TransactionManager
	logger             *zap.Logger
}

// NewPostgres creates the cart_storage table when it does not exist yet.
func NewPostgres(ctx context.Context, conn driver.PostgresPool, logger *zap.Logger) (*Postgres, error) {
	if _, err := conn.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create cart_storage table: %w", err)
	}
	return &Postgres{
		conn:               conn,
		transactionManager: driver.NewTransactionManager(conn, logger),
		logger:             logger,
	}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.conn.QueryRow(ctx, selectValueSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		p.logger.Error("Failed to get value", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("postgres get failed: %w", err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	return p.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertValueSQL, key, value); err != nil {
			p.logger.Error("Failed to set value", zap.String("key", key), zap.Error(err))
			return fmt.Errorf("postgres set failed: %w", err)
		}
		return nil
	})
}
