// Package app wires the cart store from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"goflare.io/cartstore"
	"goflare.io/cartstore/cart"
	"goflare.io/cartstore/config"
	"goflare.io/cartstore/driver"
	"goflare.io/cartstore/notify"
	"goflare.io/cartstore/product"
	"goflare.io/cartstore/stock"
	"goflare.io/cartstore/storage"
)

type Dependencies struct {
	Store        cartstore.Store
	Provider     *cartstore.Provider
	Recorder     *notify.Recorder
	EventManager *cartstore.EventManager // nil when NATS is not configured
	Logger       *zap.Logger

	closers []func()
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// NewStorage opens the storage backend selected by cfg.Driver.
func NewStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Storage, func(), error) {
	switch cfg.Driver {
	case "memory":
		return storage.NewMemory(), func() {}, nil
	case "file":
		s, err := storage.NewFile(cfg.File.Dir, logger)
		return s, func() {}, err
	case "redis":
		client, err := driver.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
		return storage.NewRedis(client), closer, nil
	case "postgres":
		pool, err := driver.ConnectSQL(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s, err := storage.NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Setup builds every dependency of a cart session.
func Setup(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: logger}

	kv, closeStorage, err := NewStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, closeStorage)

	api, err := driver.NewAPIClient(cfg.API.BaseURL, cfg.API.Timeout, driver.BreakerSettings{
		ConsecutiveFailures: cfg.API.CircuitBreaker.ConsecutiveFailures,
		OpenTimeout:         cfg.API.CircuitBreaker.OpenTimeout,
	}, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store, err := cartstore.NewStore(ctx,
		cart.NewRepository(kv, cfg.Storage.Key, logger),
		stock.NewRepository(api, validate, logger),
		product.NewRepository(api, validate, logger),
		logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Store = store

	deps.Recorder = notify.NewRecorder()
	notifiers := notify.Multi{notify.NewLogger(logger), deps.Recorder}

	if cfg.NATS.URL != "" {
		nc, err := driver.ConnectNATS(cfg.NATS.URL, cfg.NATS.Timeout, logger)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.EventManager = cartstore.NewEventManager(nc, logger)
		unsubscribe := store.Subscribe(deps.EventManager.CartChanged)
		notifiers = append(notifiers, deps.EventManager)
		deps.closers = append(deps.closers, func() {
			unsubscribe()
			deps.EventManager.Close()
			if err := nc.Drain(); err != nil {
				logger.Warn("Failed to drain NATS connection", zap.Error(err))
			}
		})
	}

	deps.Provider = cartstore.NewProvider(store, notifiers, logger)
	return deps, nil
}
