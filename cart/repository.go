package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/cartstore/models"
	"goflare.io/cartstore/storage"
)

// StorageKey is the key the cart is persisted under.
const StorageKey = "@RocketShoes:cart"

var ErrCorruptCart = errors.New("persisted cart is corrupt")

var _ Repository = (*repository)(nil)

type Repository interface {
	// Load returns the persisted cart, or an empty cart when nothing is stored.
	Load(ctx context.Context) (models.Cart, error)
	// Save overwrites the persisted cart.
	Save(ctx context.Context, cart models.Cart) error
}

type repository struct {
	storage storage.Storage
	key     string
	logger  *zap.Logger
}

// NewRepository persists under key; an empty key falls back to StorageKey.
func NewRepository(s storage.Storage, key string, logger *zap.Logger) Repository {
	if key == "" {
		key = StorageKey
	}
	return &repository{
		storage: s,
		key:     key,
		logger:  logger,
	}
}

func (r *repository) Load(ctx context.Context) (models.Cart, error) {
	data, err := r.storage.Get(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Debug("No persisted cart, starting empty", zap.String("key", r.key))
		return models.Cart{}, nil
	}
	if err != nil {
		r.logger.Error("Failed to load cart", zap.String("key", r.key), zap.Error(err))
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var cart models.Cart
	if err = json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptCart, err)
	}
	if err = cart.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptCart, err)
	}
	if cart == nil {
		cart = models.Cart{}
	}

	return cart, nil
}

func (r *repository) Save(ctx context.Context, cart models.Cart) error {
	if cart == nil {
		cart = models.Cart{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	if err = r.storage.Set(ctx, r.key, data); err != nil {
		r.logger.Error("Failed to save cart", zap.String("key", r.key), zap.Error(err))
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}
