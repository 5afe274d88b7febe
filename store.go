// Package cartstore keeps a shopping cart in memory, validates every change
// against the remote stock service and persists the result to key-value storage.
package cartstore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"goflare.io/cartstore/cart"
	"goflare.io/cartstore/models"
	"goflare.io/cartstore/models/enum"
	"goflare.io/cartstore/product"
	"goflare.io/cartstore/stock"
)

type Store interface {
	// Cart returns a copy of the current cart.
	Cart() models.Cart
	// Subscribe registers fn to be called after every committed change. The
	// returned func removes the subscription.
	Subscribe(fn func(models.Cart)) (unsubscribe func())

	AddProduct(ctx context.Context, productID int) error
	RemoveProduct(ctx context.Context, productID int) error
	// UpdateProductAmount does nothing when the amount is not positive.
	UpdateProductAmount(ctx context.Context, params models.UpdateProductAmount) error
}

type store struct {
	cart    cart.Repository
	stock   stock.Repository
	product product.Repository

	// commitMu serializes persist+swap. It is never held across a remote fetch,
	// so concurrent operations still resolve as last write wins.
	commitMu sync.Mutex
	mu       sync.RWMutex
	state    models.Cart

	observers observers
	logger    *zap.Logger
}

// NewStore loads the persisted cart once and returns the session store.
func NewStore(ctx context.Context, cartRepo cart.Repository, stockRepo stock.Repository, productRepo product.Repository, logger *zap.Logger) (Store, error) {
	state, err := cartRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cart: %w", err)
	}

	logger.Info("Cart loaded", zap.Int("items", len(state)))

	return &store{
		cart:    cartRepo,
		stock:   stockRepo,
		product: productRepo,
		state:   state,
		logger:  logger,
	}, nil
}

func (s *store) Cart() models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *store) Subscribe(fn func(models.Cart)) func() {
	return s.observers.add(fn)
}

func (s *store) AddProduct(ctx context.Context, productID int) error {
	const op = enum.OperationAddProduct

	// 1. 檢查庫存
	stockModel, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return newError(op, enum.FailureKindRemoteFailure, productID, err)
	}

	current := s.Cart()
	held := current.Amount(productID)
	if held >= stockModel.Amount {
		s.logger.Info("Insufficient stock",
			zap.Int("product_id", productID),
			zap.Int("held", held),
			zap.Int("available", stockModel.Amount))
		return newError(op, enum.FailureKindOutOfStock, productID, ErrOutOfStock)
	}

	// 2. 檢查是否已存在相同商品
	var next models.Cart
	if _, exists := current.Find(productID); exists {
		next = current.WithAmount(productID, held+1)
	} else {
		productModel, err := s.product.GetProduct(ctx, productID)
		if err != nil {
			return newError(op, enum.FailureKindRemoteFailure, productID, err)
		}
		if productModel.ID != productID {
			return newError(op, enum.FailureKindRemoteFailure, productID,
				fmt.Errorf("catalog returned product %d for %d", productModel.ID, productID))
		}
		next = current.Append(models.NewLineItem(productModel))
	}

	// 3. 保存購物車
	if err = s.commit(ctx, next); err != nil {
		return newError(op, enum.FailureKindUnexpected, productID, err)
	}

	s.logger.Info("Product added", zap.Int("product_id", productID), zap.Int("amount", held+1))
	return nil
}

func (s *store) RemoveProduct(ctx context.Context, productID int) error {
	const op = enum.OperationRemoveProduct

	current := s.Cart()
	next := current.Without(productID)
	if len(next) == len(current) {
		return newError(op, enum.FailureKindNotFound, productID, ErrNotFound)
	}

	if err := s.commit(ctx, next); err != nil {
		return newError(op, enum.FailureKindUnexpected, productID, err)
	}

	s.logger.Info("Product removed", zap.Int("product_id", productID))
	return nil
}

func (s *store) UpdateProductAmount(ctx context.Context, params models.UpdateProductAmount) error {
	const op = enum.OperationUpdateProductAmount

	if params.Amount <= 0 {
		s.logger.Debug("Ignoring non-positive amount",
			zap.Int("product_id", params.ProductID),
			zap.Int("amount", params.Amount))
		return nil
	}

	stockModel, err := s.stock.GetStock(ctx, params.ProductID)
	if err != nil {
		return newError(op, enum.FailureKindRemoteFailure, params.ProductID, err)
	}

	if stockModel.Amount < params.Amount {
		s.logger.Info("Insufficient stock",
			zap.Int("product_id", params.ProductID),
			zap.Int("requested", params.Amount),
			zap.Int("available", stockModel.Amount))
		return newError(op, enum.FailureKindOutOfStock, params.ProductID, ErrOutOfStock)
	}

	next := s.Cart().WithAmount(params.ProductID, params.Amount)
	if err = s.commit(ctx, next); err != nil {
		return newError(op, enum.FailureKindUnexpected, params.ProductID, err)
	}

	s.logger.Info("Product amount updated",
		zap.Int("product_id", params.ProductID),
		zap.Int("amount", params.Amount))
	return nil
}

// commit persists next and only then makes it the current state, so a failed
// write leaves both memory and storage untouched.
func (s *store) commit(ctx context.Context, next models.Cart) error {
	s.commitMu.Lock()
	if err := s.cart.Save(ctx, next); err != nil {
		s.commitMu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	s.commitMu.Unlock()

	// Observers get the state as of now, not next: the last notification always
	// carries the latest committed cart.
	s.observers.publish(s.Cart())
	return nil
}
