package cartstore

import (
	"context"

	"go.uber.org/zap"

	"goflare.io/cartstore/models"
	"goflare.io/cartstore/models/enum"
	"goflare.io/cartstore/notify"
)

// Provider is what UI code talks to. Its operations never fail towards the
// caller: every error becomes a notification.
type Provider struct {
	store    Store
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewProvider(store Store, notifier notify.Notifier, logger *zap.Logger) *Provider {
	return &Provider{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

func (p *Provider) Cart() models.Cart {
	return p.store.Cart()
}

func (p *Provider) Subscribe(fn func(models.Cart)) func() {
	return p.store.Subscribe(fn)
}

func (p *Provider) AddProduct(ctx context.Context, productID int) {
	p.report(ctx, enum.OperationAddProduct, productID, p.store.AddProduct(ctx, productID))
}

func (p *Provider) RemoveProduct(ctx context.Context, productID int) {
	p.report(ctx, enum.OperationRemoveProduct, productID, p.store.RemoveProduct(ctx, productID))
}

func (p *Provider) UpdateProductAmount(ctx context.Context, params models.UpdateProductAmount) {
	p.report(ctx, enum.OperationUpdateProductAmount, params.ProductID, p.store.UpdateProductAmount(ctx, params))
}

func (p *Provider) report(ctx context.Context, op enum.Operation, productID int, err error) {
	if err == nil {
		return
	}
	p.logger.Debug("Cart operation failed",
		zap.String("operation", string(op)),
		zap.Int("product_id", productID),
		zap.Error(err))
	p.notifier.Notify(ctx, NotificationFor(op, productID, err))
}
