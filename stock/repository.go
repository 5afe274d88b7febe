package stock

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"goflare.io/cartstore/models"
)

var _ Repository = (*repository)(nil)

// Repository reads availability from the remote stock service. Nothing is cached.
type Repository interface {
	GetStock(ctx context.Context, productID int) (*models.Stock, error)
}

// JSONGetter is implemented by driver.APIClient.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, out any) error
}

type repository struct {
	api      JSONGetter
	validate *validator.Validate
	logger   *zap.Logger
}

func NewRepository(api JSONGetter, validate *validator.Validate, logger *zap.Logger) Repository {
	return &repository{
		api:      api,
		validate: validate,
		logger:   logger,
	}
}

func (r *repository) GetStock(ctx context.Context, productID int) (*models.Stock, error) {
	var stock models.Stock
	if err := r.api.GetJSON(ctx, "/stock/"+strconv.Itoa(productID), &stock); err != nil {
		r.logger.Error("failed to get stock", zap.Int("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("failed to get stock for product %d: %w", productID, err)
	}

	if err := r.validate.Struct(stock); err != nil {
		r.logger.Error("invalid stock response", zap.Int("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("invalid stock for product %d: %w", productID, err)
	}

	r.logger.Debug("found stock", zap.Int("product_id", productID), zap.Int("amount", stock.Amount))
	return &stock, nil
}
