package product

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"goflare.io/cartstore/models"
	"goflare.io/cartstore/stock"
)

var _ Repository = (*repository)(nil)

// Repository reads product records from the remote catalog.
type Repository interface {
	GetProduct(ctx context.Context, productID int) (*models.Product, error)
}

type repository struct {
	api      stock.JSONGetter
	validate *validator.Validate
	logger   *zap.Logger
}

func NewRepository(api stock.JSONGetter, validate *validator.Validate, logger *zap.Logger) Repository {
	return &repository{
		api:      api,
		validate: validate,
		logger:   logger,
	}
}

func (r *repository) GetProduct(ctx context.Context, productID int) (*models.Product, error) {
	var product models.Product
	if err := r.api.GetJSON(ctx, "/products/"+strconv.Itoa(productID), &product); err != nil {
		r.logger.Error("failed to get product", zap.Int("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("failed to get product %d: %w", productID, err)
	}

	if err := r.validate.Struct(product); err != nil {
		r.logger.Error("invalid product response", zap.Int("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("invalid product %d: %w", productID, err)
	}

	return &product, nil
}
