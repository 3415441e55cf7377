package handlers

import (
	"github.com/rogerio-castellano/product-catalog/internal/repo"
	"go.uber.org/zap"
)

// ProductHandler serves the /products routes.
type ProductHandler struct {
	products repo.ProductRepository
	logger   *zap.Logger
}

func NewProductHandler(products repo.ProductRepository, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{products: products, logger: logger}
}
