package repo

import (
	"context"
	"errors"

	"github.com/rogerio-castellano/product-catalog/internal/models"
)

// ErrProductNotFound is returned when no row matches the requested id.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository defines the interface for product data operations.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id int) (models.Product, error)
	Create(ctx context.Context, product models.Product) (models.Product, error)
	Update(ctx context.Context, product models.Product) (models.Product, error)
	// Delete returns the row that was removed.
	Delete(ctx context.Context, id int) (models.Product, error)
}
