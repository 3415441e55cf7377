package repo

import (
	"context"
	"sync"
	"time"

	"github.com/rogerio-castellano/product-catalog/internal/models"
)

// InMemoryProductRepository is an in-memory implementation of ProductRepository.
type InMemoryProductRepository struct {
	mu       sync.RWMutex
	products []models.Product
	nextID   int
	now      func() time.Time
}

// NewInMemoryProductRepository creates a new instance of InMemoryProductRepository.
func NewInMemoryProductRepository() *InMemoryProductRepository {
	return &InMemoryProductRepository{
		products: []models.Product{},
		nextID:   1,
		now:      time.Now,
	}
}

// GetAll returns the products newest first, like the SQL implementation.
func (r *InMemoryProductRepository) GetAll(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Product, 0, len(r.products))
	for i := len(r.products) - 1; i >= 0; i-- {
		out = append(out, r.products[i])
	}
	return out, nil
}

// GetByID retrieves a product by its ID.
func (r *InMemoryProductRepository) GetByID(_ context.Context, id int) (models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, ErrProductNotFound
}

// Create adds a new product, assigning its id and creation time.
func (r *InMemoryProductRepository) Create(_ context.Context, product models.Product) (models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product.ID = r.nextID
	product.CreatedAt = r.now().UTC()
	r.nextID++
	r.products = append(r.products, product)
	return product, nil
}

// Update replaces name, image and price; id and created_at are kept.
func (r *InMemoryProductRepository) Update(_ context.Context, product models.Product) (models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.products {
		if p.ID == product.ID {
			p.Name = product.Name
			p.Image = product.Image
			p.Price = product.Price
			r.products[i] = p
			return p, nil
		}
	}
	return models.Product{}, ErrProductNotFound
}

// Delete removes a product from the repository by its ID.
func (r *InMemoryProductRepository) Delete(_ context.Context, id int) (models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.products {
		if p.ID == id {
			r.products = append(r.products[:i], r.products[i+1:]...)
			return p, nil
		}
	}
	return models.Product{}, ErrProductNotFound
}

// Clear drops every product but keeps the id sequence, as a SERIAL column would.
func (r *InMemoryProductRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = []models.Product{}
}
