package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rogerio-castellano/product-catalog/internal/models"
)

const queryTimeout = 3 * time.Second

const productColumns = `id, name, image, price, created_at`

type PostgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (models.Product, error) {
	var (
		p         models.Product
		createdAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Image, &p.Price, &createdAt); err != nil {
		return models.Product{}, err
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	return p, nil
}

func (r *PostgresProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id DESC`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *PostgresProductRepository) GetByID(ctx context.Context, id int) (models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (r *PostgresProductRepository) Create(ctx context.Context, p models.Product) (models.Product, error) {
	query := `INSERT INTO products (name, image, price) VALUES ($1, $2, $3) RETURNING ` + productColumns
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	created, err := scanProduct(r.db.QueryRowContext(ctx, query, p.Name, p.Image, p.Price))
	if err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (r *PostgresProductRepository) Update(ctx context.Context, p models.Product) (models.Product, error) {
	query := `UPDATE products SET name = $1, image = $2, price = $3 WHERE id = $4 RETURNING ` + productColumns
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	updated, err := scanProduct(r.db.QueryRowContext(ctx, query, p.Name, p.Image, p.Price, p.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return updated, nil
}

func (r *PostgresProductRepository) Delete(ctx context.Context, id int) (models.Product, error) {
	query := `DELETE FROM products WHERE id = $1 RETURNING ` + productColumns
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	deleted, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("delete product %d: %w", id, err)
	}
	return deleted, nil
}
