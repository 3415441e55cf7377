package handlers

import (
	"time"

	"github.com/rogerio-castellano/product-catalog/internal/models"
	"github.com/shopspring/decimal"
)

// ProductRequest is the body of create and update calls. Price is a pointer so
// an absent price can be told apart from zero.
type ProductRequest struct {
	Name  string           `json:"name" example:"Widget"`
	Image string           `json:"image" example:"http://x/i.png"`
	Price *decimal.Decimal `json:"price" swaggertype:"number" example:"9.99"`
}

type ProductResponse struct {
	Id        int             `json:"id" example:"1"`
	Name      string          `json:"name" example:"Widget"`
	Image     string          `json:"image" example:"http://x/i.png"`
	Price     decimal.Decimal `json:"price" swaggertype:"number" example:"9.99"`
	CreatedAt time.Time       `json:"created_at"`
}

type ErrorResponse struct {
	Error  string                   `json:"error"`
	Fields []ProductValidationError `json:"fields,omitempty"`
}

func toResponse(p models.Product) ProductResponse {
	return ProductResponse{
		Id:        p.ID,
		Name:      p.Name,
		Image:     p.Image,
		Price:     p.Price,
		CreatedAt: p.CreatedAt,
	}
}
