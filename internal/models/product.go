package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices travel as JSON numbers (9.99), not strings
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a product entity in the catalog.
type Product struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}
