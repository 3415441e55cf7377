package handlers

import (
	"strings"
)

type ProductValidationError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// validateProduct only checks presence; the store enforces the rest.
func validateProduct(p ProductRequest) []ProductValidationError {
	errs := []ProductValidationError{}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ProductValidationError{Field: "name", Description: "Name is required"})
	}
	if strings.TrimSpace(p.Image) == "" {
		errs = append(errs, ProductValidationError{Field: "image", Description: "Image is required"})
	}
	if p.Price == nil {
		errs = append(errs, ProductValidationError{Field: "price", Description: "Price is required"})
	}
	return errs
}
