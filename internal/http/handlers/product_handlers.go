package handlers

import (
	"errors"
	"net/http"

	"github.com/rogerio-castellano/product-catalog/internal/models"
	"github.com/rogerio-castellano/product-catalog/internal/repo"
	"go.uber.org/zap"
)

// GetProducts godoc
// @Summary List all products
// @Description Newest products first
// @Tags products
// @Produce json
// @Success 200 {array} ProductResponse
// @Failure 500 {object} ErrorResponse
// @Router /products [get]
func (h *ProductHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetAll(r.Context())
	if err != nil {
		h.storageFailure(w, "could not fetch products", err)
		return
	}

	response := make([]ProductResponse, len(products))
	for i, p := range products {
		response[i] = toResponse(p)
	}
	h.write(w, http.StatusOK, response)
}

// GetProductByID godoc
// @Summary Get product by ID
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /products/{id} [get]
func (h *ProductHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrProductNotFound) {
			WriteError(w, http.StatusNotFound, "product not found")
			return
		}
		h.storageFailure(w, "could not fetch product", err)
		return
	}
	h.write(w, http.StatusOK, toResponse(product))
}

// CreateProduct godoc
// @Summary Create a new product
// @Description The server assigns id and created_at
// @Tags products
// @Accept json
// @Produce json
// @Param product body ProductRequest true "Product to add"
// @Success 201 {object} ProductResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /products [post]
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	created, err := h.products.Create(r.Context(), models.Product{
		Name:  req.Name,
		Image: req.Image,
		Price: *req.Price,
	})
	if err != nil {
		h.storageFailure(w, "could not create product", err)
		return
	}
	h.write(w, http.StatusCreated, toResponse(created))
}

// UpdateProduct godoc
// @Summary Update a product
// @Description Replaces name, image and price
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param product body ProductRequest true "Updated product"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /products/{id} [put]
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	updated, err := h.products.Update(r.Context(), models.Product{
		ID:    id,
		Name:  req.Name,
		Image: req.Image,
		Price: *req.Price,
	})
	if err != nil {
		if errors.Is(err, repo.ErrProductNotFound) {
			WriteError(w, http.StatusNotFound, "product not found")
			return
		}
		h.storageFailure(w, "could not update product", err)
		return
	}
	h.write(w, http.StatusOK, toResponse(updated))
}

// DeleteProduct godoc
// @Summary Delete a product
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} ProductResponse "The deleted product"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /products/{id} [delete]
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.products.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrProductNotFound) {
			WriteError(w, http.StatusNotFound, "product not found")
			return
		}
		h.storageFailure(w, "could not delete product", err)
		return
	}
	h.write(w, http.StatusOK, toResponse(deleted))
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (ProductRequest, bool) {
	var req ProductRequest
	if err := readJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid input")
		return ProductRequest{}, false
	}

	if validationErrors := validateProduct(req); len(validationErrors) > 0 {
		_ = writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "All fields are required",
			Fields: validationErrors,
		})
		return ProductRequest{}, false
	}
	return req, true
}

func (h *ProductHandler) storageFailure(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	WriteError(w, http.StatusInternalServerError, message)
}

func (h *ProductHandler) write(w http.ResponseWriter, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		h.logger.Warn("failed to write JSON response", zap.Error(err))
	}
}
