// Package rest provides the HTTP/JSON surface of the inventory service.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	inverrors "github.com/abgdnv/stockbook/internal/inventory/errors"
	"github.com/abgdnv/stockbook/internal/inventory/service"
	"github.com/abgdnv/stockbook/internal/inventory/store"
	"github.com/abgdnv/stockbook/internal/platform/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  service.Inventory
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new instance of Handler with the provided service.
func NewHandler(service service.Inventory, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// SaleRequest is the body of a sale. An omitted quantity sells one unit.
type SaleRequest struct {
	ProductID store.ID `json:"productId" validate:"required"`
	Quantity  *int     `json:"quantity"`
}

func (r SaleRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

// RegisterRoutes registers the HTTP routes for the inventory service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Put("/", h.Update)
			r.Delete("/", h.DeleteByID)
			r.Get("/quote", h.Quote)
		})
	})
	r.Route("/api/v1/sales", func(r chi.Router) {
		r.Get("/", h.ListSales)
		r.Post("/", h.Sell)
	})
	r.Get("/api/v1/stats", h.Stats)

	r.Get("/healthz", h.HealthCheck)
}

// FindByID retrieves a product by its ID.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	id := store.ID(r.PathValue("id"))
	h.logger.DebugContext(r.Context(), "Received request to find product by ID", "ID", id)

	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to retrieve product with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// FindAll retrieves a list of all products.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.FindAll(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch products")
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// Create handles the creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to create product")
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// Update replaces the mutable fields of a product.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := store.ID(r.PathValue("id"))
	var input service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to update product with ID %s", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID, "Name", updated.Name)
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// DeleteByID deletes a product by its ID. Unknown ids are not an error.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id := store.ID(r.PathValue("id"))
	if err := h.service.DeleteByID(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to delete product with ID %s", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quote prices a prospective sale of ?quantity units, clamped to the stock.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	id := store.ID(r.PathValue("id"))
	quantity, ok := web.ParseQueryInt(w, r, h.logger, "quantity", 1)
	if !ok {
		return
	}

	quote, err := h.service.Quote(r.Context(), id, quantity)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to quote product with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, quote)
}

// Sell commits a sale.
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondValidation(w, h.logger, errorResponse)
			return
		}
		h.logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.service.Sell(r.Context(), req.ProductID, req.quantity())
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to sell product with ID %s", req.ProductID))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusCreated, receipt)
}

// ListSales returns the sale log.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.ListSales(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch sales")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, sales)
}

// Stats returns the dashboard summary for the current month.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to compute stats")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, summary)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// respondServiceError maps the named error conditions to HTTP statuses.
// Anything unrecognised is answered with 500 and the generic message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var validationErr *inverrors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", validationErr.Fields)
		web.RespondValidation(w, h.logger, validationErr.Fields)
	case errors.Is(err, inverrors.ErrValidationFailed):
		h.logger.WarnContext(r.Context(), "Validation failed", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, inverrors.ErrProductNotFound):
		h.logger.WarnContext(r.Context(), "Product not found", "error", err)
		web.RespondError(w, h.logger, http.StatusNotFound, "Product not found")
	case errors.Is(err, inverrors.ErrInsufficientStock):
		h.logger.WarnContext(r.Context(), "Insufficient stock", "error", err)
		web.RespondError(w, h.logger, http.StatusConflict, "Insufficient stock")
	default:
		h.logger.ErrorContext(r.Context(), message, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, message)
	}
}
