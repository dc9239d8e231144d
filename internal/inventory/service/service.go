// Package service provides the inventory business logic: product CRUD,
// the sale engine and the dashboard aggregates.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/abgdnv/stockbook/internal/inventory/store"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ProductService defines the methods for managing products.
type ProductService interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id store.ID) (*ProductDto, error)

	// FindAll returns all products, ordered by name when configured.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]ProductDto, error)

	// Create validates the raw input and adds a new product.
	// Returns a ValidationError if the input is rejected.
	Create(ctx context.Context, input ProductInput) (*ProductDto, error)

	// Update replaces all mutable fields of an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id store.ID, input ProductInput) (*ProductDto, error)

	// DeleteByID removes a product by its ID. Deleting a missing product is not an error.
	DeleteByID(ctx context.Context, id store.ID) error
}

// SaleService defines the sale engine.
type SaleService interface {
	// Sell decrements the product stock and appends a sale record.
	// Returns ErrInsufficientStock if quantity is not positive or exceeds the stock.
	Sell(ctx context.Context, productID store.ID, quantity int) (*SaleReceiptDto, error)

	// Quote clamps the requested quantity into [1, stock] and prices it.
	Quote(ctx context.Context, productID store.ID, requested int) (*QuoteDto, error)

	// ListSales returns the sale log in the order the sales happened.
	ListSales(ctx context.Context) ([]SaleDto, error)
}

// StatsService exposes the dashboard aggregates.
type StatsService interface {
	Stats(ctx context.Context) (*Summary, error)
}

// Inventory groups every inventory operation.
type Inventory interface {
	ProductService
	SaleService
	StatsService
}

// SaleObserver is notified after a sale has been committed.
type SaleObserver interface {
	ObserveSale(quantity int, revenue, profit decimal.Decimal)
}

// Config holds the variant-specific behaviour of the service.
type Config struct {
	TrackBuyPrice     bool
	LowStockThreshold int
	SortByName        bool
	CurrencySymbol    string
	Now               func() time.Time
	Observer          SaleObserver
}

// Service implements Inventory on top of an InventoryStore.
type Service struct {
	store    store.InventoryStore
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a new instance of Service with the provided store.
func NewService(st store.InventoryStore, cfg Config, logger *slog.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:    st,
		cfg:      cfg,
		validate: newValidator(),
		logger:   logger.With("component", "service"),
	}
}

// ProductDto represents the data transfer object for a product.
// Buy is omitted when the buy price is not tracked.
type ProductDto struct {
	ID       store.ID         `json:"id"`
	Name     string           `json:"name"`
	Buy      *decimal.Decimal `json:"buy,omitempty"`
	Sell     decimal.Decimal  `json:"sell"`
	Stock    int              `json:"stock"`
	LowStock bool             `json:"lowStock"`
}

// SaleDto represents the data transfer object for a sale.
type SaleDto struct {
	ProductID store.ID        `json:"productId"`
	Revenue   decimal.Decimal `json:"revenue"`
	Profit    decimal.Decimal `json:"profit"`
	Date      string          `json:"date"`
}

// SaleReceiptDto is the result of a committed sale.
type SaleReceiptDto struct {
	Sale    SaleDto    `json:"sale"`
	Product ProductDto `json:"product"`
}

// QuoteDto describes a prospective sale.
type QuoteDto struct {
	ProductID store.ID        `json:"productId"`
	Requested int             `json:"requested"`
	Quantity  int             `json:"quantity"`
	Clamped   bool            `json:"clamped"`
	Available int             `json:"available"`
	Revenue   decimal.Decimal `json:"revenue"`
	Profit    decimal.Decimal `json:"profit"`
}

func (s *Service) toDto(p store.Product) ProductDto {
	dto := ProductDto{
		ID:       p.ID,
		Name:     p.Name,
		Sell:     p.Sell,
		Stock:    p.Stock,
		LowStock: isLowStock(p, s.cfg.LowStockThreshold),
	}
	if s.cfg.TrackBuyPrice {
		buy := p.Buy
		dto.Buy = &buy
	}
	return dto
}

func toSaleDto(sale store.Sale) SaleDto {
	return SaleDto{
		ProductID: sale.ProductID,
		Revenue:   sale.Revenue,
		Profit:    sale.Profit,
		Date:      sale.Date,
	}
}
