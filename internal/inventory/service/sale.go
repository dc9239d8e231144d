package service

import (
	"context"
	"fmt"

	inverrors "github.com/abgdnv/stockbook/internal/inventory/errors"
	"github.com/abgdnv/stockbook/internal/inventory/store"
	"github.com/shopspring/decimal"
)

// Sell commits a sale of quantity units. Quantity must be in [1, stock].
// Stock check, decrement and sale append happen in one store mutation.
func (s *Service) Sell(ctx context.Context, productID store.ID, quantity int) (*SaleReceiptDto, error) {
	var sale store.Sale
	var product store.Product
	err := s.store.Mutate(ctx, func(st *store.State) error {
		i := st.Index(productID)
		if i < 0 {
			return inverrors.ErrProductNotFound
		}
		p := &st.Products[i]
		if quantity < 1 || quantity > p.Stock {
			return fmt.Errorf("%w: requested %d, available %d", inverrors.ErrInsufficientStock, quantity, p.Stock)
		}

		revenue, profit := s.price(*p, quantity)
		p.Stock -= quantity
		sale = store.Sale{
			ProductID: p.ID,
			Revenue:   revenue,
			Profit:    profit,
			Date:      store.FormatDate(s.cfg.Now()),
		}
		st.Sales = append(st.Sales, sale)
		product = *p
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "sale rejected", "productID", productID, "quantity", quantity, "error", err)
		return nil, fmt.Errorf("failed to sell product with ID %s: %w", productID, err)
	}

	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveSale(quantity, sale.Revenue, sale.Profit)
	}
	s.logger.InfoContext(ctx, "sale completed",
		"productID", productID, "quantity", quantity, "revenue", sale.Revenue, "profit", sale.Profit, "stock", product.Stock)
	return &SaleReceiptDto{Sale: toSaleDto(sale), Product: s.toDto(product)}, nil
}

// Quote prices a prospective sale. The requested quantity is clamped into
// [1, stock]; the commit in Sell rejects instead of clamping.
func (s *Service) Quote(ctx context.Context, productID store.ID, requested int) (*QuoteDto, error) {
	p, ok := s.store.Find(productID)
	if !ok {
		return nil, fmt.Errorf("failed to quote product with ID %s: %w", productID, inverrors.ErrProductNotFound)
	}
	if p.Stock < 1 {
		return nil, fmt.Errorf("failed to quote product with ID %s: %w: out of stock", productID, inverrors.ErrInsufficientStock)
	}

	quantity, clamped := ClampQuantity(requested, p.Stock)
	revenue, profit := s.price(p, quantity)
	s.logger.DebugContext(ctx, "sale quoted", "productID", productID, "requested", requested, "quantity", quantity)
	return &QuoteDto{
		ProductID: p.ID,
		Requested: requested,
		Quantity:  quantity,
		Clamped:   clamped,
		Available: p.Stock,
		Revenue:   revenue,
		Profit:    profit,
	}, nil
}

// ListSales returns the append-only sale log.
func (s *Service) ListSales(ctx context.Context) ([]SaleDto, error) {
	sales := s.store.Snapshot().Sales
	dtos := make([]SaleDto, len(sales))
	for i, sale := range sales {
		dtos[i] = toSaleDto(sale)
	}
	s.logger.DebugContext(ctx, "sales listed", "count", len(dtos))
	return dtos, nil
}

// price computes revenue and profit of selling quantity units of p.
// Profit is zero when the buy price is not tracked.
func (s *Service) price(p store.Product, quantity int) (revenue, profit decimal.Decimal) {
	q := decimal.NewFromInt(int64(quantity))
	revenue = p.Sell.Mul(q)
	profit = decimal.Zero
	if s.cfg.TrackBuyPrice {
		profit = p.Sell.Sub(p.Buy).Mul(q)
	}
	return revenue, profit
}

// ClampQuantity fits a requested quantity into [1, stock]. A zero request
// selects the default of one unit and does not count as clamped.
// stock must be at least 1.
func ClampQuantity(requested, stock int) (int, bool) {
	switch {
	case requested == 0:
		return 1, false
	case requested < 1:
		return 1, true
	case requested > stock:
		return stock, true
	default:
		return requested, false
	}
}

// StepQuantity applies a +/- step to the selected quantity. It never goes
// below one; stepping past the stock keeps the quantity at the stock and
// reports ErrInsufficientStock.
func StepQuantity(current, delta, stock int) (int, error) {
	if stock < 1 {
		return 0, inverrors.ErrInsufficientStock
	}
	next := current + delta
	if next > stock {
		return min(max(current, 1), stock), inverrors.ErrInsufficientStock
	}
	return max(next, 1), nil
}
