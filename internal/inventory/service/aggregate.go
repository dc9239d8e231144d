package service

import (
	"context"
	"time"

	"github.com/abgdnv/stockbook/internal/inventory/store"
	"github.com/shopspring/decimal"
)

// Summary is the dashboard payload.
type Summary struct {
	TotalProducts     int             `json:"totalProducts"`
	LowStock          int             `json:"lowStock"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	OutOfStock        int             `json:"outOfStock"`
	InventoryValue    decimal.Decimal `json:"inventoryValue"`
	HighestPrice      decimal.Decimal `json:"highestPrice"`
	Month             string          `json:"month"`
	MonthRevenue      decimal.Decimal `json:"monthRevenue"`
	MonthProfit       decimal.Decimal `json:"monthProfit"`
	Currency          string          `json:"currency"`
}

// Stats computes the summary of the current state for the current month.
func (s *Service) Stats(ctx context.Context) (*Summary, error) {
	summary := Summarize(s.store.Snapshot(), s.cfg.Now(), s.cfg.LowStockThreshold)
	summary.Currency = s.cfg.CurrencySymbol
	s.logger.DebugContext(ctx, "stats computed", "products", summary.TotalProducts, "month", summary.Month)
	return &summary, nil
}

// Summarize bundles every aggregate of snap. It has no side effects.
func Summarize(snap store.Snapshot, now time.Time, threshold int) Summary {
	revenue, profit := MonthlyRevenueProfit(snap.Sales, now)
	return Summary{
		TotalProducts:     TotalProducts(snap.Products),
		LowStock:          LowStockCount(snap.Products, threshold),
		LowStockThreshold: threshold,
		OutOfStock:        OutOfStockCount(snap.Products),
		InventoryValue:    TotalInventoryValue(snap.Products),
		HighestPrice:      HighestPrice(snap.Products),
		Month:             now.Format("2006-01"),
		MonthRevenue:      revenue,
		MonthProfit:       profit,
	}
}

func TotalProducts(products []store.Product) int {
	return len(products)
}

// LowStockCount counts products with 0 < stock <= threshold.
func LowStockCount(products []store.Product, threshold int) int {
	var n int
	for _, p := range products {
		if isLowStock(p, threshold) {
			n++
		}
	}
	return n
}

func isLowStock(p store.Product, threshold int) bool {
	return p.Stock > 0 && p.Stock <= threshold
}

func OutOfStockCount(products []store.Product) int {
	var n int
	for _, p := range products {
		if p.Stock == 0 {
			n++
		}
	}
	return n
}

// TotalInventoryValue sums sell price times stock.
func TotalInventoryValue(products []store.Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Sell.Mul(decimal.NewFromInt(int64(p.Stock))))
	}
	return total
}

// HighestPrice returns the maximum sell price, or zero without products.
func HighestPrice(products []store.Product) decimal.Decimal {
	highest := decimal.Zero
	for _, p := range products {
		if p.Sell.GreaterThan(highest) {
			highest = p.Sell
		}
	}
	return highest
}

// MonthlyRevenueProfit sums revenue and profit of the sales dated in the same
// calendar year and month as now, evaluated in now's location.
// Sales without a parseable date are skipped.
func MonthlyRevenueProfit(sales []store.Sale, now time.Time) (revenue, profit decimal.Decimal) {
	revenue, profit = decimal.Zero, decimal.Zero
	year, month, _ := now.Date()
	for _, sale := range sales {
		t, ok := sale.Time()
		if !ok {
			continue
		}
		y, m, _ := t.In(now.Location()).Date()
		if y == year && m == month {
			revenue = revenue.Add(sale.Revenue)
			profit = profit.Add(sale.Profit)
		}
	}
	return revenue, profit
}
