package store

import "github.com/shopspring/decimal"

// DemoSeed returns the demo product set used when seeding is enabled.
// Ids are left empty and minted by Load.
func DemoSeed() []Product {
	return []Product{
		{Name: "Basmati Rice 5kg", Buy: decimal.NewFromInt(520), Sell: decimal.NewFromInt(650), Stock: 24},
		{Name: "Toor Dal 1kg", Buy: decimal.NewFromInt(130), Sell: decimal.NewFromInt(165), Stock: 3},
		{Name: "Sunflower Oil 1L", Buy: decimal.NewFromInt(118), Sell: decimal.NewFromInt(145), Stock: 12},
		{Name: "Sugar 1kg", Buy: decimal.NewFromInt(40), Sell: decimal.NewFromInt(48), Stock: 0},
		{Name: "Tea Leaves 250g", Buy: decimal.NewFromInt(95), Sell: decimal.RequireFromString("120.50"), Stock: 2},
	}
}
