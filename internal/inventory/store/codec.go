package store

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ledgerRecord is the persisted product shape when the buy price is tracked.
type ledgerRecord struct {
	ID    ID          `json:"id"`
	Name  string      `json:"name"`
	Buy   json.Number `json:"buy"`
	Sell  json.Number `json:"sell"`
	Stock int         `json:"stock"`
}

// catalogRecord is the persisted product shape with a single price.
type catalogRecord struct {
	ID    ID          `json:"id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Stock int         `json:"stock"`
}

type saleRecord struct {
	ProductID ID          `json:"productId"`
	Revenue   json.Number `json:"revenue"`
	Profit    json.Number `json:"profit"`
	Date      string      `json:"date,omitempty"`
}

func encodeProducts(products []Product, trackBuyPrice bool) ([]byte, error) {
	if trackBuyPrice {
		records := make([]ledgerRecord, len(products))
		for i, p := range products {
			records[i] = ledgerRecord{ID: p.ID, Name: p.Name, Buy: number(p.Buy), Sell: number(p.Sell), Stock: p.Stock}
		}
		return json.Marshal(records)
	}
	records := make([]catalogRecord, len(products))
	for i, p := range products {
		records[i] = catalogRecord{ID: p.ID, Name: p.Name, Price: number(p.Sell), Stock: p.Stock}
	}
	return json.Marshal(records)
}

// decodeProducts parses a persisted product list. Records that cannot be decoded
// or break the store invariants (empty or duplicate ids, negative stock or prices)
// are skipped and reported in dropped; err is set only when the list itself is unreadable.
func decodeProducts(data []byte, trackBuyPrice bool) (products []Product, dropped []error, err error) {
	if trackBuyPrice {
		products, dropped, err = decodeRecords(data, func(r ledgerRecord) (Product, error) {
			buy, err := amount(r.Buy)
			if err != nil {
				return Product{}, err
			}
			sell, err := amount(r.Sell)
			if err != nil {
				return Product{}, err
			}
			return Product{ID: r.ID, Name: r.Name, Buy: buy, Sell: sell, Stock: r.Stock}, nil
		})
	} else {
		products, dropped, err = decodeRecords(data, func(r catalogRecord) (Product, error) {
			price, err := amount(r.Price)
			if err != nil {
				return Product{}, err
			}
			return Product{ID: r.ID, Name: r.Name, Sell: price, Stock: r.Stock}, nil
		})
	}
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[ID]struct{}, len(products))
	valid := products[:0]
	for _, p := range products {
		switch _, dup := seen[p.ID]; {
		case p.ID == "":
			dropped = append(dropped, fmt.Errorf("product %q has no id", p.Name))
		case dup:
			dropped = append(dropped, fmt.Errorf("duplicate product id %s", p.ID))
		case p.Stock < 0 || p.Buy.IsNegative() || p.Sell.IsNegative():
			dropped = append(dropped, fmt.Errorf("product %s has negative values", p.ID))
		default:
			seen[p.ID] = struct{}{}
			valid = append(valid, p)
		}
	}
	return valid, dropped, nil
}

// decodeRecords decodes a JSON array one element at a time, so that a bad
// element costs only itself.
func decodeRecords[R, T any](data []byte, convert func(R) (T, error)) ([]T, []error, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, err
	}
	items := make([]T, 0, len(raws))
	var dropped []error
	for i, raw := range raws {
		var r R
		if err := json.Unmarshal(raw, &r); err != nil {
			dropped = append(dropped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		item, err := convert(r)
		if err != nil {
			dropped = append(dropped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		items = append(items, item)
	}
	return items, dropped, nil
}

func encodeSales(sales []Sale) ([]byte, error) {
	records := make([]saleRecord, len(sales))
	for i, s := range sales {
		records[i] = saleRecord{ProductID: s.ProductID, Revenue: number(s.Revenue), Profit: number(s.Profit), Date: s.Date}
	}
	return json.Marshal(records)
}

func decodeSales(data []byte) ([]Sale, []error, error) {
	return decodeRecords(data, func(r saleRecord) (Sale, error) {
		revenue, err := amount(r.Revenue)
		if err != nil {
			return Sale{}, err
		}
		profit, err := amount(r.Profit)
		if err != nil {
			return Sale{}, err
		}
		return Sale{ProductID: r.ProductID, Revenue: revenue, Profit: profit, Date: r.Date}, nil
	})
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// maxExponent bounds the exponent of persisted amounts. Larger ones would
// expand into huge digit strings on the next save.
const maxExponent = 32

// amount converts a persisted number; a missing value counts as zero.
func amount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, err
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Decimal{}, fmt.Errorf("amount %s is out of range", n)
	}
	return d, nil
}
