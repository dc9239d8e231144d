package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ID identifies a product. Sequential ids are numeric and travel as JSON numbers,
// timestamp ids travel as JSON strings.
type ID string

// Seq returns the numeric value of a sequential id.
func (id ID) Seq() (int64, bool) {
	s := string(id)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// MarshalJSON encodes numeric ids as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, ok := id.Seq(); ok {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts either a JSON string or an integer number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("product id must be a string or an integer: %s", data)
	}
	*id = ID(strconv.FormatInt(n, 10))
	return nil
}

// Product represents a stock-keeping unit.
// Buy is zero when the buy price is not tracked.
type Product struct {
	ID    ID
	Name  string
	Buy   decimal.Decimal
	Sell  decimal.Decimal
	Stock int
}

// Sale is an immutable record of a completed sale.
// Revenue and Profit are fixed at sale time.
type Sale struct {
	ProductID ID
	Revenue   decimal.Decimal
	Profit    decimal.Decimal
	Date      string
}

// dateLayout matches the ISO-8601 form with millisecond precision in UTC.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

var parseLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// FormatDate renders t as a sale date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// Time parses the sale date. The boolean is false when the date is missing or unparseable.
func (s Sale) Time() (time.Time, bool) {
	if s.Date == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
