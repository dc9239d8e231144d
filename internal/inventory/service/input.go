package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	inverrors "github.com/abgdnv/stockbook/internal/inventory/errors"
	"github.com/abgdnv/stockbook/internal/inventory/store"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RawNumber is a numeric form value as entered by the user.
// It decodes from either a JSON string or a JSON number.
type RawNumber string

func (n *RawNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = RawNumber(s)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("expected a number or a string: %w", err)
		}
		*n = RawNumber(num)
	}
	return nil
}

// ProductInput carries the raw values of the product form.
// Price is accepted as an alias of Sell for single-price clients.
type ProductInput struct {
	Name  string    `json:"name"  validate:"required"`
	Buy   RawNumber `json:"buy"   validate:"required,price"`
	Sell  RawNumber `json:"sell"  validate:"required,price"`
	Price RawNumber `json:"price" validate:"-"`
	Stock RawNumber `json:"stock" validate:"required,number"`
}

// priceRegex accepts plain non-negative decimals. Exponent forms are rejected
// since "1e50000000" would be expanded digit by digit on every save.
var priceRegex = regexp.MustCompile(`^\d{1,15}(\.\d{1,6})?$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		return priceRegex.MatchString(fl.Field().String())
	})
	return v
}

// parseInput trims and validates the raw input and converts it into a product.
func (s *Service) parseInput(input ProductInput) (store.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Buy = RawNumber(strings.TrimSpace(string(input.Buy)))
	input.Sell = RawNumber(strings.TrimSpace(string(input.Sell)))
	input.Stock = RawNumber(strings.TrimSpace(string(input.Stock)))
	if input.Sell == "" {
		input.Sell = RawNumber(strings.TrimSpace(string(input.Price)))
	}
	if !s.cfg.TrackBuyPrice {
		input.Buy = "0"
	}

	if err := s.validate.Struct(input); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make(map[string]string, len(validationErrors))
			for _, fieldErr := range validationErrors {
				fields[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			return store.Product{}, &inverrors.ValidationError{Fields: fields}
		}
		return store.Product{}, fmt.Errorf("failed to validate product: %w", err)
	}

	stock, err := strconv.Atoi(string(input.Stock))
	if err != nil {
		return store.Product{}, inverrors.NewValidationError("Stock", "number")
	}
	product := store.Product{
		Name:  input.Name,
		Buy:   decimal.RequireFromString(string(input.Buy)),
		Sell:  decimal.RequireFromString(string(input.Sell)),
		Stock: stock,
	}
	if !s.cfg.TrackBuyPrice {
		product.Buy = decimal.Zero
	}
	return product, nil
}
