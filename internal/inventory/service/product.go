package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	inverrors "github.com/abgdnv/stockbook/internal/inventory/errors"
	"github.com/abgdnv/stockbook/internal/inventory/store"
)

// FindByID retrieves a product by its ID and returns it as a ProductDto.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindByID(ctx context.Context, id store.ID) (*ProductDto, error) {
	p, ok := s.store.Find(id)
	if !ok {
		return nil, fmt.Errorf("failed to fetch product by ID %s: %w", id, inverrors.ErrProductNotFound)
	}
	s.logger.DebugContext(ctx, "product found", "ID", id)
	dto := s.toDto(p)
	return &dto, nil
}

// FindAll retrieves a list of all products and returns them as ProductDTOs.
func (s *Service) FindAll(ctx context.Context) ([]ProductDto, error) {
	products := s.store.Snapshot().Products
	if s.cfg.SortByName {
		slices.SortStableFunc(products, func(a, b store.Product) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	}

	dtos := make([]ProductDto, len(products))
	for i, p := range products {
		dtos[i] = s.toDto(p)
	}
	s.logger.DebugContext(ctx, "products listed", "count", len(dtos))
	return dtos, nil
}

// Create validates the input, mints a fresh id and appends the product.
func (s *Service) Create(ctx context.Context, input ProductInput) (*ProductDto, error) {
	product, err := s.parseInput(input)
	if err != nil {
		s.logger.WarnContext(ctx, "product rejected", "error", err)
		return nil, err
	}

	err = s.store.Mutate(ctx, func(st *store.State) error {
		product.ID = st.NextID()
		st.Products = append(st.Products, product)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created", "ID", product.ID, "name", product.Name)
	dto := s.toDto(product)
	return &dto, nil
}

// Update replaces every field but the id of an existing product.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) Update(ctx context.Context, id store.ID, input ProductInput) (*ProductDto, error) {
	product, err := s.parseInput(input)
	if err != nil {
		s.logger.WarnContext(ctx, "product update rejected", "ID", id, "error", err)
		return nil, err
	}
	product.ID = id

	err = s.store.Mutate(ctx, func(st *store.State) error {
		i := st.Index(id)
		if i < 0 {
			return inverrors.ErrProductNotFound
		}
		st.Products[i] = product
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update product with ID %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "product updated", "ID", id, "name", product.Name)
	dto := s.toDto(product)
	return &dto, nil
}

// DeleteByID removes the product if present. Sales referencing it are kept.
func (s *Service) DeleteByID(ctx context.Context, id store.ID) error {
	var removed bool
	err := s.store.Mutate(ctx, func(st *store.State) error {
		before := len(st.Products)
		st.Products = slices.DeleteFunc(st.Products, func(p store.Product) bool { return p.ID == id })
		removed = len(st.Products) != before
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete product with ID %s: %w", id, err)
	}

	if removed {
		s.logger.InfoContext(ctx, "product deleted", "ID", id)
	} else {
		s.logger.DebugContext(ctx, "product to delete not found", "ID", id)
	}
	return nil
}
