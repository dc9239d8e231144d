// Package store holds the authoritative product list and sale log,
// backed by flat key-value persistence.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	inverrors "github.com/abgdnv/stockbook/internal/inventory/errors"
	"github.com/abgdnv/stockbook/internal/inventory/kv"
	"github.com/google/uuid"
)

// IDStrategy selects how fresh product ids are minted.
type IDStrategy string

const (
	// IDTimestamp mints "<unix millis>-<random suffix>" string ids.
	IDTimestamp IDStrategy = "timestamp"
	// IDSequential mints integer ids, starting at max(existing)+1.
	IDSequential IDStrategy = "sequential"
)

const (
	DefaultProductsKey = "inventory_products"
	DefaultSalesKey    = "inventory_sales"
)

// InventoryStore is the state the inventory services operate on.
type InventoryStore interface {
	// Find returns a copy of the product with the given id.
	Find(id ID) (Product, bool)

	// Snapshot returns copies of the current products and sales.
	Snapshot() Snapshot

	// Mutate applies fn to a copy of the state and persists the result.
	// The state is left untouched if fn or the persist fails.
	Mutate(ctx context.Context, fn func(*State) error) error
}

// Snapshot is a read-only copy of the store contents.
type Snapshot struct {
	Products []Product
	Sales    []Sale
}

// State is the mutable view handed to Mutate callbacks.
type State struct {
	Products []Product
	Sales    []Sale

	nextSeq int64
	mint    func(*State) ID
}

// NextID mints an id that is not used by any product in the state.
func (st *State) NextID() ID {
	return st.mint(st)
}

// Index returns the position of the product with the given id, or -1.
func (st *State) Index(id ID) int {
	return slices.IndexFunc(st.Products, func(p Product) bool { return p.ID == id })
}

// Options configures a Store.
type Options struct {
	ProductsKey   string
	SalesKey      string
	TrackBuyPrice bool
	IDStrategy    IDStrategy
	// Seed replaces missing or corrupt product data. Ids are minted on load.
	Seed   []Product
	Clock  func() time.Time
	Logger *slog.Logger
}

// Store implements InventoryStore on top of a kv.Backend.
type Store struct {
	mu      sync.RWMutex
	backend kv.Backend
	opts    Options
	logger  *slog.Logger

	products   []Product
	sales      []Sale
	nextSeq    int64
	lastMillis int64
}

// New creates a Store. Call Load before use.
func New(backend kv.Backend, opts Options) *Store {
	if opts.ProductsKey == "" {
		opts.ProductsKey = DefaultProductsKey
	}
	if opts.SalesKey == "" {
		opts.SalesKey = DefaultSalesKey
	}
	if opts.IDStrategy == "" {
		opts.IDStrategy = IDTimestamp
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		backend: backend,
		opts:    opts,
		logger:  opts.Logger.With("component", "store"),
		nextSeq: 1,
	}
}

// Load reads the persisted products and sales. Missing or corrupt entries
// are replaced by the fallback state, which is persisted immediately.
// Only backend failures are returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, productsOK, err := s.readProducts(ctx)
	if err != nil {
		return err
	}
	sales, salesOK, err := s.readSales(ctx)
	if err != nil {
		return err
	}

	s.products = products
	s.sales = sales
	s.nextSeq = nextSeq(products)

	if !productsOK {
		st := s.state()
		for _, p := range s.opts.Seed {
			p.ID = st.NextID()
			st.Products = append(st.Products, p)
		}
		s.products = st.Products
		s.nextSeq = st.nextSeq
	}

	if !productsOK || !salesOK {
		if err := s.persist(ctx, s.products, s.sales); err != nil {
			return fmt.Errorf("failed to persist fallback state: %w", err)
		}
		s.logger.InfoContext(ctx, "initialized fallback state", "products", len(s.products), "sales", len(s.sales))
	}

	s.logger.InfoContext(ctx, "store loaded", "products", len(s.products), "sales", len(s.sales))
	return nil
}

// readProducts returns ok=false when the entry is missing or not a JSON list.
// Invalid records inside a readable list are skipped and logged; the stored
// blob is left as is until the next mutation.
func (s *Store) readProducts(ctx context.Context) ([]Product, bool, error) {
	data, found, err := s.backend.Get(ctx, s.opts.ProductsKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", s.opts.ProductsKey, err)
	}
	if !found {
		return []Product{}, false, nil
	}
	products, dropped, err := decodeProducts(data, s.opts.TrackBuyPrice)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding persisted products",
			"key", s.opts.ProductsKey, "error", errors.Join(inverrors.ErrPersistedDataCorrupt, err))
		return []Product{}, false, nil
	}
	if len(dropped) > 0 {
		s.logger.WarnContext(ctx, "skipping invalid persisted products",
			"key", s.opts.ProductsKey, "dropped", len(dropped), "kept", len(products),
			"error", errors.Join(inverrors.ErrPersistedDataCorrupt, errors.Join(dropped...)))
	}
	return products, true, nil
}

func (s *Store) readSales(ctx context.Context) ([]Sale, bool, error) {
	data, found, err := s.backend.Get(ctx, s.opts.SalesKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", s.opts.SalesKey, err)
	}
	if !found {
		return []Sale{}, false, nil
	}
	sales, dropped, err := decodeSales(data)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding persisted sales",
			"key", s.opts.SalesKey, "error", errors.Join(inverrors.ErrPersistedDataCorrupt, err))
		return []Sale{}, false, nil
	}
	if len(dropped) > 0 {
		s.logger.WarnContext(ctx, "skipping invalid persisted sales",
			"key", s.opts.SalesKey, "dropped", len(dropped), "kept", len(sales),
			"error", errors.Join(inverrors.ErrPersistedDataCorrupt, errors.Join(dropped...)))
	}
	return sales, true, nil
}

// Save writes the current products and sales.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist(ctx, s.products, s.sales)
}

func (s *Store) persist(ctx context.Context, products []Product, sales []Sale) error {
	productsData, err := encodeProducts(products, s.opts.TrackBuyPrice)
	if err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}
	salesData, err := encodeSales(sales)
	if err != nil {
		return fmt.Errorf("failed to encode sales: %w", err)
	}
	err = s.backend.SetMany(ctx, map[string][]byte{
		s.opts.ProductsKey: productsData,
		s.opts.SalesKey:    salesData,
	})
	if err != nil {
		return fmt.Errorf("failed to persist inventory: %w", err)
	}
	return nil
}

// Find returns a copy of the product with the given id.
func (s *Store) Find(id ID) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := slices.IndexFunc(s.products, func(p Product) bool { return p.ID == id })
	if i < 0 {
		return Product{}, false
	}
	return s.products[i], true
}

// Snapshot returns copies of the current products and sales.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Products: slices.Clone(s.products), Sales: slices.Clone(s.sales)}
}

// Mutate runs fn against a copy of the state while holding the write lock.
// The copy is committed only after it has been persisted.
func (s *Store) Mutate(ctx context.Context, fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state()
	if err := fn(st); err != nil {
		return err
	}
	if err := s.persist(ctx, st.Products, st.Sales); err != nil {
		s.logger.ErrorContext(ctx, "mutation not committed", "error", err)
		return err
	}

	s.products = st.Products
	s.sales = st.Sales
	s.nextSeq = st.nextSeq
	return nil
}

// state copies the committed state. Callers must hold the write lock.
func (s *Store) state() *State {
	products := make([]Product, len(s.products))
	copy(products, s.products)
	sales := make([]Sale, len(s.sales))
	copy(sales, s.sales)
	return &State{Products: products, Sales: sales, nextSeq: s.nextSeq, mint: s.mint}
}

func (s *Store) mint(st *State) ID {
	for {
		var id ID
		if s.opts.IDStrategy == IDSequential {
			id = ID(strconv.FormatInt(st.nextSeq, 10))
			st.nextSeq++
		} else {
			millis := s.opts.Clock().UnixMilli()
			if millis <= s.lastMillis {
				millis = s.lastMillis + 1
			}
			s.lastMillis = millis
			id = ID(fmt.Sprintf("%d-%s", millis, uuid.NewString()[:4]))
		}
		if st.Index(id) < 0 {
			return id
		}
	}
}

// nextSeq returns max(numeric ids)+1, or 1 when there are none.
func nextSeq(products []Product) int64 {
	var maxID int64
	for _, p := range products {
		if n, ok := p.ID.Seq(); ok && n > maxID {
			maxID = n
		}
	}
	return maxID + 1
}
