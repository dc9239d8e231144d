package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	inverrors "github.com/abgdnv/stockbook/internal/inventory/errors"
	"github.com/abgdnv/stockbook/internal/inventory/kv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyBackend wraps kv.Memory and fails on demand.
type faultyBackend struct {
	*kv.Memory
	getErr error
	setErr error
	writes int
}

func (b *faultyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.getErr != nil {
		return nil, false, b.getErr
	}
	return b.Memory.Get(ctx, key)
}

func (b *faultyBackend) SetMany(ctx context.Context, entries map[string][]byte) error {
	if b.setErr != nil {
		return b.setErr
	}
	b.writes++
	return b.Memory.SetMany(ctx, entries)
}

func newBackend() *faultyBackend {
	return &faultyBackend{Memory: kv.NewMemory()}
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertProducts(t *testing.T, expected, actual []Product) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.Equal(t, expected[i].ID, actual[i].ID)
		assert.Equal(t, expected[i].Name, actual[i].Name)
		assert.True(t, expected[i].Buy.Equal(actual[i].Buy), "buy of %s: %s != %s", expected[i].ID, expected[i].Buy, actual[i].Buy)
		assert.True(t, expected[i].Sell.Equal(actual[i].Sell), "sell of %s: %s != %s", expected[i].ID, expected[i].Sell, actual[i].Sell)
		assert.Equal(t, expected[i].Stock, actual[i].Stock)
	}
}

func stored(t *testing.T, b kv.Backend, key string) string {
	t.Helper()
	data, found, err := b.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, found, "key %s was not persisted", key)
	return string(data)
}

func Test_Load_MissingData(t *testing.T) {
	// given
	b := newBackend()
	s := New(b, Options{TrackBuyPrice: true})

	// when
	err := s.Load(context.Background())

	// then
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Empty(t, snap.Products)
	assert.Empty(t, snap.Sales)
	assert.Equal(t, `[]`, stored(t, b, DefaultProductsKey))
	assert.Equal(t, `[]`, stored(t, b, DefaultSalesKey))
}

func Test_Load_MissingDataWithSeed(t *testing.T) {
	// given
	b := newBackend()
	s := New(b, Options{IDStrategy: IDSequential, Seed: DemoSeed()})

	// when
	err := s.Load(context.Background())

	// then
	require.NoError(t, err)
	products := s.Snapshot().Products
	require.Len(t, products, len(DemoSeed()))
	for i, p := range products {
		assert.Equal(t, ID(string(rune('1'+i))), p.ID)
	}
	assert.Contains(t, stored(t, b, DefaultProductsKey), `{"id":1,"name":"Basmati Rice 5kg","price":650,"stock":24}`)
}

func Test_Load_CorruptData(t *testing.T) {
	tests := []struct {
		name     string
		products string
	}{
		{name: "malformed json", products: `[{"id":1,`},
		{name: "not an array", products: `{"id":1}`},
		{name: "plain text", products: `inventory`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			b := newBackend()
			ctx := context.Background()
			require.NoError(t, b.Set(ctx, DefaultProductsKey, []byte(tt.products)))
			require.NoError(t, b.Set(ctx, DefaultSalesKey, []byte(`[{"productId":"9","revenue":10,"profit":2,"date":"2025-03-01T10:00:00.000Z"}]`)))
			s := New(b, Options{IDStrategy: IDSequential})

			// when
			err := s.Load(ctx)

			// then
			require.NoError(t, err)
			snap := s.Snapshot()
			assert.Empty(t, snap.Products)
			assert.Len(t, snap.Sales, 1)
			assert.Equal(t, `[]`, stored(t, b, DefaultProductsKey))
		})
	}
}

func Test_Load_SkipsInvalidRecords(t *testing.T) {
	const valid = `{"id":2,"name":"Salt","price":12,"stock":4}`
	tests := []struct {
		name    string
		invalid string
	}{
		{name: "duplicate id", invalid: `{"id":2,"name":"Sugar","price":1,"stock":1}`},
		{name: "missing id", invalid: `{"name":"A","price":1,"stock":1}`},
		{name: "negative stock", invalid: `{"id":1,"name":"A","price":1,"stock":-4}`},
		{name: "negative price", invalid: `{"id":1,"name":"A","price":-1,"stock":4}`},
		{name: "fractional stock", invalid: `{"id":1,"name":"A","price":1,"stock":5.5}`},
		{name: "non-integer id", invalid: `{"id":1.5,"name":"A","price":1,"stock":4}`},
		{name: "price as text", invalid: `{"id":1,"name":"A","price":"cheap","stock":4}`},
		{name: "huge exponent", invalid: `{"id":1,"name":"A","price":1e50000000,"stock":4}`},
		{name: "null record", invalid: `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			b := newBackend()
			ctx := context.Background()
			raw := `[` + valid + `,` + tt.invalid + `]`
			require.NoError(t, b.Set(ctx, DefaultProductsKey, []byte(raw)))
			require.NoError(t, b.Set(ctx, DefaultSalesKey, []byte(`[]`)))
			s := New(b, Options{IDStrategy: IDSequential, Seed: DemoSeed()})

			// when
			err := s.Load(ctx)

			// then
			require.NoError(t, err)
			assertProducts(t, []Product{{ID: "2", Name: "Salt", Sell: dec("12"), Stock: 4}}, s.Snapshot().Products)
			assert.Equal(t, raw, stored(t, b, DefaultProductsKey), "stored data is not rewritten on load")
			assert.Zero(t, b.writes, "nothing is persisted")
		})
	}
}

func Test_Load_SkipsInvalidSales(t *testing.T) {
	// given
	b := newBackend()
	ctx := context.Background()
	require.NoError(t, b.Set(ctx, DefaultProductsKey, []byte(`[]`)))
	require.NoError(t, b.Set(ctx, DefaultSalesKey, []byte(
		`[{"productId":"a","revenue":10,"profit":2},{"productId":"b","revenue":"ten","profit":2}]`)))
	s := New(b, Options{TrackBuyPrice: true})

	// when
	err := s.Load(ctx)

	// then
	require.NoError(t, err)
	sales := s.Snapshot().Sales
	require.Len(t, sales, 1)
	assert.Equal(t, ID("a"), sales[0].ProductID)
}

func Test_Load_CorruptSales(t *testing.T) {
	// given
	b := newBackend()
	ctx := context.Background()
	require.NoError(t, b.Set(ctx, DefaultProductsKey, []byte(`[{"id":"a","name":"Rice","buy":200,"sell":250,"stock":10}]`)))
	require.NoError(t, b.Set(ctx, DefaultSalesKey, []byte(`not json`)))
	s := New(b, Options{TrackBuyPrice: true})

	// when
	err := s.Load(ctx)

	// then
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Len(t, snap.Products, 1)
	assert.Empty(t, snap.Sales)
	assert.Equal(t, `[]`, stored(t, b, DefaultSalesKey))
}

func Test_Load_NullIsEmpty(t *testing.T) {
	// given
	b := newBackend()
	ctx := context.Background()
	require.NoError(t, b.Set(ctx, DefaultProductsKey, []byte(`null`)))
	require.NoError(t, b.Set(ctx, DefaultSalesKey, []byte(`null`)))
	s := New(b, Options{Seed: DemoSeed()})

	// when
	err := s.Load(ctx)

	// then
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot().Products, "null is a valid empty list and must not trigger the seed")
	assert.Zero(t, b.writes)
}

func Test_Load_BackendError(t *testing.T) {
	// given
	b := newBackend()
	b.getErr = errors.New("disk on fire")
	s := New(b, Options{})

	// when
	err := s.Load(context.Background())

	// then
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func Test_Load_FallbackPersistError(t *testing.T) {
	// given
	b := newBackend()
	b.setErr = errors.New("read-only")
	s := New(b, Options{})

	// when
	err := s.Load(context.Background())

	// then
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}

func Test_Load_SequentialCounter(t *testing.T) {
	// given
	b := newBackend()
	ctx := context.Background()
	require.NoError(t, b.Set(ctx, DefaultProductsKey, []byte(`[{"id":7,"name":"A","price":1,"stock":1},{"id":"legacy-x","name":"B","price":2,"stock":2},{"id":3,"name":"C","price":3,"stock":3}]`)))
	s := New(b, Options{IDStrategy: IDSequential})
	require.NoError(t, s.Load(ctx))

	// when
	var minted ID
	err := s.Mutate(ctx, func(st *State) error {
		minted = st.NextID()
		st.Products = append(st.Products, Product{ID: minted, Name: "D", Sell: dec("4"), Stock: 4})
		return nil
	})

	// then
	require.NoError(t, err)
	assert.Equal(t, ID("8"), minted)
}

func Test_RoundTrip(t *testing.T) {
	for _, track := range []bool{true, false} {
		t.Run(map[bool]string{true: "ledger", false: "catalog"}[track], func(t *testing.T) {
			// given
			ctx := context.Background()
			b := newBackend()
			s := New(b, Options{TrackBuyPrice: track, Clock: fixedClock()})
			require.NoError(t, s.Load(ctx))
			buy := dec("200")
			if !track {
				buy = decimal.Zero
			}
			err := s.Mutate(ctx, func(st *State) error {
				st.Products = append(st.Products,
					Product{ID: st.NextID(), Name: "Rice", Buy: buy, Sell: dec("250.75"), Stock: 10},
					Product{ID: st.NextID(), Name: "Dal", Buy: buy, Sell: dec("99"), Stock: 0},
				)
				st.Sales = append(st.Sales, Sale{ProductID: st.Products[0].ID, Revenue: dec("752.25"), Profit: dec("152.25"), Date: FormatDate(fixedClock()())})
				return nil
			})
			require.NoError(t, err)

			// when
			reloaded := New(b, Options{TrackBuyPrice: track})
			require.NoError(t, reloaded.Load(ctx))

			// then
			assertProducts(t, s.Snapshot().Products, reloaded.Snapshot().Products)
			sales := reloaded.Snapshot().Sales
			require.Len(t, sales, 1)
			assert.True(t, dec("752.25").Equal(sales[0].Revenue))
			assert.True(t, dec("152.25").Equal(sales[0].Profit))
			assert.Equal(t, "2025-03-14T10:00:00.000Z", sales[0].Date)
		})
	}
}

func Test_Mutate_FnErrorLeavesStateUntouched(t *testing.T) {
	// given
	ctx := context.Background()
	b := newBackend()
	s := New(b, Options{IDStrategy: IDSequential})
	require.NoError(t, s.Load(ctx))
	writes := b.writes

	// when
	err := s.Mutate(ctx, func(st *State) error {
		st.Products = append(st.Products, Product{ID: st.NextID(), Name: "X"})
		return inverrors.ErrInsufficientStock
	})

	// then
	assert.ErrorIs(t, err, inverrors.ErrInsufficientStock)
	assert.Empty(t, s.Snapshot().Products)
	assert.Equal(t, writes, b.writes)
}

func Test_Mutate_PersistErrorLeavesStateUntouched(t *testing.T) {
	// given
	ctx := context.Background()
	b := newBackend()
	s := New(b, Options{IDStrategy: IDSequential})
	require.NoError(t, s.Load(ctx))
	b.setErr = errors.New("quota exceeded")

	// when
	err := s.Mutate(ctx, func(st *State) error {
		st.Products = append(st.Products, Product{ID: st.NextID(), Name: "X"})
		return nil
	})

	// then
	require.Error(t, err)
	assert.Empty(t, s.Snapshot().Products)

	// the failed mint is not committed
	b.setErr = nil
	var minted ID
	require.NoError(t, s.Mutate(ctx, func(st *State) error {
		minted = st.NextID()
		st.Products = append(st.Products, Product{ID: minted, Name: "Y"})
		return nil
	}))
	assert.Equal(t, ID("1"), minted)
}

func Test_Mutate_CopiesState(t *testing.T) {
	// given
	ctx := context.Background()
	s := New(newBackend(), Options{IDStrategy: IDSequential})
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.Mutate(ctx, func(st *State) error {
		st.Products = append(st.Products, Product{ID: st.NextID(), Name: "Rice", Stock: 10})
		return nil
	}))

	// when
	_ = s.Mutate(ctx, func(st *State) error {
		st.Products[0].Stock = 0
		return errors.New("abort")
	})

	// then
	p, ok := s.Find("1")
	require.True(t, ok)
	assert.Equal(t, 10, p.Stock)
}

func Test_TimestampIDs(t *testing.T) {
	// given
	ctx := context.Background()
	s := New(newBackend(), Options{Clock: fixedClock()})
	require.NoError(t, s.Load(ctx))

	// when
	var ids []ID
	require.NoError(t, s.Mutate(ctx, func(st *State) error {
		for range 3 {
			id := st.NextID()
			ids = append(ids, id)
			st.Products = append(st.Products, Product{ID: id, Name: "P"})
		}
		return nil
	}))

	// then
	millis := fixedClock()().UnixMilli()
	require.Len(t, ids, 3)
	for i, id := range ids {
		assert.Regexp(t, `^\d{13}-[0-9a-f]{4}$`, string(id))
		assert.Equal(t, millis+int64(i), mustMillis(t, id), "timestamps stay monotonic under a frozen clock")
	}
}

func mustMillis(t *testing.T, id ID) int64 {
	t.Helper()
	prefix, _, ok := strings.Cut(string(id), "-")
	require.True(t, ok)
	millis, err := strconv.ParseInt(prefix, 10, 64)
	require.NoError(t, err)
	return millis
}

func Test_Find(t *testing.T) {
	// given
	ctx := context.Background()
	s := New(newBackend(), Options{IDStrategy: IDSequential, Seed: DemoSeed()})
	require.NoError(t, s.Load(ctx))

	// when
	found, ok := s.Find("2")
	_, missing := s.Find("404")

	// then
	assert.True(t, ok)
	assert.Equal(t, "Toor Dal 1kg", found.Name)
	assert.False(t, missing)
}

func Test_ID_JSON(t *testing.T) {
	tests := []struct {
		id   ID
		json string
	}{
		{id: "1", json: `1`},
		{id: "42", json: `42`},
		{id: "007", json: `"007"`},
		{id: "1741946400000-a1b2", json: `"1741946400000-a1b2"`},
		{id: "-3", json: `"-3"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			data, err := json.Marshal(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.json, string(data))

			var back ID
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.id, back)
		})
	}
}

func Test_Sale_Time(t *testing.T) {
	tests := []struct {
		date string
		ok   bool
	}{
		{date: "2025-03-14T10:00:00.000Z", ok: true},
		{date: "2025-03-14T10:00:00+05:30", ok: true},
		{date: "2025-03-14T10:00:00", ok: true},
		{date: "2025-03-14", ok: true},
		{date: "", ok: false},
		{date: "yesterday", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			_, ok := Sale{Date: tt.date}.Time()
			assert.Equal(t, tt.ok, ok)
		})
	}
}
