package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	file, err := NewFile(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return map[string]Backend{
		"memory": NewMemory(),
		"file":   file,
	}
}

func Test_Backend_GetMissing(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// when
			value, found, err := b.Get(context.Background(), "inventory_products")

			// then
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, value)
		})
	}
}

func Test_Backend_SetAndGet(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// given
			require.NoError(t, b.Set(ctx, "inventory_products", []byte(`[]`)))
			require.NoError(t, b.Set(ctx, "inventory_products", []byte(`[{"id":1}]`)))

			// when
			value, found, err := b.Get(ctx, "inventory_products")

			// then
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[{"id":1}]`, string(value))
		})
	}
}

func Test_Backend_SetMany(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// when
			err := b.SetMany(ctx, map[string][]byte{
				"inventory_products": []byte(`[]`),
				"inventory_sales":    []byte(`[{"productId":"1"}]`),
			})

			// then
			require.NoError(t, err)
			products, found, err := b.Get(ctx, "inventory_products")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[]`, string(products))
			sales, found, err := b.Get(ctx, "inventory_sales")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[{"productId":"1"}]`, string(sales))
		})
	}
}

func Test_Backend_InvalidKey(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := b.Set(context.Background(), "", []byte(`[]`))
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func Test_Backend_CancelledContext(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, _, err := b.Get(ctx, "inventory_products")
			assert.ErrorIs(t, err, context.Canceled)
			err = b.Set(ctx, "inventory_products", []byte(`[]`))
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func Test_Memory_ReturnsCopies(t *testing.T) {
	// given
	m := NewMemory()
	value := []byte(`[1]`)
	require.NoError(t, m.Set(context.Background(), "k", value))

	// when
	value[1] = '2'
	got, _, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	got[1] = '3'
	again, _, err := m.Get(context.Background(), "k")

	// then
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(again))
}

func Test_File_RejectsPathTraversal(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../escape", "a/b", ".hidden"} {
		_, _, err := f.Get(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func Test_File_LeavesNoTempFiles(t *testing.T) {
	// given
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	// when
	err = f.SetMany(context.Background(), map[string][]byte{
		"inventory_products": []byte(`[]`),
		"inventory_sales":    []byte(`[]`),
	})

	// then
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"inventory_products.json", "inventory_sales.json"}, names)
}
