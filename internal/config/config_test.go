package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_Load_Defaults(t *testing.T) {
	// given
	t.Chdir(t.TempDir())

	// when
	cfg, err := Load()

	// then
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPServer.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTPServer.Timeout.Read)
	assert.Equal(t, "50051", cfg.GRPC.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "inventory_products", cfg.Storage.ProductsKey)
	assert.Equal(t, "inventory_sales", cfg.Storage.SalesKey)
	assert.Equal(t, InventoryConfig{
		Variant:           VariantLedger,
		TrackBuyPrice:     true,
		IDStrategy:        "timestamp",
		LowStockThreshold: 19,
		CurrencySymbol:    "₹",
	}, cfg.Inventory)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, BreakerConfig{Enabled: true, ConsecutiveFailures: 5, ErrorRatePercent: 50, OpenTimeout: 10 * time.Second}, cfg.Storage.Breaker)
}

func Test_Load_CatalogPreset(t *testing.T) {
	// given
	path := writeFile(t, "config.yaml", `
inventory:
  variant: catalog
  lowStockThreshold: 5
storage:
  driver: memory
`)

	// when
	cfg, err := LoadFrom(path, filepath.Join(t.TempDir(), ".env"))

	// then
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, InventoryConfig{
		Variant:           VariantCatalog,
		TrackBuyPrice:     false,
		IDStrategy:        "sequential",
		LowStockThreshold: 5,
		SeedDemo:          true,
		SortByName:        true,
		CurrencySymbol:    "₹",
	}, cfg.Inventory)
}

func Test_Load_Priority(t *testing.T) {
	// given
	yamlPath := writeFile(t, "config.yaml", `
server:
  port: 9000
  maxHeaderBytes: 2048
  timeout:
    read: 1s
log:
  level: debug
`)
	envPath := writeFile(t, ".env", `
INVENTORY_SERVER_PORT=9100
INVENTORY_LOG_LEVEL=warn
UNRELATED_VALUE=ignored
`)
	t.Setenv("INVENTORY_SERVER_PORT", "9200")
	t.Setenv("INVENTORY_SERVER_MAXHEADERBYTES", "4096")
	t.Setenv("INVENTORY_INVENTORY_LOWSTOCKTHRESHOLD", "7")

	// when
	cfg, err := LoadFrom(yamlPath, envPath)

	// then
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.HTTPServer.Port, "environment wins over .env and yaml")
	assert.Equal(t, 4096, cfg.HTTPServer.MaxHeaderBytes, "camelCase keys are reachable from the environment")
	assert.Equal(t, "warn", cfg.Log.Level, ".env wins over yaml")
	assert.Equal(t, time.Second, cfg.HTTPServer.Timeout.Read)
	assert.Equal(t, 10*time.Second, cfg.HTTPServer.Timeout.Write, "unset keys keep their default")
	assert.Equal(t, 7, cfg.Inventory.LowStockThreshold)
}

func Test_Load_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "bad port", yaml: "server:\n  port: 70000\n", want: "invalid HTTP server port"},
		{name: "unknown driver", yaml: "storage:\n  driver: redis\n", want: "unknown storage driver"},
		{name: "postgres without url", yaml: "storage:\n  driver: postgres\n", want: "database URL is not configured"},
		{name: "postgres with mysql url", yaml: "storage:\n  driver: postgres\n  database:\n    url: mysql://x\n", want: "must start with 'postgres://'"},
		{name: "same keys", yaml: "storage:\n  salesKey: inventory_products\n", want: "different storage keys"},
		{name: "breaker without threshold", yaml: "storage:\n  driver: postgres\n  database:\n    url: postgres://x\n  breaker:\n    consecutiveFailures: 0\n", want: "consecutiveFailures must be greater than 0"},
		{name: "unknown variant", yaml: "inventory:\n  variant: kiosk\n", want: "unknown inventory variant"},
		{name: "unknown id strategy", yaml: "inventory:\n  idStrategy: random\n", want: "unknown id strategy"},
		{name: "negative threshold", yaml: "inventory:\n  lowStockThreshold: -1\n", want: "must not be negative"},
		{name: "pprof without addr", yaml: "pprof:\n  enabled: true\n  addr: \"\"\n", want: "pprof is enabled"},
		{name: "metrics path", yaml: "metrics:\n  path: metrics\n", want: "metrics path"},
		{name: "malformed yaml", yaml: "server: [\n", want: "error loading YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", tt.yaml)

			cfg, err := LoadFrom(path, filepath.Join(t.TempDir(), ".env"))

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func Test_String_MasksDatabaseURL(t *testing.T) {
	cfg := Config{Storage: StorageConfig{Driver: DriverPostgres, Database: DatabaseConfig{URL: "postgres://user:secret@db:5432/inventory"}}}

	s := cfg.String()

	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "****@db:5432/inventory")
	assert.Contains(t, s, "storage.driver: postgres")
}
