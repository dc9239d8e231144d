package config

import (
	"fmt"
	"strings"
	"time"
)

type HTTPConfig struct {
	Port           int `koanf:"port"`
	MaxHeaderBytes int `koanf:"maxHeaderBytes"`
	Timeout        struct {
		Read       time.Duration `koanf:"read"`
		Write      time.Duration `koanf:"write"`
		Idle       time.Duration `koanf:"idle"`
		ReadHeader time.Duration `koanf:"readHeader"`
	} `koanf:"timeout"`
}

func (c *HTTPConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Server ---\n")
	b.WriteString(fmt.Sprintf("  server.port: %d\n", c.Port))
	b.WriteString(fmt.Sprintf("  server.maxHeaderBytes: %d\n", c.MaxHeaderBytes))
	b.WriteString(fmt.Sprintf("  server.timeout.read: %v\n", c.Timeout.Read))
	b.WriteString(fmt.Sprintf("  server.timeout.write: %v\n", c.Timeout.Write))
	b.WriteString(fmt.Sprintf("  server.timeout.idle: %v\n", c.Timeout.Idle))
	b.WriteString(fmt.Sprintf("  server.timeout.readHeader: %v\n", c.Timeout.ReadHeader))
	return b.String()
}

func (c *HTTPConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP server port: %d", c.Port)
	}
	if c.Timeout.Read <= 0 {
		return fmt.Errorf("invalid HTTP server read timeout: %v", c.Timeout.Read)
	}
	if c.Timeout.Write <= 0 {
		return fmt.Errorf("invalid HTTP server write timeout: %v", c.Timeout.Write)
	}
	if c.Timeout.Idle <= 0 {
		return fmt.Errorf("invalid HTTP server idle timeout: %v", c.Timeout.Idle)
	}
	if c.Timeout.ReadHeader <= 0 {
		return fmt.Errorf("invalid HTTP server read header timeout: %v", c.Timeout.ReadHeader)
	}
	return nil
}

type GrpcServerConfig struct {
	Port              string `koanf:"port"`
	ReflectionEnabled bool   `koanf:"reflection"`
}

func (c *GrpcServerConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- gRPC ---\n")
	b.WriteString(fmt.Sprintf("  grpc.port: %s\n", c.Port))
	b.WriteString(fmt.Sprintf("  grpc.reflection: %t\n", c.ReflectionEnabled))
	return b.String()
}

func (c *GrpcServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("gRPC port is not configured")
	}
	return nil
}

type LogConfig struct {
	Level string `koanf:"level"`
}

func (c *LogConfig) String() string {
	return fmt.Sprintf("\n--- Log ---\n  log.level: %s\n", c.Level)
}

// Validate accepts any level; unknown levels fall back to info.
func (c *LogConfig) Validate() error {
	return nil
}

type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

func (c *PProfConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- PProf ---\n")
	b.WriteString(fmt.Sprintf("  pprof.enabled: %t\n", c.Enabled))
	b.WriteString(fmt.Sprintf("  pprof.addr: %s\n", c.Addr))
	return b.String()
}

func (c *PProfConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("pprof is enabled but address is not configured")
	}
	return nil
}

type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

func (c *ShutdownConfig) String() string {
	return fmt.Sprintf("\n--- Shutdown ---\n  shutdown.timeout: %s\n", c.Timeout)
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	return nil
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
	Prefix  string `koanf:"prefix"`
}

func (c *MetricsConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Metrics ---\n")
	b.WriteString(fmt.Sprintf("  metrics.enabled: %t\n", c.Enabled))
	b.WriteString(fmt.Sprintf("  metrics.path: %s\n", c.Path))
	b.WriteString(fmt.Sprintf("  metrics.prefix: %s\n", c.Prefix))
	return b.String()
}

func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics path must start with '/': %q", c.Path)
	}
	if c.Prefix == "" {
		return fmt.Errorf("metrics prefix is not configured")
	}
	return nil
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

func (c *DatabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("database URL is not configured")
	}
	if !isValidPostgresURL(c.URL) {
		return fmt.Errorf("database URL must start with 'postgres://': %s", maskURL(c.URL))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("database timeout is not configured")
	}
	return nil
}

// BreakerConfig guards the database backend with a circuit breaker.
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutiveFailures"`
	ErrorRatePercent    int           `koanf:"errorRatePercent"`
	OpenTimeout         time.Duration `koanf:"openTimeout"`
}

func (c *BreakerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ConsecutiveFailures == 0 {
		return fmt.Errorf("breaker.consecutiveFailures must be greater than 0")
	}
	if c.ErrorRatePercent < 0 || c.ErrorRatePercent > 100 {
		return fmt.Errorf("breaker.errorRatePercent must be between 0 and 100")
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("breaker.openTimeout must be greater than 0")
	}
	return nil
}

// isValidPostgresURL checks if the provided URL is a valid PostgreSQL URL
func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

type StorageConfig struct {
	Driver      string         `koanf:"driver"`
	Dir         string         `koanf:"dir"`
	Database    DatabaseConfig `koanf:"database"`
	Breaker     BreakerConfig  `koanf:"breaker"`
	ProductsKey string         `koanf:"productsKey"`
	SalesKey    string         `koanf:"salesKey"`
}

func (c *StorageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  storage.driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  storage.dir: %s\n", c.Dir))
	b.WriteString(fmt.Sprintf("  storage.database.url: %s\n", maskURL(c.Database.URL)))
	b.WriteString(fmt.Sprintf("  storage.database.timeout: %s\n", c.Database.Timeout))
	b.WriteString(fmt.Sprintf("  storage.breaker.enabled: %t\n", c.Breaker.Enabled))
	b.WriteString(fmt.Sprintf("  storage.productsKey: %s\n", c.ProductsKey))
	b.WriteString(fmt.Sprintf("  storage.salesKey: %s\n", c.SalesKey))
	return b.String()
}

func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Dir == "" {
			return fmt.Errorf("storage dir is required for the file driver")
		}
	case DriverPostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
		if err := c.Breaker.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Driver)
	}
	if c.ProductsKey == "" || c.SalesKey == "" {
		return fmt.Errorf("storage keys are not configured")
	}
	if c.ProductsKey == c.SalesKey {
		return fmt.Errorf("products and sales must use different storage keys: %s", c.ProductsKey)
	}
	return nil
}

// Inventory variants.
const (
	VariantLedger  = "ledger"
	VariantCatalog = "catalog"
)

// InventoryConfig selects the behaviour of the inventory core.
type InventoryConfig struct {
	Variant           string `koanf:"variant"`
	TrackBuyPrice     bool   `koanf:"trackBuyPrice"`
	IDStrategy        string `koanf:"idStrategy"`
	LowStockThreshold int    `koanf:"lowStockThreshold"`
	SeedDemo          bool   `koanf:"seedDemo"`
	SortByName        bool   `koanf:"sortByName"`
	CurrencySymbol    string `koanf:"currencySymbol"`
}

func (c *InventoryConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Inventory ---\n")
	b.WriteString(fmt.Sprintf("  inventory.variant: %s\n", c.Variant))
	b.WriteString(fmt.Sprintf("  inventory.trackBuyPrice: %t\n", c.TrackBuyPrice))
	b.WriteString(fmt.Sprintf("  inventory.idStrategy: %s\n", c.IDStrategy))
	b.WriteString(fmt.Sprintf("  inventory.lowStockThreshold: %d\n", c.LowStockThreshold))
	b.WriteString(fmt.Sprintf("  inventory.seedDemo: %t\n", c.SeedDemo))
	b.WriteString(fmt.Sprintf("  inventory.sortByName: %t\n", c.SortByName))
	b.WriteString(fmt.Sprintf("  inventory.currencySymbol: %s\n", c.CurrencySymbol))
	return b.String()
}

func (c *InventoryConfig) Validate() error {
	if _, ok := presets[c.Variant]; !ok {
		return fmt.Errorf("unknown inventory variant: %q", c.Variant)
	}
	if c.IDStrategy != "timestamp" && c.IDStrategy != "sequential" {
		return fmt.Errorf("unknown id strategy: %q", c.IDStrategy)
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("low stock threshold must not be negative: %d", c.LowStockThreshold)
	}
	return nil
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return "****"
}
