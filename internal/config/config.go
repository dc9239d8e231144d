// Package config loads the service configuration from config.yaml, a .env file
// and INVENTORY_ prefixed environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix  = "INVENTORY_"
	ConfigFile = "config.yaml"
	EnvFile    = ".env"
)

type Config struct {
	HTTPServer HTTPConfig       `koanf:"server"`
	GRPC       GrpcServerConfig `koanf:"grpc"`
	Log        LogConfig        `koanf:"log"`
	PProf      PProfConfig      `koanf:"pprof"`
	Shutdown   ShutdownConfig   `koanf:"shutdown"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Storage    StorageConfig    `koanf:"storage"`
	Inventory  InventoryConfig  `koanf:"inventory"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.Storage.String())
	b.WriteString(c.Inventory.String())
	b.WriteString(c.Metrics.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.HTTPServer, &c.GRPC, &c.Log, &c.PProf, &c.Shutdown, &c.Metrics, &c.Storage, &c.Inventory,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

var defaults = map[string]any{
	"server.port":               8080,
	"server.maxHeaderBytes":     1 << 20,
	"server.timeout.read":       5 * time.Second,
	"server.timeout.write":      10 * time.Second,
	"server.timeout.idle":       120 * time.Second,
	"server.timeout.readHeader": 2 * time.Second,

	"grpc.port":       "50051",
	"grpc.reflection": false,

	"log.level": "info",

	"pprof.enabled": false,
	"pprof.addr":    "localhost:6060",

	"shutdown.timeout": 10 * time.Second,

	"metrics.enabled": true,
	"metrics.path":    "/metrics",
	"metrics.prefix":  "inventory",

	"storage.driver":                      DriverFile,
	"storage.dir":                         "data",
	"storage.database.url":                "",
	"storage.database.timeout":            5 * time.Second,
	"storage.breaker.enabled":             true,
	"storage.breaker.consecutiveFailures": 5,
	"storage.breaker.errorRatePercent":    50,
	"storage.breaker.openTimeout":         10 * time.Second,
	"storage.productsKey":                 "inventory_products",
	"storage.salesKey":                    "inventory_sales",

	"inventory.variant":           VariantLedger,
	"inventory.trackBuyPrice":     true,
	"inventory.idStrategy":        "timestamp",
	"inventory.lowStockThreshold": 19,
	"inventory.seedDemo":          false,
	"inventory.sortByName":        false,
	"inventory.currencySymbol":    "₹",
}

// presets hold the inventory settings of each variant. Explicit keys override them.
var presets = map[string]map[string]any{
	VariantLedger: {
		"inventory.trackBuyPrice":     true,
		"inventory.idStrategy":        "timestamp",
		"inventory.lowStockThreshold": 19,
		"inventory.seedDemo":          false,
		"inventory.sortByName":        false,
	},
	VariantCatalog: {
		"inventory.trackBuyPrice":     false,
		"inventory.idStrategy":        "sequential",
		"inventory.lowStockThreshold": 3,
		"inventory.seedDemo":          true,
		"inventory.sortByName":        true,
	},
}

// canonical maps lowercased keys to their camelCase form, so that
// INVENTORY_SERVER_MAXHEADERBYTES overrides server.maxHeaderBytes.
var canonical = func() map[string]string {
	m := make(map[string]string, len(defaults))
	for key := range defaults {
		m[strings.ToLower(key)] = key
	}
	return m
}()

func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.ToUpper(key), EnvPrefix))
	key = strings.ReplaceAll(key, "_", ".")
	if c, ok := canonical[key]; ok {
		return c
	}
	return key
}

// Load reads the configuration from the working directory and the environment.
func Load() (*Config, error) {
	return LoadFrom(ConfigFile, EnvFile)
}

// LoadFrom reads the configuration from the given yaml and .env files and the environment.
// Missing files are skipped.
func LoadFrom(configFile, envFile string) (*Config, error) {
	explicit := koanf.New(".")

	// 1. Load configuration from yaml file
	if err := explicit.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading YAML config file '%s': %w", configFile, err)
		}
	}

	// 2. Load environment variables from .env file
	if envFileMap, err := godotenv.Read(envFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if strings.HasPrefix(strings.ToUpper(key), EnvPrefix) {
				envMap[envKey(key)] = value
			}
		}
		if err := explicit.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 3. Load environment variables from the system, the highest priority
	if err := explicit.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	// 4. Layer defaults, the variant preset and the explicit values
	variant := explicit.String("inventory.variant")
	if variant == "" {
		variant = VariantLedger
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}
	if preset, ok := presets[variant]; ok {
		if err := k.Load(confmap.Provider(preset, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading %s preset: %w", variant, err)
		}
	}
	if err := k.Merge(explicit); err != nil {
		return nil, fmt.Errorf("error merging config: %w", err)
	}

	// 5. Unmarshal the configuration into the Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// 6. Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
