package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the complete client configuration, loadable from environment
// variables (PASTA_ prefix), a .env file, or YAML config files.
type Config struct {
	BackendURL string        `default:"http://localhost:3000" usage:"Backend API base URL (PASTA_BACKEND_URL or API_URL)"`
	Timeout    time.Duration `default:"0s" usage:"Per-request timeout for backend calls, 0 keeps the client default"`
	Storage    StorageConfig
	Checkout   CheckoutConfig
}

// StorageConfig selects where client-side state (cart, session) lives.
type StorageConfig struct {
	Driver        string `default:"file" usage:"Slot storage: file, redis, postgres or memory"`
	Dir           string `usage:"Directory for the file driver (defaults to the user config dir)"`
	RedisAddr     string `default:"localhost:6379" usage:"Redis address for the redis driver"`
	RedisPassword string `usage:"Redis password"`
	RedisDB       int    `default:"0" usage:"Redis database number"`
	DatabaseURL   string `usage:"PostgreSQL connection URL for the postgres driver (or DATABASE_URL)"`
	Namespace     string `usage:"Key prefix, lets several profiles share one redis or postgres"`
}

// CheckoutConfig tunes the checkout flow.
type CheckoutConfig struct {
	Concurrency int `default:"4" usage:"Max in-flight add-to-cart calls during checkout"`
}

// LoadConfig loads an optional .env file, then configuration from environment
// variables and YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	files := []string{"storefront.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".config", "pasta", "storefront.yaml"))
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PASTA",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps standard environment variables (API_URL,
// DATABASE_URL) to the PASTA_-prefixed configuration and resolves the default
// state directory.
func (c *Config) applyPlatformDefaults() {
	if os.Getenv("PASTA_BACKEND_URL") == "" {
		if v := os.Getenv("API_URL"); v != "" {
			c.BackendURL = v
		}
	}
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if c.Storage.Dir == "" && c.Storage.Driver == DriverFile {
		if dir, err := os.UserConfigDir(); err == nil {
			c.Storage.Dir = filepath.Join(dir, "pasta")
		} else {
			c.Storage.Dir = ".pasta"
		}
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend URL is required: set PASTA_BACKEND_URL or API_URL")
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout %s must not be negative", c.Timeout)
	}
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the file driver")
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("redis address is required: set PASTA_STORAGE_REDIS_ADDR")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set PASTA_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
