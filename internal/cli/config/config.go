package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/conduit-lang/catalog/internal/discovery"
	"github.com/conduit-lang/catalog/internal/storage"
	"github.com/conduit-lang/catalog/internal/tooling/extract"
	"github.com/conduit-lang/catalog/runtime/catalog"
	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// FileName is the configuration file looked up in the project directory
const FileName = "catalog.yaml"

// EnvPrefix prefixes every environment override, e.g. CATALOG_SERVER_ADDRESS
const EnvPrefix = "CATALOG"

// Cache drivers
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the catalog configuration
type Config struct {
	Roots       []string          `mapstructure:"roots"`
	Include     []string          `mapstructure:"include"`
	Exclude     []string          `mapstructure:"exclude"`
	Aliases     map[string]string `mapstructure:"aliases"`
	Categories  map[string]string `mapstructure:"categories"`
	Concurrency int               `mapstructure:"concurrency"`

	Watch    WatchConfig    `mapstructure:"watch"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`

	// Dir is the absolute project directory the config was loaded from
	Dir string `mapstructure:"-"`
	// File is the config file used, empty when only defaults applied
	File string `mapstructure:"-"`
}

// WatchConfig represents file watcher configuration
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// CacheConfig represents the tier cache configuration
type CacheConfig struct {
	Driver    string        `mapstructure:"driver"`
	StaticTTL time.Duration `mapstructure:"static_ttl"`
	DevTTL    time.Duration `mapstructure:"dev_ttl"`
	RedisURL  string        `mapstructure:"redis_url"`
}

// SnapshotConfig represents the static snapshot location
type SnapshotConfig struct {
	Location string        `mapstructure:"location"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Region   string        `mapstructure:"region"`
}

// StorageConfig represents the registry persistence backend
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// RescanRate is the minimum interval between rescans per client
	RescanRate time.Duration `mapstructure:"rescan_rate"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ValidationError reports an invalid configuration value
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// DefaultRoots are searched when no roots are configured
var DefaultRoots = []string{"src/components", "components"}

func setDefaults(v *viper.Viper) {
	aliases := make(map[string]string, len(extract.DefaultAliases))
	for _, a := range extract.DefaultAliases {
		aliases[a] = ""
	}

	v.SetDefault("roots", DefaultRoots)
	v.SetDefault("include", discovery.DefaultInclude)
	v.SetDefault("exclude", []string{})
	v.SetDefault("aliases", aliases)
	v.SetDefault("categories", map[string]string{
		"atoms":     string(metadata.CategoryAtom),
		"molecules": string(metadata.CategoryMolecule),
		"organisms": string(metadata.CategoryOrganism),
	})
	v.SetDefault("concurrency", 0)
	v.SetDefault("watch.debounce", time.Second)
	v.SetDefault("cache.driver", CacheMemory)
	v.SetDefault("cache.static_ttl", 5*time.Minute)
	v.SetDefault("cache.dev_ttl", time.Minute)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("snapshot.location", "")
	v.SetDefault("snapshot.timeout", 5*time.Second)
	v.SetDefault("snapshot.region", "")
	v.SetDefault("storage.driver", storage.DriverMemory)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("server.address", ":7070")
	v.SetDefault("server.rescan_rate", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads catalog.yaml from dir. A .env file in dir is loaded into the
// environment first; neither file is required.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}

	if err := godotenv.Load(filepath.Join(abs, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("yaml")
	v.AddConfigPath(abs)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Dir = abs
	cfg.File = v.ConfigFileUsed()

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.Set("roots", cfg.Roots)
	v.Set("include", cfg.Include)
	v.Set("exclude", cfg.Exclude)
	if len(cfg.Aliases) > 0 {
		v.Set("aliases", cfg.Aliases)
	}
	if len(cfg.Categories) > 0 {
		v.Set("categories", cfg.Categories)
	}
	v.Set("concurrency", cfg.Concurrency)
	v.Set("watch.debounce", cfg.Watch.Debounce.String())
	v.Set("cache.driver", cfg.Cache.Driver)
	v.Set("cache.static_ttl", cfg.Cache.StaticTTL.String())
	v.Set("cache.dev_ttl", cfg.Cache.DevTTL.String())
	v.Set("cache.redis_url", cfg.Cache.RedisURL)
	v.Set("snapshot.location", cfg.Snapshot.Location)
	v.Set("snapshot.timeout", cfg.Snapshot.Timeout.String())
	v.Set("snapshot.region", cfg.Snapshot.Region)
	v.Set("storage.driver", cfg.Storage.Driver)
	v.Set("storage.dsn", cfg.Storage.DSN)
	v.Set("server.address", cfg.Server.Address)
	v.Set("server.rescan_rate", cfg.Server.RescanRate.String())
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.development", cfg.Log.Development)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists reports whether dir already holds a config file
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if len(cfg.Roots) == 0 {
		return &ValidationError{Field: "roots", Message: "at least one root is required"}
	}
	for _, pat := range append(append([]string(nil), cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			return &ValidationError{Field: "include/exclude", Message: fmt.Sprintf("invalid pattern %q", pat)}
		}
	}
	for dir, c := range cfg.Categories {
		if strings.TrimSpace(c) == "" {
			return &ValidationError{Field: "categories." + dir, Message: "category must not be empty"}
		}
	}
	if cfg.Concurrency < 0 {
		return &ValidationError{Field: "concurrency", Message: "must not be negative"}
	}
	if cfg.Watch.Debounce <= 0 {
		return &ValidationError{Field: "watch.debounce", Message: "must be positive"}
	}

	switch cfg.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if cfg.Cache.RedisURL == "" {
			return &ValidationError{Field: "cache.redis_url", Message: "required for the redis cache driver"}
		}
	default:
		return &ValidationError{Field: "cache.driver", Message: fmt.Sprintf("unknown driver %q", cfg.Cache.Driver)}
	}
	if cfg.Cache.StaticTTL < 0 || cfg.Cache.DevTTL < 0 {
		return &ValidationError{Field: "cache", Message: "TTLs must not be negative"}
	}
	if cfg.Cache.DevTTL > cfg.Cache.StaticTTL {
		return &ValidationError{Field: "cache.dev_ttl", Message: "must not exceed cache.static_ttl"}
	}

	if cfg.Snapshot.Timeout <= 0 {
		return &ValidationError{Field: "snapshot.timeout", Message: "must be positive"}
	}
	if strings.HasPrefix(cfg.Snapshot.Location, "s3://") {
		if _, _, ok := catalog.ParseS3Location(cfg.Snapshot.Location); !ok {
			return &ValidationError{Field: "snapshot.location", Message: "expected s3://bucket/key"}
		}
	}

	switch cfg.Storage.Driver {
	case "", storage.DriverMemory:
	case storage.DriverSQLite, "sqlite3", storage.DriverPostgres, "postgresql", "pgx", storage.DriverLibPQ, storage.DriverRedis:
		if cfg.Storage.DSN == "" {
			return &ValidationError{Field: "storage.dsn", Message: fmt.Sprintf("required for the %s driver", cfg.Storage.Driver)}
		}
	default:
		return &ValidationError{Field: "storage.driver", Message: fmt.Sprintf("unknown driver %q", cfg.Storage.Driver)}
	}

	if cfg.Server.Address == "" {
		return &ValidationError{Field: "server.address", Message: "must not be empty"}
	}
	if cfg.Server.RescanRate < 0 {
		return &ValidationError{Field: "server.rescan_rate", Message: "must not be negative"}
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", cfg.Log.Level)}
	}
	return nil
}

// DiscoveryConfig returns the source locator settings
func (c *Config) DiscoveryConfig() discovery.Config {
	return discovery.Config{
		Roots:   c.Roots,
		Include: c.Include,
		Exclude: c.Exclude,
		BaseDir: c.Dir,
	}
}

// ExtractConfig returns the extractor settings. Configured categories are
// registered so that custom names are accepted.
func (c *Config) ExtractConfig() extract.Config {
	cfg := extract.DefaultConfig()
	cfg.BaseDir = c.Dir
	for dir, name := range c.Categories {
		metadata.RegisterCategory(metadata.Category(name))
		cfg.Categories[dir] = metadata.ParseCategory(name)
	}
	for prefix, target := range c.Aliases {
		cfg.Aliases[prefix] = target
	}
	return cfg
}

// CatalogConfig returns the unified API tier settings
func (c *Config) CatalogConfig() catalog.Config {
	return catalog.Config{
		SnapshotLocation: c.Snapshot.Location,
		SnapshotTimeout:  c.Snapshot.Timeout,
		StaticTTL:        c.Cache.StaticTTL,
		DevTTL:           c.Cache.DevTTL,
		Concurrency:      c.Concurrency,
	}
}

// StorageDSN returns the storage connection string. Relative SQLite file
// paths are resolved against the project directory.
func (c *Config) StorageDSN() string {
	dsn := c.Storage.DSN
	switch c.Storage.Driver {
	case storage.DriverSQLite, "sqlite3":
	default:
		return dsn
	}
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(c.Dir, dsn)
}
