package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/transfercache/internal/common"
	"github.com/dmitrijs2005/transfercache/internal/flagx"
)

// DefaultDatabaseName is the response cache file placed under CacheRoot when
// DatabasePath is not set.
const DefaultDatabaseName = "responses.db"

// Config holds runtime settings for cachectl.
type Config struct {
	CacheRoot    string
	DatabasePath string
	LogLevel     string
	LogFormat    string
	Encrypt      bool
	KeySalt      string
	Compress     bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	c.CacheRoot = filepath.Join(base, "transfercache")
	c.DatabasePath = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.Encrypt = false
	c.KeySalt = "transfercache"
	c.Compress = false
}

// Load builds a Config from defaults, the optional JSON file and the flags in
// args. The remaining positional arguments are returned.
func Load(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := flagx.ConfigPath(args, valueFlags...); path != "" {
		if err := parseJSON(cfg, path); err != nil {
			return nil, nil, err
		}
	}

	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.CacheRoot, DefaultDatabaseName)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, rest, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.CacheRoot == "" {
		return fmt.Errorf("%w: cache root is required", common.ErrInvalidArgument)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", common.ErrInvalidArgument, c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", common.ErrInvalidArgument, c.LogLevel)
	}
	if c.Encrypt && c.KeySalt == "" {
		return fmt.Errorf("%w: key salt is required for encryption", common.ErrInvalidArgument)
	}
	return nil
}
