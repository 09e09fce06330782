package config

import (
	"flag"
	"io"
)

// valueFlags are the flags that take an argument, used when pre-scanning for
// the config file path.
var valueFlags = []string{"c", "config", "root", "db", "log-level", "log-format", "salt"}

func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("cachectl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// consumed by parseJSON; declared so the parser accepts them
	fs.String("c", "", "path to JSON config file")
	fs.String("config", "", "path to JSON config file")

	fs.StringVar(&cfg.CacheRoot, "root", cfg.CacheRoot, "cache root directory")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "response cache database (default <root>/responses.db)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text, json")
	fs.BoolVar(&cfg.Encrypt, "encrypt", cfg.Encrypt, "encrypt cached values with a passphrase-derived key")
	fs.StringVar(&cfg.KeySalt, "salt", cfg.KeySalt, "salt for the passphrase key derivation")
	fs.BoolVar(&cfg.Compress, "compress", cfg.Compress, "LZ4-compress cached values")
	return fs
}

// parseFlags overlays cfg with flags from args and returns the positional
// arguments after them.
func parseFlags(cfg *Config, args []string) ([]string, error) {
	fs := newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

// PrintDefaults writes the flag usage to w.
func PrintDefaults(w io.Writer) {
	var cfg Config
	cfg.LoadDefaults()
	fs := newFlagSet(&cfg)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
