// Package config loads runtime configuration for the cachectl tool.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-root string        cache root directory
//	-db string          response cache database (default <root>/responses.db)
//	-log-level string   debug, info, warn or error
//	-log-format string  text or json
//	-encrypt            encrypt cached values with a passphrase-derived key
//	-salt string        salt for the passphrase key derivation
//	-compress           LZ4-compress cached values
//
// # JSON schema
//
// Keys missing from the file keep their default:
//
//	{
//	  "cache_root": "/var/cache/transfercache",
//	  "database_path": "/var/cache/transfercache/responses.db",
//	  "log_level": "debug",
//	  "log_format": "json",
//	  "encrypt": true,
//	  "key_salt": "per-install-salt",
//	  "compress": false
//	}
package config
