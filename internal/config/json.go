package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// jsonConfig is a DTO used only for unmarshalling. Pointer fields tell a
// missing key apart from a zero value.
type jsonConfig struct {
	CacheRoot    *string `json:"cache_root"`
	DatabasePath *string `json:"database_path"`
	LogLevel     *string `json:"log_level"`
	LogFormat    *string `json:"log_format"`
	Encrypt      *bool   `json:"encrypt"`
	KeySalt      *string `json:"key_salt"`
	Compress     *bool   `json:"compress"`
}

// parseJSON overlays cfg with the keys present in the file at path.
func parseJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	setIf(&cfg.CacheRoot, jc.CacheRoot)
	setIf(&cfg.DatabasePath, jc.DatabasePath)
	setIf(&cfg.LogLevel, jc.LogLevel)
	setIf(&cfg.LogFormat, jc.LogFormat)
	setIf(&cfg.Encrypt, jc.Encrypt)
	setIf(&cfg.KeySalt, jc.KeySalt)
	setIf(&cfg.Compress, jc.Compress)
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
