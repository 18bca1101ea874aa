package config

import (
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

// LoadFile decodes a TOML config file on top of cfg.
// Keys not understood by Config are rejected.
func LoadFile(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is empty")
	}
	if filepath.Ext(path) != ".toml" {
		return errors.Errorf("config must be a .toml file: %s", path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Annotatef(err, "decode config %s failed", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown keys in config %s: %v", path, undecoded)
	}
	return nil
}
