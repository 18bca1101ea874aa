package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when present and no -env-file was given.
const DefaultEnvFile = ".env"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ParseBool converts a truthy/falsy string. It accepts the same spellings as
// the usual shell conventions: y, yes, t, true, on, 1 and n, no, f, false,
// off, 0 (case-insensitive).
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	case "n", "no", "f", "false", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid truth value %q", s)
}

// ApplyEnv overrides cfg from the driver's environment variables.
// Empty executable paths are treated as unset; an empty device switch is
// not a truth value and is rejected.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvDisableDevice); ok {
		disable, err := ParseBool(v)
		if err != nil {
			return ValidationError{Field: EnvDisableDevice, Message: err.Error()}
		}
		cfg.DisableDevice = disable
	}
	if v, ok := lookup(EnvExporterExe); ok && v != "" {
		cfg.ExporterExe = v
	}
	if v, ok := lookup(EnvDemoExe); ok && v != "" {
		cfg.DemoExe = v
	}
	return nil
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. An empty path loads
// DefaultEnvFile if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
