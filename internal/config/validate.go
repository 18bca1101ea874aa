package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.GeometryFile) == "" {
		errs = append(errs, ValidationError{
			Field:   "geometry_file",
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(cfg.EventFile) == "" {
		errs = append(errs, ValidationError{
			Field:   "event_file",
			Message: "must not be empty",
		})
	}

	if strings.TrimSpace(cfg.ExporterExe) == "" {
		errs = append(errs, ValidationError{
			Field:   "exporter_exe",
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(cfg.DemoExe) == "" {
		errs = append(errs, ValidationError{
			Field:   "demo_exe",
			Message: "must not be empty",
		})
	}

	if cfg.OutputDir == "" {
		errs = append(errs, ValidationError{
			Field:   "output_dir",
			Message: "must not be empty (use . for the working directory)",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
